package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the folio binary. Values come
// from defaults, then .env files, then process environment, in that order.
type Config struct {
	Server    ServerConfig
	Upstash   UpstashConfig
	Pinecone  PineconeConfig
	Groq      GroqConfig
	WorkersAI WorkersAIConfig
	Ollama    OllamaConfig
	Index     IndexConfig
	Retrieval RetrievalConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Ingest    IngestConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port          int
	AllowedOrigin string
}

// UpstashConfig points at the Upstash Redis REST endpoint used for the
// exact-match cache and the rate limiter. Both degrade gracefully when the
// URL or token is missing, so neither field is required.
type UpstashConfig struct {
	RestURL string
	Token   string
}

type PineconeConfig struct {
	APIKey string
	Host   string
	Index  string
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// WorkersAIConfig configures the Cloudflare Workers AI embedding endpoint
// used on the query path.
type WorkersAIConfig struct {
	AccountID string
	APIToken  string
	Model     string
}

type OllamaConfig struct {
	BaseURL      string
	EmbedModel   string
	ContextModel string
}

// IndexConfig selects the vector index backend: "pinecone" (default) or
// "local" (SQLite, for keyless development).
type IndexConfig struct {
	Backend   string
	LocalPath string
}

type RetrievalConfig struct {
	TopK     int
	MinScore float32
}

type RateLimitConfig struct {
	Quota  int
	Window time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type IngestConfig struct {
	DataDir     string
	SkipContext bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:          8080,
			AllowedOrigin: "*",
		},
		Pinecone: PineconeConfig{
			Index: "portfolio-rag",
		},
		Groq: GroqConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.1-8b-instant",
		},
		WorkersAI: WorkersAIConfig{
			Model: "@cf/baai/bge-base-en-v1.5",
		},
		Ollama: OllamaConfig{
			BaseURL:      "http://localhost:11434",
			EmbedModel:   "nomic-embed-text",
			ContextModel: "llama3.2:3b",
		},
		Index: IndexConfig{
			Backend:   "pinecone",
			LocalPath: "folio.db",
		},
		Retrieval: RetrievalConfig{
			TopK:     5,
			MinScore: 0.55,
		},
		RateLimit: RateLimitConfig{
			Quota:  10,
			Window: 60 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Ingest: IngestConfig{
			DataDir: "data",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from .env files and the process environment.
// It never fails on missing credentials; ValidateServe and ValidateIngest
// enforce the requirements of each mode.
func Load() Config {
	// Same file precedence as the original deployment scripts. Missing files
	// are fine.
	godotenv.Load(".env.local")
	godotenv.Load(".env")

	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	setInt(&cfg.Server.Port, "FOLIO_PORT")
	setString(&cfg.Server.AllowedOrigin, "FOLIO_ALLOWED_ORIGIN")

	setString(&cfg.Upstash.RestURL, "UPSTASH_REDIS_REST_URL")
	setString(&cfg.Upstash.Token, "UPSTASH_REDIS_REST_TOKEN")

	setString(&cfg.Pinecone.APIKey, "PINECONE_API_KEY")
	setString(&cfg.Pinecone.Host, "PINECONE_HOST")
	setString(&cfg.Pinecone.Index, "PINECONE_INDEX")

	setString(&cfg.Groq.APIKey, "GROQ_API_KEY")
	setString(&cfg.Groq.BaseURL, "GROQ_BASE_URL")
	setString(&cfg.Groq.Model, "GROQ_MODEL")

	setString(&cfg.WorkersAI.AccountID, "CF_ACCOUNT_ID")
	setString(&cfg.WorkersAI.APIToken, "CF_API_TOKEN")
	setString(&cfg.WorkersAI.Model, "CF_EMBED_MODEL")

	setString(&cfg.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&cfg.Ollama.EmbedModel, "EMBED_MODEL")
	setString(&cfg.Ollama.ContextModel, "CONTEXT_MODEL")

	setString(&cfg.Index.Backend, "FOLIO_INDEX_BACKEND")
	setString(&cfg.Index.LocalPath, "FOLIO_INDEX_PATH")

	setInt(&cfg.Retrieval.TopK, "FOLIO_TOP_K")

	setString(&cfg.Ingest.DataDir, "FOLIO_DATA_DIR")
	if v := os.Getenv("SKIP_CONTEXT"); v != "" {
		cfg.Ingest.SkipContext = v == "true" || v == "1"
	}

	setString(&cfg.Log.Level, "FOLIO_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

// ValidateServe checks the configuration needed by the query-serving path.
func (c Config) ValidateServe() error {
	if c.Groq.APIKey == "" {
		return fmt.Errorf("missing required config: GROQ_API_KEY")
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if c.WorkersAI.AccountID == "" || c.WorkersAI.APIToken == "" {
		return fmt.Errorf("missing required config: CF_ACCOUNT_ID and CF_API_TOKEN (query embeddings)")
	}
	return nil
}

// ValidateIngest checks the configuration needed by the ingestion batch job.
func (c Config) ValidateIngest() error {
	return c.validateIndex()
}

func (c Config) validateIndex() error {
	switch c.Index.Backend {
	case "pinecone":
		if c.Pinecone.APIKey == "" {
			return fmt.Errorf("missing required config: PINECONE_API_KEY")
		}
		if c.Pinecone.Host == "" {
			return fmt.Errorf("missing required config: PINECONE_HOST")
		}
	case "local":
		if c.Index.LocalPath == "" {
			return fmt.Errorf("missing required config: FOLIO_INDEX_PATH")
		}
	default:
		return fmt.Errorf("unknown index backend %q (want pinecone or local)", c.Index.Backend)
	}
	return nil
}
