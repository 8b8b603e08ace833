package api

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/nishan052/folio/internal/llm"
)

const (
	maxMessageChars = 500
	maxHistoryTurns = 6
	maxHistoryChars = 2000
)

// ChatRequest is a validated chat call: message bounded and sanitized,
// history trimmed to the most recent turns, language whitelisted.
type ChatRequest struct {
	Message string
	History []llm.Message
	Lang    string
}

// ValidationError reports malformed client input. It maps to HTTP 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type rawChatRequest struct {
	Message string `json:"message"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
	Lang string `json:"lang"`
}

// ParseChatRequest decodes and validates a chat request body.
func ParseChatRequest(body io.Reader) (ChatRequest, error) {
	var raw rawChatRequest
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return ChatRequest{}, validationErrorf("Invalid JSON body")
	}

	message := strings.TrimSpace(raw.Message)
	if message == "" {
		return ChatRequest{}, validationErrorf("Message is required")
	}
	if len(message) > maxMessageChars {
		return ChatRequest{}, validationErrorf("Message too long (max %d chars)", maxMessageChars)
	}
	message = collapseWhitespace(stripHTML(message))
	if message == "" {
		return ChatRequest{}, validationErrorf("Message is required")
	}

	history := raw.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	msgs := make([]llm.Message, 0, len(history))
	for _, h := range history {
		if h.Role != "user" && h.Role != "assistant" {
			return ChatRequest{}, validationErrorf("Invalid history role %q", h.Role)
		}
		if h.Content == "" || len(h.Content) > maxHistoryChars {
			return ChatRequest{}, validationErrorf("History content must be 1-%d chars", maxHistoryChars)
		}
		msgs = append(msgs, llm.Message{Role: h.Role, Content: h.Content})
	}

	lang := raw.Lang
	if lang != "en" && lang != "de" {
		lang = "en"
	}

	return ChatRequest{Message: message, History: msgs, Lang: lang}, nil
}

// stripHTML drops markup and keeps text content.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	tok := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(tok.Text())
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
