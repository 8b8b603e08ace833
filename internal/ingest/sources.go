package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Source is one document to be chunked, embedded, and indexed.
type Source struct {
	ID       string
	Type     string
	Text     string
	Metadata map[string]any
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// LoadPDFs reads every .pdf under dir and extracts its plain text. A missing
// directory is not an error; individual unparseable files are logged and
// skipped.
func LoadPDFs(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		slog.Info("no pdf directory found, skipping", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pdf directory: %w", err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		text, err := extractPDFText(path)
		if err != nil {
			slog.Warn("failed to parse pdf, skipping", "file", entry.Name(), "error", err)
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".pdf")
		base = strings.ToLower(whitespaceRun.ReplaceAllString(base, "_"))
		sources = append(sources, Source{
			ID:       "pdf_" + base,
			Type:     "pdf",
			Text:     text,
			Metadata: map[string]any{"filename": entry.Name()},
		})
		slog.Info("loaded pdf", "file", entry.Name(), "chars", len(text))
	}
	return sources, nil
}

func extractPDFText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var buf bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", i, err)
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

type experienceRole struct {
	Role       string   `json:"role"`
	Company    string   `json:"company"`
	Period     string   `json:"period"`
	End        string   `json:"end"`
	Duration   string   `json:"duration"`
	Location   string   `json:"location"`
	Type       string   `json:"type"`
	Skills     []string `json:"skills"`
	Highlights []string `json:"highlights"`
	SubRoles   []struct {
		Title  string `json:"title"`
		Period string `json:"period"`
	} `json:"subRoles"`
}

// LoadExperience formats each role in experience.json as its own source.
// A missing file is not an error.
func LoadExperience(path string) ([]Source, error) {
	var roles []experienceRole
	if ok, err := readJSON(path, &roles); !ok {
		return nil, err
	}

	var sources []Source
	for _, role := range roles {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Role: %s\n", role.Role)
		fmt.Fprintf(&sb, "Company: %s\n", role.Company)
		fmt.Fprintf(&sb, "Period: %s to %s (%s)\n", role.Period, role.End, role.Duration)
		fmt.Fprintf(&sb, "Location: %s\n", role.Location)
		fmt.Fprintf(&sb, "Type: %s\n", role.Type)
		fmt.Fprintf(&sb, "Skills: %s\n", strings.Join(role.Skills, ", "))
		sb.WriteString("\nKey Responsibilities and Achievements:\n")
		for _, h := range role.Highlights {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
		if len(role.SubRoles) > 0 {
			sb.WriteString("\nProgression:\n")
			for _, sr := range role.SubRoles {
				fmt.Fprintf(&sb, "- %s (%s)\n", sr.Title, sr.Period)
			}
		}

		id := "experience_" + strings.ToLower(whitespaceRun.ReplaceAllString(role.Company, "_"))
		sources = append(sources, Source{
			ID:       id,
			Type:     "work_experience",
			Text:     strings.TrimSpace(sb.String()),
			Metadata: map[string]any{"company": role.Company},
		})
	}
	return sources, nil
}

type projectEntry struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Tech        []string `json:"tech"`
	Highlights  []string `json:"highlights"`
	GitHub      string   `json:"github"`
}

// LoadProjects formats each entry in projects.json as its own source.
func LoadProjects(path string) ([]Source, error) {
	var projects []projectEntry
	if ok, err := readJSON(path, &projects); !ok {
		return nil, err
	}

	var sources []Source
	for _, p := range projects {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Project: %s\n", p.Title)
		fmt.Fprintf(&sb, "Subtitle: %s\n", p.Subtitle)
		fmt.Fprintf(&sb, "Category: %s\n", p.Category)
		fmt.Fprintf(&sb, "\nDescription: %s\n", p.Description)
		fmt.Fprintf(&sb, "\nTechnologies used: %s\n", strings.Join(p.Tech, ", "))
		fmt.Fprintf(&sb, "Key highlights: %s\n", strings.Join(p.Highlights, ", "))
		fmt.Fprintf(&sb, "GitHub: %s\n", p.GitHub)

		id := strings.ToLower(whitespaceRun.ReplaceAllString(p.Title, "_"))
		if len(id) > 30 {
			id = id[:30]
		}
		sources = append(sources, Source{
			ID:       "project_" + id,
			Type:     "project",
			Text:     strings.TrimSpace(sb.String()),
			Metadata: map[string]any{"projectTitle": p.Title},
		})
	}
	return sources, nil
}

type skillsFile struct {
	Categories []struct {
		Name   string `json:"name"`
		Skills []struct {
			Name string `json:"name"`
		} `json:"skills"`
	} `json:"categories"`
	Certifications []struct {
		Title string `json:"title"`
		Org   string `json:"org"`
	} `json:"certifications"`
}

// LoadSkills formats skills.json as a single source.
func LoadSkills(path string) ([]Source, error) {
	var data skillsFile
	if ok, err := readJSON(path, &data); !ok {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("Nishan Poojary's Technical Skills:\n")
	for _, cat := range data.Categories {
		names := make([]string, len(cat.Skills))
		for i, s := range cat.Skills {
			names[i] = s.Name
		}
		fmt.Fprintf(&sb, "\n%s:\n%s\n", cat.Name, strings.Join(names, ", "))
	}
	if len(data.Certifications) > 0 {
		sb.WriteString("\nCertifications:\n")
		for _, c := range data.Certifications {
			fmt.Fprintf(&sb, "- %s (%s)\n", c.Title, c.Org)
		}
	}

	return []Source{{
		ID:   "skills_data",
		Type: "skills",
		Text: strings.TrimSpace(sb.String()),
	}}, nil
}

// readJSON loads path into v. Returns (false, nil) when the file does not
// exist so callers can skip optional sources quietly.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("source file not found, skipping", "path", path)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}
