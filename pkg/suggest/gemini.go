// Package suggest asks Google's Gemini API for human friendly URL slugs.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shortlink/pkg/logging"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.0-flash"

	maxResponseBytes = 1 << 20
)

var ErrEmptySuggestion = errors.New("suggestion response had no text")

type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// GeminiClient calls generateContent behind a circuit breaker so a failing
// upstream is not hammered by every suggestion request.
type GeminiClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	cb         *gobreaker.CircuitBreaker[string]
	logger     *logging.Logger
}

func NewGeminiClient(cfg Config, logger *logging.Logger) *GeminiClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &GeminiClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
	c.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "gemini-suggest",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Suggest returns the raw slug text the model produced. Callers normalize it.
func (c *GeminiClient) Suggest(ctx context.Context, title, url string, keywords []string) (string, error) {
	text, err := c.cb.Execute(func() (string, error) {
		return c.generate(ctx, buildPrompt(title, url, keywords))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn(ctx, "suggestion request rejected by circuit breaker")
		}
		return "", err
	}
	return text, nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	for _, candidate := range decoded.Candidates {
		for _, p := range candidate.Content.Parts {
			if text := cleanSuggestion(p.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", ErrEmptySuggestion
}

func buildPrompt(title, url string, keywords []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "URL: %s\n", url)
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(keywords, ", "))
	b.WriteString("---\n")
	b.WriteString("Using the information above, generate a short, descriptive and user friendly slug.\n")
	b.WriteString("Answer with the slug only.\n\n")
	b.WriteString("Example input:\n")
	b.WriteString("Title: \"Chocolate cake recipe\"\n")
	b.WriteString("Keywords: \"cake, chocolate, recipe, dessert\"\n")
	b.WriteString("Example output: \"chocolate-cake-recipe\"\n")
	return b.String()
}

// cleanSuggestion keeps the first non-empty line and drops surrounding quotes
// and markdown the model tends to add.
func cleanSuggestion(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "\"'`*")
		if line != "" {
			return line
		}
	}
	return ""
}
