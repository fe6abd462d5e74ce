package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

// NewGemini creates one Gemini API client per key. Requests rotate through
// the keys.
func NewGemini(ctx context.Context, apiKeys []string) (*Gemini, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("llm.NewGemini: at least one API key is required")
	}
	g := &Gemini{}
	for _, key := range apiKeys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("llm.NewGemini: %w", err)
		}
		g.clients = append(g.clients, client)
	}
	return g, nil
}

type Gemini struct {
	clients []*genai.Client

	mu   sync.Mutex
	next int
}

func (g *Gemini) Generate(ctx context.Context, model string, req Request) (string, error) {
	temp := req.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: req.System}},
		},
	}
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.User}},
	}}

	resp, err := g.client().Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", classify(err)
	}
	txt := extractText(resp)
	if txt == "" {
		return "", fmt.Errorf("%w: empty candidate text", ErrMalformed)
	}
	return txt, nil
}

func (g *Gemini) client() *genai.Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.clients[g.next%len(g.clients)]
	g.next++
	return c
}

// classify maps a genai failure onto the backend error kinds.
func classify(err error) error {
	switch code := statusCode(err); {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case code != 0:
		return fmt.Errorf("%w: %w", ErrStatus, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

// statusCode returns the HTTP status carried by a genai API error, or 0.
func statusCode(err error) int {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case genai.APIError:
			return v.Code
		case *genai.APIError:
			return v.Code
		}
	}
	return 0
}

func extractText(res *genai.GenerateContentResponse) string {
	if res == nil {
		return ""
	}
	for _, c := range res.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

var _ LLM = &Gemini{}
