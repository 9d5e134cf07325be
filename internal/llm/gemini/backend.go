// Package gemini implements llm.Backend with Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"google.golang.org/genai"

	"github.com/pythautom/pythautom/internal/llm"
)

// DefaultModel is used when the configuration names none.
const DefaultModel = "gemini-2.0-flash"

// KnownModels are offered by the front-ends as suggestions.
var KnownModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemma-3-27b-it",
}

// Config holds the credentials and model.
type Config struct {
	APIKey string
	Model  string
}

// Backend talks to the Gemini API.
type Backend struct {
	apiKey string
	model  string
	client atomic.Pointer[genai.Client]
}

var _ llm.Backend = (*Backend)(nil)

// New validates cfg. The API is not contacted until Connect.
func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini API key is missing")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Backend{apiKey: cfg.APIKey, model: model}, nil
}

func (b *Backend) Name() string  { return "Gemini" }
func (b *Backend) Model() string { return b.model }

func (b *Backend) Available() bool { return b.client.Load() != nil }

// Connect creates the client and checks the model exists.
func (b *Backend) Connect(ctx context.Context) error {
	b.client.Store(nil)
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("creating gemini client: %w", err)
	}
	if _, err := client.Models.Get(ctx, b.model, nil); err != nil {
		return fmt.Errorf("gemini model %q is not usable: %w", b.model, err)
	}
	b.client.Store(client)
	return nil
}

func (b *Backend) IdentifyDependencies(ctx context.Context, req llm.DependencyRequest) ([]string, error) {
	client := b.client.Load()
	if client == nil {
		return []string{llm.ErrorMarker + " Gemini client not loaded"}, nil
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llm.DependencyPrompt(req), genai.RoleUser),
		Temperature:       genai.Ptr[float32](llm.PlanningTemperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    dependencySchema,
	}
	resp, err := client.Models.GenerateContent(ctx, b.model, genai.Text(req.UserRequest), cfg)
	if err != nil {
		return []string{fmt.Sprintf("%s %v", llm.ErrorMarker, err)}, nil
	}
	if reason := blockReason(resp); reason != "" {
		return []string{fmt.Sprintf("%s response blocked (%s)", llm.ErrorMarker, reason)}, nil
	}
	return llm.ParseDependencies(resp.Text()), nil
}

var dependencySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"dependencies": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"dependencies"},
}

func (b *Backend) GenerateCodeStream(ctx context.Context, req llm.GenerateRequest, onFragment func(string), cancelled func() bool) (string, error) {
	client := b.client.Load()
	if client == nil {
		return "", llm.ErrNotConnected
	}
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](llm.GenerationTemperature)}

	var full strings.Builder
	for resp, err := range client.Models.GenerateContentStream(ctx, b.model, genai.Text(llm.GenerationPrompt(req)), cfg) {
		if cancelled != nil && cancelled() {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("streaming from %s: %w", b.model, err)
		}
		if reason := blockReason(resp); reason != "" {
			return full.String(), fmt.Errorf("gemini blocked the response: %s", reason)
		}
		if piece := resp.Text(); piece != "" {
			full.WriteString(piece)
			if onFragment != nil {
				onFragment(piece)
			}
		}
	}
	return full.String(), nil
}

func (b *Backend) ResolvePackage(ctx context.Context, module, errorMessage string) (llm.Resolution, error) {
	client := b.client.Load()
	if client == nil {
		return llm.Resolution{Module: module, Reason: "Gemini client not loaded"}, llm.ErrNotConnected
	}
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](llm.ResolveTemperature)}
	resp, err := client.Models.GenerateContent(ctx, b.model, genai.Text(llm.ResolvePrompt(module, errorMessage)), cfg)
	if err != nil {
		return llm.Resolution{Module: module, Reason: err.Error()}, fmt.Errorf("resolving %s: %w", module, err)
	}
	if reason := blockReason(resp); reason != "" {
		return llm.Resolution{Module: module, Reason: "response blocked: " + reason}, nil
	}
	return llm.ParseResolution(module, resp.Text()), nil
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil {
		return ""
	}
	return string(resp.PromptFeedback.BlockReason)
}
