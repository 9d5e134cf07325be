// Package ollama implements llm.Backend on top of a local Ollama server.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ollama/ollama/api"

	"github.com/pythautom/pythautom/internal/llm"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 11434
)

var errStopped = errors.New("stream stopped by caller")

// Config selects the server and model.
type Config struct {
	Host string
	Port int
	// Model may be empty, in which case the first model the server lists is used.
	Model      string
	HTTPClient *http.Client
}

// Backend talks to Ollama's chat API.
type Backend struct {
	client    *api.Client
	baseURL   string
	connected atomic.Bool

	mu    sync.RWMutex
	model string
}

var _ llm.Backend = (*Backend)(nil)

// New builds a backend. It does not contact the server; call Connect for that.
func New(cfg Config) (*Backend, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid ollama port %d", port)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port))}
	return &Backend{
		client:  api.NewClient(base, httpClient),
		baseURL: base.String(),
		model:   cfg.Model,
	}, nil
}

func (b *Backend) Name() string { return "Ollama" }

func (b *Backend) Model() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

func (b *Backend) Available() bool { return b.connected.Load() }

// Connect checks the server responds and the configured model is installed.
func (b *Backend) Connect(ctx context.Context) error {
	b.connected.Store(false)
	if err := b.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama at %s is not reachable: %w", b.baseURL, err)
	}
	list, err := b.client.List(ctx)
	if err != nil {
		return fmt.Errorf("listing ollama models: %w", err)
	}
	if len(list.Models) == 0 {
		return fmt.Errorf("ollama at %s has no models installed", b.baseURL)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.model == "" {
		b.model = list.Models[0].Name
	} else if !hasModel(list.Models, b.model) {
		return fmt.Errorf("model %q is not installed (run: ollama pull %s)", b.model, b.model)
	}
	b.connected.Store(true)
	return nil
}

func hasModel(models []api.ListModelResponse, want string) bool {
	for _, m := range models {
		for _, name := range []string{m.Name, m.Model} {
			if name == want || strings.TrimSuffix(name, ":latest") == want {
				return true
			}
		}
	}
	return false
}

func (b *Backend) IdentifyDependencies(ctx context.Context, req llm.DependencyRequest) ([]string, error) {
	if !b.Available() {
		return []string{llm.ErrorMarker + " LLM not available"}, nil
	}
	reply, err := b.complete(ctx, llm.DependencyPrompt(req), req.UserRequest, llm.PlanningTemperature, json.RawMessage(llm.DependencySchema))
	if err != nil {
		return []string{fmt.Sprintf("%s %v", llm.ErrorMarker, err)}, nil
	}
	return llm.ParseDependencies(reply), nil
}

func (b *Backend) GenerateCodeStream(ctx context.Context, req llm.GenerateRequest, onFragment func(string), cancelled func() bool) (string, error) {
	if !b.Available() {
		return "", llm.ErrNotConnected
	}
	stream := true
	chat := &api.ChatRequest{
		Model:    b.Model(),
		Messages: []api.Message{{Role: "user", Content: llm.GenerationPrompt(req)}},
		Stream:   &stream,
		Options:  map[string]any{"temperature": llm.GenerationTemperature},
	}

	var full strings.Builder
	err := b.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		if cancelled != nil && cancelled() {
			return errStopped
		}
		if piece := resp.Message.Content; piece != "" {
			full.WriteString(piece)
			if onFragment != nil {
				onFragment(piece)
			}
		}
		return nil
	})
	if errors.Is(err, errStopped) || (cancelled != nil && cancelled()) {
		return full.String(), nil
	}
	if err != nil {
		return full.String(), fmt.Errorf("streaming from %s: %w", b.Model(), err)
	}
	return full.String(), nil
}

func (b *Backend) ResolvePackage(ctx context.Context, module, errorMessage string) (llm.Resolution, error) {
	if !b.Available() {
		return llm.Resolution{Module: module, Reason: "LLM not available"}, llm.ErrNotConnected
	}
	reply, err := b.complete(ctx, "", llm.ResolvePrompt(module, errorMessage), llm.ResolveTemperature, nil)
	if err != nil {
		return llm.Resolution{Module: module, Reason: err.Error()}, err
	}
	return llm.ParseResolution(module, reply), nil
}

// complete runs a non-streaming chat and returns the reply text.
func (b *Backend) complete(ctx context.Context, system, user string, temperature float64, format json.RawMessage) (string, error) {
	stream := false
	var msgs []api.Message
	if system != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: system})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: user})

	chat := &api.ChatRequest{
		Model:    b.Model(),
		Messages: msgs,
		Stream:   &stream,
		Format:   format,
		Options:  map[string]any{"temperature": temperature},
	}
	var out strings.Builder
	if err := b.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("chat with %s: %w", b.Model(), err)
	}
	return out.String(), nil
}
