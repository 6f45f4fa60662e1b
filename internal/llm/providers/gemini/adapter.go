package gemini

import (
	"context"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/commandpost/overmind/internal/llm"
)

type Config struct {
	APIKey      string
	Model       string
	Temperature *float64
	TopP        *float64
	Timeout     time.Duration
}

type Adapter struct {
	cfg    Config
	client *genai.Client
}

const defaultRequestTimeout = 2 * time.Minute

func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &llm.ConfigurationError{Message: "gemini adapter requires an API key"}
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, llm.WrapTransportError("gemini", err)
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) Close() { a.client.Close() }

func (a *Adapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := req.Validate(); err != nil {
		return llm.Response{}, err
	}
	requestCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	model := a.client.GenerativeModel(a.cfg.Model)
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if a.cfg.Temperature != nil {
		model.SetTemperature(float32(*a.cfg.Temperature))
	}
	if a.cfg.TopP != nil {
		model.SetTopP(float32(*a.cfg.TopP))
	}

	resp, err := model.GenerateContent(requestCtx, genai.Text(req.User))
	if err != nil {
		return llm.Response{}, llm.WrapTransportError("gemini", err)
	}
	text := ExtractText(resp)
	if text == "" {
		return llm.Response{}, &llm.InvocationError{
			ProviderName: "gemini",
			Summary:      "gemini returned no candidate text",
		}
	}
	return llm.Response{Text: text, Raw: map[string]any{"candidates": len(resp.Candidates)}}, nil
}

// ExtractText joins the text parts of the first candidate.
func ExtractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}
