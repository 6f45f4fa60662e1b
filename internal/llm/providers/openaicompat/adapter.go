package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/commandpost/overmind/internal/llm"
)

type Config struct {
	Provider        string
	APIKey          string
	BaseURL         string
	Path            string
	Model           string
	MaxOutputTokens int
	Temperature     *float64
	TopP            *float64
	Timeout         time.Duration
	ExtraHeaders    map[string]string
}

type Adapter struct {
	cfg    Config
	client *http.Client
}

const defaultRequestTimeout = 2 * time.Minute

func NewAdapter(cfg Config) *Adapter {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "/v1/chat/completions"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 0},
	}
}

func (a *Adapter) Name() string { return a.cfg.Provider }

func (a *Adapter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := req.Validate(); err != nil {
		return llm.Response{}, err
	}
	requestCtx, cancel := withDeadline(ctx, a.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(a.toChatCompletionsBody(req))
	if err != nil {
		return llm.Response{}, llm.WrapTransportError(a.cfg.Provider, err)
	}

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, a.cfg.BaseURL+a.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, llm.WrapTransportError(a.cfg.Provider, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range a.cfg.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return llm.Response{}, llm.WrapTransportError(a.cfg.Provider, err)
	}
	defer resp.Body.Close()

	return parseChatCompletionsResponse(a.cfg.Provider, resp)
}

func (a *Adapter) toChatCompletionsBody(req llm.Request) map[string]any {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	if strings.TrimSpace(req.User) != "" {
		messages = append(messages, map[string]string{"role": "user", "content": req.User})
	}
	body := map[string]any{
		"model":    a.cfg.Model,
		"messages": messages,
	}
	if a.cfg.MaxOutputTokens > 0 {
		body["max_tokens"] = a.cfg.MaxOutputTokens
	}
	if a.cfg.Temperature != nil {
		body["temperature"] = *a.cfg.Temperature
	}
	if a.cfg.TopP != nil {
		body["top_p"] = *a.cfg.TopP
	}
	return body
}

func parseChatCompletionsResponse(provider string, resp *http.Response) (llm.Response, error) {
	rawBytes, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return llm.Response{}, llm.WrapTransportError(provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return llm.Response{}, llm.ErrorFromHTTPStatus(provider, resp.StatusCode, string(rawBytes))
	}
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(rawBytes))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return llm.Response{}, &llm.InvocationError{
			ProviderName: provider,
			Summary:      provider + " returned a malformed response body",
			Detail:       err.Error(),
		}
	}
	text, err := extractText(raw)
	if err != nil {
		return llm.Response{}, &llm.InvocationError{
			ProviderName: provider,
			Summary:      provider + " response missing assistant text",
			Detail:       err.Error(),
		}
	}
	return llm.Response{Text: text, Raw: raw}, nil
}

func extractText(raw map[string]any) (string, error) {
	choicesAny, ok := raw["choices"].([]any)
	if !ok || len(choicesAny) == 0 {
		return "", errMissingChoices
	}
	choice, ok := choicesAny[0].(map[string]any)
	if !ok {
		return "", errMissingChoices
	}
	msg, _ := choice["message"].(map[string]any)
	content, _ := msg["content"].(string)
	return strings.TrimSpace(content), nil
}

var errMissingChoices = &missingChoicesError{}

type missingChoicesError struct{}

func (*missingChoicesError) Error() string { return "chat.completions response missing choices" }

func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), timeout)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
