package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/config"
	"github.com/tw2kbot/tw2kbot/internal/errs"
)

// systemInstruction is prepended to every prompt so the oracle is asked
// for the JSON shape parse.go parses first.
const systemInstruction = `Reply with a single JSON object: {"action": "warp|trade|scan|wait|bank|quit", "target_sector": int, "commodity": "fuel|organics|equipment", "side": "buy|sell", "qty": int, "bank_amount": int, "bank_op": "deposit|withdraw"}. Only fields relevant to the chosen action need be non-zero.`

// renderPrompt turns a Prompt into the text body sent to every
// provider; the wire shape (OpenAI-style chat messages, Ollama's flat
// prompt field, Gemini's contents array) differs per provider below,
// but they all render the same text.
func renderPrompt(p Prompt) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "sector=%d credits=%d holds=%d/%d turns=%d\n", p.CurrentSector, p.Credits, p.HoldsUsed, p.HoldsTotal, p.TurnsRemaining)
	for _, a := range p.Adjacent {
		fmt.Fprintf(&b, "adjacent sector=%d port=%v class=%s\n", a.SectorID, a.HasPort, a.PortClass)
	}
	if p.Mode == "full" {
		for _, h := range p.RecentActions {
			fmt.Fprintf(&b, "history action=%s outcome=%s\n", h.Action, h.Outcome)
		}
	}
	return b.String()
}

func classifyHTTPError(err error, statusCode int) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w", errs.ErrLLMTimeout)
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w", errs.ErrLLMModelNotFound)
	case 0:
		return fmt.Errorf("%w: %v", errs.ErrLLMConnectionError, err)
	default:
		return fmt.Errorf("%w: status %d", errs.ErrLLMConnectionError, statusCode)
	}
}

// OllamaOracle talks to a local ollama /api/generate endpoint.
type OllamaOracle struct {
	cfg    config.LLMProviderConfig
	client *http.Client
}

func NewOllamaOracle(cfg config.LLMProviderConfig) *OllamaOracle {
	return &OllamaOracle{cfg: cfg, client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (o *OllamaOracle) Complete(ctx context.Context, prompt Prompt) (Response, error) {
	body, _ := json.Marshal(ollamaRequest{
		Model:  o.cfg.Model,
		Prompt: systemInstruction + "\n" + renderPrompt(prompt),
		Stream: false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Response{}, classifyHTTPError(err, 0)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Response{}, classifyHTTPError(nil, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", errs.ErrLLMInvalidResponse, err)
	}
	var out ollamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", errs.ErrLLMInvalidResponse, err)
	}
	return Response{Text: out.Response}, nil
}

// OpenAIOracle talks to an OpenAI-compatible /v1/chat/completions endpoint.
type OpenAIOracle struct {
	cfg    config.LLMProviderConfig
	apiKey string
	client *http.Client
}

func NewOpenAIOracle(cfg config.LLMProviderConfig, apiKey string) *OpenAIOracle {
	return &OpenAIOracle{cfg: cfg, apiKey: apiKey, client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIOracle) Complete(ctx context.Context, prompt Prompt) (Response, error) {
	body, _ := json.Marshal(openAIRequest{
		Model: o.cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: renderPrompt(prompt)},
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return Response{}, classifyHTTPError(err, 0)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Response{}, classifyHTTPError(nil, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", errs.ErrLLMInvalidResponse, err)
	}
	var out openAIResponse
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Choices) == 0 {
		return Response{}, fmt.Errorf("%w", errs.ErrLLMInvalidResponse)
	}
	return Response{Text: out.Choices[0].Message.Content}, nil
}

// GeminiOracle talks to a Generative Language API generateContent endpoint.
type GeminiOracle struct {
	cfg    config.LLMProviderConfig
	apiKey string
	client *http.Client
}

func NewGeminiOracle(cfg config.LLMProviderConfig, apiKey string) *GeminiOracle {
	return &GeminiOracle{cfg: cfg, apiKey: apiKey, client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (o *GeminiOracle) Complete(ctx context.Context, prompt Prompt) (Response, error) {
	body, _ := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: systemInstruction + "\n" + renderPrompt(prompt)}}}},
	})
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", o.cfg.BaseURL, o.cfg.Model, o.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Response{}, classifyHTTPError(err, 0)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Response{}, classifyHTTPError(nil, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", errs.ErrLLMInvalidResponse, err)
	}
	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return Response{}, fmt.Errorf("%w", errs.ErrLLMInvalidResponse)
	}
	return Response{Text: out.Candidates[0].Content.Parts[0].Text}, nil
}
