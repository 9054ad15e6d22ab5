package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-pro"
)

// GeminiGenerator calls the Google AI Studio (Gemini) generateContent API
// with a single JSON-only prompt.
type GeminiGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGeminiGenerator builds a Gemini-backed Generator.
func NewGeminiGenerator(apiKey, model string) (*GeminiGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY missing", ErrNotConfigured)
	}
	model = normalizeGeminiModel(model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Generate implements Generator using Gemini. Markdown code fences around
// the reply are stripped before parsing.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	req = req.withDefaults()
	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: systemPrompt + " " + userPrompt(req)}},
		}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return GenerationResponse{}, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return GenerationResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("%w: gemini request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp geminiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return GenerationResponse{}, fmt.Errorf("%w: gemini api error: %s", ErrUpstream, errResp.Error.Message)
		}
		return GenerationResponse{}, fmt.Errorf("%w: gemini api error: %s", ErrUpstream, resp.Status)
	}

	var genResp geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return GenerationResponse{}, fmt.Errorf("%w: gemini decode: %v", ErrUpstream, err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return GenerationResponse{}, fmt.Errorf("%w: empty response from gemini", ErrUpstream)
	}
	text := stripCodeFences(genResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return GenerationResponse{}, fmt.Errorf("%w: empty response from gemini", ErrUpstream)
	}
	content, err := parseContent(req.Type, text)
	if err != nil {
		return GenerationResponse{}, err
	}
	return GenerationResponse{Type: req.Type, Content: content}, nil
}

func normalizeGeminiModel(model string) string {
	model = strings.TrimSpace(model)
	return strings.TrimPrefix(model, "models/")
}

// Gemini request/response types.

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
