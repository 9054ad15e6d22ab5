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
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4"
	openAITemperature    = 0.7
)

// OpenAIGenerator calls any OpenAI-compatible /v1/chat/completions endpoint
// and parses the reply message as typed study content.
type OpenAIGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIGenerator builds an OpenAI-compatible Generator.
// baseURL should include the /v1 prefix and defaults to the hosted API.
func NewOpenAIGenerator(baseURL, apiKey, model string) (*OpenAIGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY missing", ErrNotConfigured)
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Generate implements Generator using the chat completions API.
func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	req = req.withDefaults()
	reqBody := oaiChatRequest{
		Model: g.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature: openAITemperature,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return GenerationResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return GenerationResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return GenerationResponse{}, fmt.Errorf("%w: openai request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return GenerationResponse{}, fmt.Errorf("%w: openai api error: %s", ErrUpstream, errResp.Error.Message)
		}
		return GenerationResponse{}, fmt.Errorf("%w: openai api error: %s", ErrUpstream, resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return GenerationResponse{}, fmt.Errorf("%w: openai decode: %v", ErrUpstream, err)
	}
	if len(chatResp.Choices) == 0 {
		return GenerationResponse{}, fmt.Errorf("%w: empty response from openai api", ErrUpstream)
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return GenerationResponse{}, fmt.Errorf("%w: empty response from openai api", ErrUpstream)
	}
	content, err := parseContent(req.Type, text)
	if err != nil {
		return GenerationResponse{}, err
	}
	return GenerationResponse{Type: req.Type, Content: content}, nil
}

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
