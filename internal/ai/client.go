// Package ai calls an OpenAI-compatible chat-completions endpoint to turn
// extracted lab result text into a product description.
package ai

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
)

// systemPrompt constrains the model to a compliance-safe description derived
// only from facts present in the lab results text.
const systemPrompt = "You are an expert copywriter specializing in the cannabis industry. " +
	"Analyze the provided lab results text and generate a compelling, concise, and compliant " +
	"product description suitable for a retailer's website or product listing. Focus *only* on " +
	"key data points present in the text like cannabinoids (THC, CBD percentages), terpenes, " +
	"and overall product profile. Keep the description brief, informative, and engaging."

// Client talks to a hosted chat-completions API.
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string    `json:"model"`
	Messages    []chatMsg `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResp struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient constructs a Client with sane defaults.
func NewClient(baseURL, apiKey, model string, maxTokens int, temperature float64) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		HTTPClient:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Describe submits the extracted document text as the user turn and returns
// the generated description.
func (c *Client) Describe(ctx context.Context, extractedText string) (string, error) {
	if c.HTTPClient == nil {
		return "", errors.New("ai: http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("ai: api key is required")
	}
	model := strings.TrimSpace(c.Model)
	if model == "" {
		return "", errors.New("ai: model is required")
	}

	reqBody := chatReq{
		Model:       model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Messages: []chatMsg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Analyze the following lab results text and generate a product description:\n\n---\n%s\n---", extractedText)},
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("ai: %s", msg)
	}

	var decoded chatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("ai: empty response")
	}
	out := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("ai: empty response")
	}
	return out, nil
}
