package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
)

type DeepSeekClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

const DeepSeekID = "deepseek"

const defaultAPIURL = "https://api.deepseek.com/v1/chat/completions"

// Replies returned instead of an error when a completion call fails.
// The two texts are distinct so users can tell a dead endpoint from a
// response the client could not make sense of.
const (
	ContactErrorReply = "Sorry, I encountered an error while contacting DeepSeek API."
	ParseErrorReply   = "Sorry, I had trouble understanding the response from DeepSeek."
)

const (
	temperature = 0.7
	maxTokens   = 2000
)

func NewDeepSeekClient() *DeepSeekClient {
	url := os.Getenv("DEEPSEEK_API_URL")
	if url == "" {
		url = defaultAPIURL
	}

	return &DeepSeekClient{
		apiKey:     os.Getenv("DEEPSEEK_API_KEY"),
		url:        url,
		httpClient: &http.Client{},
	}
}

func (c *DeepSeekClient) ID() string {
	return DeepSeekID
}

type chatRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prior turns plus the prompt to the chat completions endpoint
// and returns the assistant text. Failures are terminal for the call: they are
// logged and reported as a fixed apology reply, never as an error.
func (c *DeepSeekClient) Complete(ctx context.Context, req Request) string {
	messages := make([]Turn, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, Turn{Role: RoleUser, Content: req.Prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal completion request")
		return ContactErrorReply
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		log.Error().Err(err).Str("url", c.url).Msg("failed to build completion request")
		return ContactErrorReply
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error().Err(err).Str("url", c.url).Msg("completion request failed")
		return ContactErrorReply
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("failed to read completion response")
		return ContactErrorReply
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("model", req.Model).
			Str("body", truncate(string(body), 400)).
			Msg("completion returned non-success status")
		return ContactErrorReply
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.Error().Err(err).Str("body", truncate(string(body), 400)).Msg("failed to parse completion response")
		return ParseErrorReply
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		log.Error().Str("body", truncate(string(body), 400)).Msg("completion response missing choices content")
		return ParseErrorReply
	}

	return *parsed.Choices[0].Message.Content
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
