package advisory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/praisemwanza53/genset-monitoring/alerting"
	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/models"
)

// ErrNoAdvice is returned when the model answered without any text
var ErrNoAdvice = errors.New("advisory response contained no text")

const systemPrompt = "You are a maintenance assistant for a diesel generator. " +
	"Given the latest sensor reading and any alerts, reply with at most two short sentences " +
	"of practical advice for the operator."

// GroqClient talks to Groq through its OpenAI-compatible API
type GroqClient struct {
	model  string
	client *openai.Client
}

// NewGroqClient returns a client for cfg, or nil when no API key is set.
// cfg.Endpoint is the API base URL, e.g. https://api.groq.com/openai/v1.
func NewGroqClient(cfg config.AdvisoryConfig) *GroqClient {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		oc.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.Endpoint, "/"), "/chat/completions")
	}
	oc.HTTPClient = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}

	return &GroqClient{
		model:  cfg.Model,
		client: openai.NewClientWithConfig(oc),
	}
}

func userPrompt(r models.SensorReading, alerts []alerting.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reading at %s: fuel level %.1f%%, temperature %.1f°C.", r.Timestamp, r.FuelLevel, r.Temperature)
	if len(alerts) == 0 {
		b.WriteString(" No alerts.")
	}
	for _, a := range alerts {
		b.WriteString(" Alert: ")
		b.WriteString(a.Message)
		b.WriteString(".")
	}
	return b.String()
}

// Advise asks the model for a short commentary on r
func (c *GroqClient) Advise(ctx context.Context, r models.SensorReading, alerts []alerting.Alert) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(r, alerts)},
		},
		MaxTokens:   160,
		Temperature: 0.2,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("advisory endpoint returned %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("advisory request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoAdvice
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoAdvice
	}
	return text, nil
}
