package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	rbac "github.com/bohemiyan/insights-rbac"
	"github.com/go-resty/resty/v2"
)

const systemPrompt = `You are a helpful assistant that explains people-analytics records clearly.
Given a user's question and the records they are allowed to see, answer the question
concisely and conversationally. Use only the records provided. If there are no
records, say that nothing was found.`

// maxRows caps how many records are sent to the model.
const maxRows = 10

var ErrEmptyCompletion = errors.New("llm returned no content")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Formatter turns filtered records into a natural-language answer through an
// OpenAI-compatible chat completions endpoint. It only ever sees rows that
// already passed the result filter.
type Formatter struct {
	client   *resty.Client
	endpoint string
	model    string
}

// NewFormatter builds a formatter posting to endpoint, e.g. https://host/v1/chat/completions.
func NewFormatter(endpoint, apiKey, model string, timeout time.Duration) *Formatter {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &Formatter{client: client, endpoint: endpoint, model: model}
}

// FormatResponse implements rbac.ResponseFormatter.
func (f *Formatter) FormatResponse(ctx context.Context, query string, rt rbac.ResourceType, rows []rbac.Record) (string, error) {
	payload, err := recordsPayload(rows)
	if err != nil {
		return "", err
	}

	req := chatRequest{
		Model:       f.model,
		Temperature: 0.1,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Question: %s\nResource type: %s\nRecords: %s", query, rt, payload)},
		},
	}

	var out chatResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(f.endpoint)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("llm returned %d: %s", resp.StatusCode(), msg)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func recordsPayload(rows []rbac.Record) (string, error) {
	if len(rows) == 0 {
		return "[]", nil
	}
	preview := rows
	if len(preview) > maxRows {
		preview = preview[:maxRows]
	}
	b, err := json.Marshal(preview)
	if err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}
	if len(rows) > maxRows {
		return fmt.Sprintf("first %d of %d records: %s", maxRows, len(rows), b), nil
	}
	return string(b), nil
}
