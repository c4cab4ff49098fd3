// Package llm provides a client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sms-relay-go/internal/config"
	"sms-relay-go/internal/model"
	"sms-relay-go/pkg/log"
)

// Client defines the interface for an LLM completion client.
type Client interface {
	// Complete 发送完整的有序会话历史，返回第一条候选回复（去除首尾空白）。
	// 去除空白后内容为空也视为失败，因为空回复无法通过短信发送。
	// 所有失败都以 *CompletionError 返回。
	Complete(ctx context.Context, history []model.ChatMessage, userID string) (string, error)
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new completion client from the LLM config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	User        string    `json:"user,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// code 可能是字符串、数字或 null
func (e *apiError) code() string {
	raw := bytes.TrimSpace(e.Code)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (c *openAICompatibleClient) buildRequest(history []model.ChatMessage, userID string) chatRequest {
	msgs := make([]Message, 0, len(history)+1)
	if c.cfg.Prompt.System != "" {
		msgs = append(msgs, Message{Role: string(model.RoleSystem), Content: c.cfg.Prompt.System})
	}
	for _, m := range history {
		msgs = append(msgs, Message{Role: string(m.Role), Content: m.Content})
	}

	req := chatRequest{
		Model:    c.cfg.Model,
		Messages: msgs,
		User:     userID,
	}
	// 从全局配置注入生成参数（若非零值）
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		req.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		req.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		req.MaxTokens = &m
	}
	return req
}

// Complete calls the chat completions endpoint without streaming.
func (c *openAICompatibleClient) Complete(ctx context.Context, history []model.ChatMessage, userID string) (string, error) {
	reqBytes, err := json.Marshal(c.buildRequest(history, userID))
	if err != nil {
		return "", &CompletionError{Message: "failed to marshal chat request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", &CompletionError{Message: "failed to create chat request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &CompletionError{Message: "failed to call chat api", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CompletionError{StatusCode: resp.StatusCode, Message: "failed to read chat response", Err: err}
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		if decodeErr == nil && parsed.Error != nil {
			return "", &CompletionError{StatusCode: resp.StatusCode, Code: parsed.Error.code(), Message: parsed.Error.Message}
		}
		log.Warnw("[LLMClient] chat api returned an unstructured error", "status", resp.Status, "bodyLen", len(body))
		return "", &CompletionError{StatusCode: resp.StatusCode, Message: UnexpectedErrorMessage}
	}
	if decodeErr != nil {
		return "", &CompletionError{StatusCode: resp.StatusCode, Message: "failed to decode chat response", Err: decodeErr}
	}
	if len(parsed.Choices) == 0 {
		return "", &CompletionError{StatusCode: resp.StatusCode, Message: UnexpectedErrorMessage}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", &CompletionError{StatusCode: resp.StatusCode, Message: "completion returned empty content"}
	}
	return content, nil
}

// UnexpectedErrorMessage is used when the provider gives no structured error.
const UnexpectedErrorMessage = "an unexpected error occurred"

// CompletionError is the single error type returned by Client.
type CompletionError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *CompletionError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

func (e *CompletionError) Unwrap() error { return e.Err }
