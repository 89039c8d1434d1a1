package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chat sends a chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	orReq := openRouterRequest{
		Model:       model,
		Messages:    make([]openRouterMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Usage:       &openRouterUsageRequest{Include: true},
	}
	for _, m := range req.Messages {
		orReq.Messages = append(orReq.Messages, openRouterMessage{Role: m.Role, Content: m.Content})
	}

	if req.ResponseFormat != nil {
		rf, err := adaptedResponseFormat(model, req.ResponseFormat)
		if err != nil {
			return nil, err
		}
		orReq.ResponseFormat = rf
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	// Pointer so retries can inject a nonce.
	orResp, attempts, httpErr := c.doRequest(ctx, "/chat/completions", &orReq)

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenRouterName,
		Attempts:  attempts,
	}

	if httpErr != nil {
		result.Success = false
		result.ErrorType = "http_error"
		result.ErrorMessage = httpErr.Error()
		result.TotalTime = time.Since(start)
		if rle, ok := IsRateLimitError(httpErr); ok {
			result.ErrorType = "rate_limited"
			result.RetryAfter = rle.RetryAfter
		}
		return result, httpErr
	}

	if len(orResp.Choices) == 0 {
		result.Success = false
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		result.TotalTime = time.Since(start)
		return result, fmt.Errorf("no choices in response")
	}

	content := ""
	if raw := orResp.Choices[0].Message.Content; raw != nil {
		switch v := raw.(type) {
		case string:
			content = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				result.Success = false
				result.ErrorType = "content_marshal_error"
				result.ErrorMessage = fmt.Sprintf("failed to marshal content: %v", err)
				result.TotalTime = time.Since(start)
				return result, fmt.Errorf("failed to marshal content: %w", err)
			}
			content = string(b)
		}
	}

	result.Success = true
	result.Content = content
	result.ModelUsed = orResp.Model
	result.PromptTokens = orResp.Usage.PromptTokens
	result.CompletionTokens = orResp.Usage.CompletionTokens
	result.TotalTokens = orResp.Usage.TotalTokens
	result.ReasoningTokens = orResp.Usage.CompletionTokensDetails.ReasoningTokens
	result.CostUSD = orResp.Usage.Cost
	if result.CostUSD == 0 {
		result.CostUSD = orResp.Usage.NativeTotalCost
	}
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	if req.ResponseFormat != nil && content != "" {
		parsed, err := ParseStructuredJSON(content)
		if err == nil {
			err = ValidateStructuredJSON(req.ResponseFormat.JSONSchema, parsed)
		}
		if err != nil {
			result.Success = false
			result.ErrorType = "json_parse"
			result.ErrorMessage = err.Error()
		} else {
			result.ParsedJSON = parsed
		}
	}

	return result, nil
}
