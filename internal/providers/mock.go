package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const MockClientName = "mock"

// MockClient is a Client for testing. It records every request so tests can
// assert on the prompts that were sent.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// ResponseFunc, when set, computes the response per request.
	ResponseFunc func(req *ChatRequest) (string, error)

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Requests returns a copy of all captured requests.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// LastRequest returns the most recent captured request, or nil.
func (c *MockClient) LastRequest() *ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

// Chat records the request and returns the configured response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	c.mu.Lock()
	c.requests = append(c.requests, req)
	count := len(c.requests)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
	}

	if c.ShouldFail {
		result.ErrorMessage = "mock client configured to fail"
		return result, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && count > c.FailAfter {
		result.ErrorMessage = fmt.Sprintf("mock client failed after %d requests", c.FailAfter)
		return result, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			result.ErrorMessage = ctx.Err().Error()
			return result, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	if c.ResponseFunc != nil {
		text, err := c.ResponseFunc(req)
		if err != nil {
			result.ErrorMessage = err.Error()
			return result, err
		}
		result.Content = text
	} else {
		result.Content = c.ResponseText
	}

	if req.ResponseFormat != nil {
		if len(c.ResponseJSON) > 0 {
			result.ParsedJSON = c.ResponseJSON
			result.Content = string(c.ResponseJSON)
		} else {
			parsed, err := ParseStructuredJSON(result.Content)
			if err != nil {
				result.ErrorMessage = err.Error()
				return result, err
			}
			result.ParsedJSON = parsed
		}
	}

	result.ExecutionTime = time.Since(start)
	result.Success = true
	return result, nil
}
