package service

import (
	"context"
	"encoding/json"
	"sync"
)

// fakeAI returns a canned completion or error
type fakeAI struct {
	mu       sync.Mutex
	disabled bool
	reply    string
	err      error
	calls    int
	last     ChatCompletionRequest
	// block waits for ctx cancellation before returning
	block bool
}

func (f *fakeAI) IsEnabled() bool { return !f.disabled }

func (f *fakeAI) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return completion(f.reply), nil
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func completion(content string) *ChatCompletionResponse {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	var resp ChatCompletionResponse
	_ = json.Unmarshal(body, &resp)
	return &resp
}
