// Package aitest provides a scripted ai.Generator for tests.
package aitest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/embernet/tapestry-sub001/internal/ai"
)

// ErrExhausted is returned once the script has no more replies.
var ErrExhausted = errors.New("aitest: no scripted reply left")

// Reply is one scripted outcome.
type Reply struct {
	Response *ai.Response
	Err      error
	// Hook, if set, runs before the reply is returned.
	Hook func(ctx context.Context, req ai.Request)
}

// Fake returns scripted replies in order and records every request.
type Fake struct {
	mu       sync.Mutex
	replies  []Reply
	requests []ai.Request
	// Fallback answers requests once the script is exhausted.
	Fallback func(req ai.Request) (*ai.Response, error)
}

// New creates a fake with the given script.
func New(replies ...Reply) *Fake {
	return &Fake{replies: replies}
}

// Push appends replies to the script.
func (f *Fake) Push(replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

// Generate implements ai.Generator.
func (f *Fake) Generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		fallback := f.Fallback
		f.mu.Unlock()
		if fallback != nil {
			return fallback(req)
		}
		return nil, ErrExhausted
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	f.mu.Unlock()

	if r.Hook != nil {
		r.Hook(ctx, req)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Response, nil
}

// Requests returns every request received so far.
func (f *Fake) Requests() []ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.Request(nil), f.requests...)
}

// JSON builds a reply whose text is v encoded as JSON.
func JSON(v any) Reply {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Reply{Response: &ai.Response{Text: string(b)}}
}

// Text builds a reply with raw text.
func Text(s string) Reply {
	return Reply{Response: &ai.Response{Text: s}}
}

// Fail builds a failing reply.
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Action is a convenience for building structured replies.
func Action(tool string, params map[string]any) map[string]any {
	b, err := json.Marshal(params)
	if err != nil {
		panic(err)
	}
	return map[string]any{"tool": tool, "parameters": string(b)}
}
