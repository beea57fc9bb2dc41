// Package provider defines the opaque chat capability agents use to decide
// which tools to call. Concrete LLM routing lives outside this module; the
// Script implementation drives agents and tests without a network.
package provider

import (
	"context"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Options tune one chat call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Usage reports token accounting for a response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the provider's answer.
type Response struct {
	Content   string
	Model     string
	Provider  string
	Usage     Usage
	LatencyMs int64
}

// Provider is the chat capability boundary.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (*Response, error)
}

// Plan is the scripted tool-call sequence the Script provider emits as its
// response content, encoded as JSON.
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// PlanStep is one tool call an agent should issue.
type PlanStep struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}
