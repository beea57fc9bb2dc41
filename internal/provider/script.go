package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Script is a deterministic local provider: it maps task keywords to canned
// tool-call plans. It honors context cancellation like a network provider
// would, optionally simulating latency.
type Script struct {
	// Plans maps a lowercase keyword to the plan returned when the last
	// user message contains it. First registered match wins.
	order []string
	plans map[string]Plan

	// Fallback is returned when no keyword matches. A nil Steps slice
	// yields an empty plan (agent does nothing, successfully).
	Fallback Plan

	// Latency is slept (cancellably) before answering.
	Latency time.Duration

	// Err, when set, fails every call; used to exercise provider-failure
	// paths.
	Err error
}

// NewScript creates an empty scripted provider.
func NewScript() *Script {
	return &Script{plans: make(map[string]Plan)}
}

// On registers a plan for tasks containing keyword.
func (s *Script) On(keyword string, plan Plan) *Script {
	key := strings.ToLower(keyword)
	if _, exists := s.plans[key]; !exists {
		s.order = append(s.order, key)
	}
	s.plans[key] = plan
	return s
}

// Chat implements Provider.
func (s *Script) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	start := time.Now()

	if s.Err != nil {
		return nil, s.Err
	}

	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	plan := s.Fallback
	task := lastUserContent(messages)
	for _, key := range s.order {
		if strings.Contains(strings.ToLower(task), key) {
			plan = s.plans[key]
			break
		}
	}

	content, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}

	return &Response{
		Content:   string(content),
		Model:     "script",
		Provider:  "local",
		Usage:     Usage{PromptTokens: len(task) / 4, CompletionTokens: len(content) / 4, TotalTokens: (len(task) + len(content)) / 4},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// ParsePlan decodes a plan from response content.
func ParsePlan(content string) (Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return Plan{}, fmt.Errorf("response is not a tool plan: %w", err)
	}
	return plan, nil
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
