package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

// Handler executes one tool call. Arguments are the decoded JSON object the
// model produced. A returned error is converted into a textual tool result;
// it never aborts the conversation loop.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry maps tool names to their schema and handler. Tools are registered
// once at startup; the definition list is passed to the model alongside
// every completion request.
type Registry struct {
	defs     []contractx.ToolDefinition
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler, 16),
	}
}

func (r *Registry) Register(def contractx.ToolDefinition, h Handler) error {
	if def.Name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	if h == nil {
		return fmt.Errorf("%w: tool=%s has no handler", contractx.ErrValidation, def.Name)
	}
	if _, exists := r.handlers[def.Name]; exists {
		return fmt.Errorf("%w: tool=%s already registered", contractx.ErrValidation, def.Name)
	}
	r.defs = append(r.defs, def)
	r.handlers[def.Name] = h
	return nil
}

func (r *Registry) MustRegister(def contractx.ToolDefinition, h Handler) {
	if err := r.Register(def, h); err != nil {
		panic(err)
	}
}

// Definitions returns the registered tool schemas in registration order.
func (r *Registry) Definitions() []contractx.ToolDefinition {
	return append([]contractx.ToolDefinition(nil), r.defs...)
}

// Dispatch resolves and runs one model-issued tool call. Every dispatch,
// success or failure, yields exactly one tool-role turn referencing the
// originating call id: unknown tools and handler errors become result text,
// structured results are JSON-encoded.
func (r *Registry) Dispatch(ctx context.Context, call contractx.ToolCall) contractx.Turn {
	content := r.execute(ctx, call)
	log.Debug().Str("tool", call.Name).Str("call_id", call.ID).Msg("tool dispatched")
	return contractx.Turn{
		Role:       contractx.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
	}
}

func (r *Registry) execute(ctx context.Context, call contractx.ToolCall) string {
	h, ok := r.handlers[call.Name]
	if !ok {
		return fmt.Sprintf("Unknown tool '%s'", call.Name)
	}

	args, err := decodeArgs(call.Arguments)
	if err != nil {
		return fmt.Sprintf("Error from %s: %v", call.Name, err)
	}

	result, err := h(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error from %s: %v", call.Name, err)
	}

	if s, ok := result.(string); ok {
		return s
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Error from %s: %v", call.Name, err)
	}
	return string(encoded)
}

func decodeArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %v", err)
	}
	return args, nil
}
