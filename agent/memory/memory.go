package memory

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

const (
	// DefaultHardCap bounds the turn log; condensation runs once the log
	// exceeds it.
	DefaultHardCap = 26
	// DefaultTrigger is how many of the most recent turns survive a pass.
	DefaultTrigger = 15

	summaryPlaceholder  = "(conversation summary will appear here as needed)"
	condenseInstruction = "Summarise the following chat history in under 150 words, preserve facts:"
	condenseMaxTokens   = 200
)

// Conversation is an append-only turn log with a single rolling summary slot.
// Overflow beyond the hard cap is condensed into the summary so the context
// sent to the model stays bounded. One instance per session; not safe for
// concurrent use.
type Conversation struct {
	hardCap int
	trigger int
	summary string
	turns   []contractx.Turn
}

type Option func(*Conversation)

// WithLimits overrides the hard cap and trigger. Values <= 0 keep defaults;
// trigger is clamped below the hard cap.
func WithLimits(hardCap, trigger int) Option {
	return func(c *Conversation) {
		if hardCap > 0 {
			c.hardCap = hardCap
		}
		if trigger > 0 {
			c.trigger = trigger
		}
		if c.trigger >= c.hardCap {
			c.trigger = c.hardCap - 1
		}
	}
}

func NewConversation(opts ...Option) *Conversation {
	c := &Conversation{
		hardCap: DefaultHardCap,
		trigger: DefaultTrigger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Conversation) AddUser(content string) {
	c.turns = append(c.turns, contractx.Turn{Role: contractx.RoleUser, Content: content})
}

func (c *Conversation) AddAssistant(content string, calls []contractx.ToolCall) {
	c.turns = append(c.turns, contractx.Turn{
		Role:      contractx.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	})
}

func (c *Conversation) AddTool(toolCallID, content string) {
	c.turns = append(c.turns, contractx.Turn{
		Role:       contractx.RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
	})
}

func (c *Conversation) Len() int {
	return len(c.turns)
}

// Turns returns a copy of the current turn log.
func (c *Conversation) Turns() []contractx.Turn {
	return append([]contractx.Turn(nil), c.turns...)
}

// Summary returns the rolling summary, or the placeholder before the first
// condensation.
func (c *Conversation) Summary() string {
	if c.summary == "" {
		return summaryPlaceholder
	}
	return c.summary
}

// SummaryTurn renders the summary slot as the assistant turn that follows
// the system prompt in every model call.
func (c *Conversation) SummaryTurn() contractx.Turn {
	return contractx.Turn{Role: contractx.RoleAssistant, Content: c.Summary()}
}

// RecentTranscript renders the user/assistant lines of the last n turns,
// used by the checkout profile merge.
func (c *Conversation) RecentTranscript(n int) string {
	turns := c.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return renderTurns(turns)
}

// Condense folds overflow turns into the rolling summary when the log
// exceeds the hard cap. The cut is turn-aligned: it backs up past tool-role
// turns so a tool result is never separated from the assistant turn that
// issued it. On condenser failure the turn log is left untouched.
func (c *Conversation) Condense(ctx context.Context, condenser contractx.ChatModel) error {
	if len(c.turns) <= c.hardCap {
		return nil
	}

	cut := len(c.turns) - c.trigger
	for cut > 0 && c.turns[cut].Role == contractx.RoleTool {
		cut--
	}
	if cut <= 0 {
		return nil
	}

	rendered := renderTurns(c.turns[:cut])
	if rendered != "" {
		res, err := condenser.Complete(ctx, contractx.CompletionRequest{
			Messages: []contractx.Turn{
				{Role: contractx.RoleSystem, Content: condenseInstruction},
				{Role: contractx.RoleUser, Content: rendered},
			},
			MaxTokens: condenseMaxTokens,
		})
		if err != nil {
			return fmt.Errorf("%w: condense history: %v", contractx.ErrModelInvoke, err)
		}
		if chunk := strings.TrimSpace(res.Content); chunk != "" {
			if c.summary == "" {
				c.summary = chunk
			} else {
				c.summary = c.summary + "\n" + chunk
			}
		}
	}

	c.turns = append([]contractx.Turn(nil), c.turns[cut:]...)
	return nil
}

// renderTurns flattens user/assistant turns into "role: content" lines for
// the condenser prompt. Tool and system turns carry no conversational facts
// worth summarising.
func renderTurns(turns []contractx.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Role != contractx.RoleUser && t.Role != contractx.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}
