package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

type fakeCondenser struct {
	content  string
	err      error
	requests []contractx.CompletionRequest
}

func (f *fakeCondenser) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.CompletionResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return contractx.CompletionResult{}, f.err
	}
	return contractx.CompletionResult{Content: f.content}, nil
}

func fillTurns(c *Conversation, n int) {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			c.AddUser(fmt.Sprintf("user message %d", i))
		} else {
			c.AddAssistant(fmt.Sprintf("assistant message %d", i), nil)
		}
	}
}

func TestCondenseBelowCapIsNoop(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	fillTurns(c, 20)

	fake := &fakeCondenser{content: "should not be called"}
	if err := c.Condense(context.Background(), fake); err != nil {
		t.Fatalf("Condense() error = %v", err)
	}

	if c.Len() != 20 {
		t.Fatalf("turn count = %d, want 20", c.Len())
	}
	if len(fake.requests) != 0 {
		t.Fatalf("condenser was invoked %d times, want 0", len(fake.requests))
	}
	if c.Summary() != summaryPlaceholder {
		t.Fatalf("summary = %q, want placeholder", c.Summary())
	}
}

func TestCondenseOverflowTrimsToTrigger(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	fillTurns(c, 27)

	fake := &fakeCondenser{content: "the user discussed dinner plans"}
	if err := c.Condense(context.Background(), fake); err != nil {
		t.Fatalf("Condense() error = %v", err)
	}

	if c.Len() != DefaultTrigger {
		t.Fatalf("turn count = %d, want %d", c.Len(), DefaultTrigger)
	}
	if c.Summary() != "the user discussed dinner plans" {
		t.Fatalf("summary = %q", c.Summary())
	}
	if len(fake.requests) != 1 {
		t.Fatalf("condenser was invoked %d times, want 1", len(fake.requests))
	}
	if fake.requests[0].MaxTokens != condenseMaxTokens {
		t.Fatalf("max tokens = %d, want %d", fake.requests[0].MaxTokens, condenseMaxTokens)
	}

	// Newest turn must survive the trim.
	turns := c.Turns()
	last := turns[len(turns)-1]
	if last.Content != "user message 26" {
		t.Fatalf("last turn = %q, want newest turn", last.Content)
	}
}

func TestCondenseKeepsToolTurnWithItsAssistant(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	fillTurns(c, 11)
	c.AddAssistant("", []contractx.ToolCall{{ID: "call-1", Name: "get_price"}})
	c.AddTool("call-1", `{"price":2}`)
	fillTurns(c, 14) // tool turn now sits exactly at the default cut point

	fake := &fakeCondenser{content: "summary chunk"}
	if err := c.Condense(context.Background(), fake); err != nil {
		t.Fatalf("Condense() error = %v", err)
	}

	turns := c.Turns()
	for _, turn := range turns {
		if turn.Role != contractx.RoleTool {
			continue
		}
		// Its issuing assistant turn must still be present before it.
		found := false
		for _, prev := range turns {
			if prev.Role == contractx.RoleAssistant && len(prev.ToolCalls) > 0 && prev.ToolCalls[0].ID == turn.ToolCallID {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("tool turn %q survived without its assistant turn", turn.ToolCallID)
		}
	}
}

func TestCondenseAppendsToExistingSummary(t *testing.T) {
	t.Parallel()

	c := NewConversation(WithLimits(6, 3))
	fillTurns(c, 7)

	fake := &fakeCondenser{content: "first pass"}
	if err := c.Condense(context.Background(), fake); err != nil {
		t.Fatalf("Condense() error = %v", err)
	}

	fillTurns(c, 5)
	fake.content = "second pass"
	if err := c.Condense(context.Background(), fake); err != nil {
		t.Fatalf("Condense() error = %v", err)
	}

	want := "first pass\nsecond pass"
	if c.Summary() != want {
		t.Fatalf("summary = %q, want %q", c.Summary(), want)
	}
}

func TestCondenseFailureLeavesTurnsIntact(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	fillTurns(c, 30)

	fake := &fakeCondenser{err: errors.New("provider down")}
	err := c.Condense(context.Background(), fake)
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}

	if c.Len() != 30 {
		t.Fatalf("turn count = %d, want 30 after failed condense", c.Len())
	}
	if c.Summary() != summaryPlaceholder {
		t.Fatalf("summary changed on failure: %q", c.Summary())
	}
}

func TestRecentTranscriptSkipsToolTurns(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	c.AddUser("I want pasta")
	c.AddAssistant("", []contractx.ToolCall{{ID: "call-1", Name: "retrieve_meal"}})
	c.AddTool("call-1", `[{"id":1,"name":"Lasagne"}]`)
	c.AddAssistant("How about lasagne?", nil)

	transcript := c.RecentTranscript(15)
	if strings.Contains(transcript, "Lasagne\"") {
		t.Fatalf("transcript leaked tool output: %q", transcript)
	}
	wantLines := []string{"user: I want pasta", "assistant: How about lasagne?"}
	for _, line := range wantLines {
		if !strings.Contains(transcript, line) {
			t.Fatalf("transcript missing %q: %q", line, transcript)
		}
	}
}

func TestSummaryTurnRole(t *testing.T) {
	t.Parallel()

	c := NewConversation()
	turn := c.SummaryTurn()
	if turn.Role != contractx.RoleAssistant {
		t.Fatalf("summary turn role = %q, want assistant", turn.Role)
	}
	if turn.Content != summaryPlaceholder {
		t.Fatalf("summary turn content = %q", turn.Content)
	}
}
