package prompt

import (
	"strings"
	"testing"
)

func TestRenderSystemFillsDefaults(t *testing.T) {
	t.Parallel()

	out := RenderSystem(SystemData{})
	if !strings.Contains(out, "(none yet)") {
		t.Fatalf("missing summary default: %q", out)
	}
	if !strings.Contains(out, "Basket: (empty)") {
		t.Fatalf("missing basket default: %q", out)
	}
}

func TestRenderSystemInjectsState(t *testing.T) {
	t.Parallel()

	out := RenderSystem(SystemData{
		CustomerSummary: "Prefers vegetarian meals.",
		BasketSynopsis:  "Basket: 1× Tomato – total €2.00",
	})
	if !strings.Contains(out, "Prefers vegetarian meals.") {
		t.Fatalf("summary not rendered: %q", out)
	}
	if !strings.Contains(out, "1× Tomato") {
		t.Fatalf("basket not rendered: %q", out)
	}
}

func TestProfileInstructionNonEmpty(t *testing.T) {
	t.Parallel()

	if ProfileInstruction() == "" {
		t.Fatal("profile instruction is empty")
	}
}
