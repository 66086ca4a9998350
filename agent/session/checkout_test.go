package session

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

func TestCheckoutEmptyBasket(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	s, _, profiles := newTestController(t, chat, 0)

	_, err := s.Checkout(context.Background())
	if !errors.Is(err, contractx.ErrEmptyBasket) {
		t.Fatalf("expected ErrEmptyBasket, got %v", err)
	}
	if len(profiles.purchases) != 0 || profiles.updates != 0 {
		t.Fatal("empty checkout must not write anything")
	}
	if len(chat.requests) != 0 {
		t.Fatal("empty checkout must not call the model")
	}
}

func TestCheckoutPersistsAndResets(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []contractx.CompletionResult{
		{Content: "Enjoys tomato-based dishes; buys onions regularly."},
	}}
	s, _, profiles := newTestController(t, chat, 0)

	s.basket.Add(BasketItem{IngredientID: 1, Name: "Tomato", Price: 2.0})
	s.basket.Add(BasketItem{IngredientID: 1, Name: "Tomato", Price: 2.0})
	s.basket.Add(BasketItem{IngredientID: 2, Name: "Onion", Price: 1.0})

	receipt, err := s.Checkout(context.Background())
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	if len(receipt.Purchases) != 3 {
		t.Fatalf("purchase rows = %d, want 3", len(receipt.Purchases))
	}
	if receipt.Total != 5.0 {
		t.Fatalf("receipt total = %v, want 5.0", receipt.Total)
	}
	for _, row := range receipt.Purchases {
		if row.Quantity != 1 {
			t.Fatalf("row quantity = %d, want 1 per basket entry", row.Quantity)
		}
	}

	if len(profiles.purchases) != 3 {
		t.Fatalf("persisted rows = %d, want 3", len(profiles.purchases))
	}
	if profiles.purchasedAt != 1_700_000_000 {
		t.Fatalf("purchase timestamp = %v", profiles.purchasedAt)
	}
	if profiles.newSummary != "Enjoys tomato-based dishes; buys onions regularly." {
		t.Fatalf("profile summary = %q", profiles.newSummary)
	}
	if len(profiles.newVector) == 0 {
		t.Fatal("profile vector was not persisted")
	}

	if s.basket.Len() != 0 {
		t.Fatalf("basket size = %d after checkout, want 0", s.basket.Len())
	}
	if s.Customer().Conversations != 1 {
		t.Fatalf("conversation counter = %d, want 1", s.Customer().Conversations)
	}
	if receipt.NewSummary != profiles.newSummary {
		t.Fatalf("receipt summary = %q", receipt.NewSummary)
	}
}

func TestCheckoutPriceFailureKeepsBasket(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	s, catalog, profiles := newTestController(t, chat, 0)

	s.basket.Add(BasketItem{IngredientID: 1, Name: "Tomato", Price: 2.0})
	catalog.priceErr = errors.New("db unavailable")

	_, err := s.Checkout(context.Background())
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if s.basket.Len() != 1 {
		t.Fatalf("basket size = %d, want 1 after failed checkout", s.basket.Len())
	}
	if len(profiles.purchases) != 0 {
		t.Fatal("purchases were written despite price failure")
	}
}

func TestCheckoutProfileFailureKeepsBasket(t *testing.T) {
	t.Parallel()

	// No scripted responses: the profile merge call fails.
	chat := &fakeChat{}
	s, _, profiles := newTestController(t, chat, 0)

	s.basket.Add(BasketItem{IngredientID: 2, Name: "Onion", Price: 1.0})

	_, err := s.Checkout(context.Background())
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if s.basket.Len() != 1 {
		t.Fatalf("basket size = %d, want 1 after failed checkout", s.basket.Len())
	}
	if profiles.updates != 0 {
		t.Fatal("profile was updated despite merge failure")
	}
}

func TestBasketSynopsis(t *testing.T) {
	t.Parallel()

	b := NewBasket()
	if b.Synopsis() != "Basket: (empty)" {
		t.Fatalf("empty synopsis = %q", b.Synopsis())
	}

	b.Add(BasketItem{IngredientID: 1, Name: "Tomato", Price: 2.0})
	b.Add(BasketItem{IngredientID: 2, Name: "Onion", Price: 1.0})
	b.Add(BasketItem{IngredientID: 1, Name: "Tomato", Price: 2.0})

	want := "Basket: 2× Tomato, 1× Onion – total €5.00"
	if b.Synopsis() != want {
		t.Fatalf("synopsis = %q, want %q", b.Synopsis(), want)
	}
}
