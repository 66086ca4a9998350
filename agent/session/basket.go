package session

import (
	"fmt"
	"strings"
)

// BasketItem is one selected ingredient at the price it carried when added.
type BasketItem struct {
	IngredientID int64
	Name         string
	Price        float64
}

// Basket is the transient multiset of items pending checkout. Repeated adds
// of the same ingredient keep separate entries; aggregation happens only
// when rendering the synopsis.
type Basket struct {
	items []BasketItem
	total float64
}

func NewBasket() *Basket {
	return &Basket{}
}

func (b *Basket) Add(item BasketItem) {
	b.items = append(b.items, item)
	b.total += item.Price
}

func (b *Basket) Items() []BasketItem {
	return append([]BasketItem(nil), b.items...)
}

func (b *Basket) Len() int {
	return len(b.items)
}

func (b *Basket) Total() float64 {
	return b.total
}

func (b *Basket) Clear() {
	b.items = nil
	b.total = 0
}

func (b *Basket) Names() []string {
	names := make([]string, 0, len(b.items))
	for _, item := range b.items {
		names = append(names, item.Name)
	}
	return names
}

// Synopsis renders the basket line embedded in the system prompt, grouping
// repeated items in first-added order.
func (b *Basket) Synopsis() string {
	if len(b.items) == 0 {
		return "Basket: (empty)"
	}

	order := make([]string, 0, len(b.items))
	counts := make(map[string]int, len(b.items))
	for _, item := range b.items {
		if _, seen := counts[item.Name]; !seen {
			order = append(order, item.Name)
		}
		counts[item.Name]++
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, fmt.Sprintf("%d× %s", counts[name], name))
	}
	return fmt.Sprintf("Basket: %s – total €%.2f", strings.Join(parts, ", "), b.total)
}
