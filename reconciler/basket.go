package reconciler

import (
	"strings"

	"nutriguide"
)

const (
	// QuantityStep is the granularity of a quantity adjustment.
	QuantityStep = 0.5
	// MinQuantity is the floor a present item can be reduced to.
	MinQuantity = 0.5
	// InitialQuantity is the quantity an item enters the basket with.
	InitialQuantity = 1.0
)

// NormalizeHint turns a classifier label into a display name.
func NormalizeHint(hint string) string {
	return strings.TrimSpace(strings.ReplaceAll(hint, "_", " "))
}

// ItemKey is the identity of a basket entry: case-insensitive, whitespace collapsed.
// The first-inserted spelling is kept for display.
func ItemKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Basket is the in-progress set of (item, quantity) pairs. Entries keep insertion order.
// Every present entry has quantity >= MinQuantity.
type Basket struct {
	items []nutriguide.MealItem
	index map[string]int
}

func NewBasket() *Basket {
	return &Basket{index: make(map[string]int)}
}

// SeedBasket creates the basket presented after identification: the top non-blank suggestion,
// or the normalized hint when there is none.
func SeedBasket(suggestions []string, hint string) *Basket {
	b := NewBasket()
	seed := NormalizeHint(hint)
	for _, s := range suggestions {
		if ItemKey(s) != "" {
			seed = s
			break
		}
	}
	if ItemKey(seed) != "" {
		b.add(seed)
	}
	return b
}

// Toggle adds an absent item at InitialQuantity or removes a present one entirely.
// It reports whether the item is present afterwards.
func (b *Basket) Toggle(name string) bool {
	key := ItemKey(name)
	if key == "" {
		return false
	}
	if i, ok := b.index[key]; ok {
		b.remove(i)
		return false
	}
	b.add(name)
	return true
}

// Adjust changes a present item's quantity by steps*QuantityStep, clamped at MinQuantity.
func (b *Basket) Adjust(name string, steps int) (float64, error) {
	i, ok := b.index[ItemKey(name)]
	if !ok {
		return 0, ErrItemNotInBasket
	}
	q := b.items[i].Quantity + float64(steps)*QuantityStep
	if q < MinQuantity {
		q = MinQuantity
	}
	b.items[i].Quantity = q
	return q, nil
}

// Increment raises a present item's quantity by one step.
func (b *Basket) Increment(name string) (float64, error) { return b.Adjust(name, 1) }

// Decrement lowers a present item's quantity by one step, never below MinQuantity.
func (b *Basket) Decrement(name string) (float64, error) { return b.Adjust(name, -1) }

func (b *Basket) Quantity(name string) (float64, bool) {
	i, ok := b.index[ItemKey(name)]
	if !ok {
		return 0, false
	}
	return b.items[i].Quantity, true
}

func (b *Basket) Contains(name string) bool {
	_, ok := b.index[ItemKey(name)]
	return ok
}

func (b *Basket) Len() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Items returns the entries in insertion order. The slice is a copy.
func (b *Basket) Items() []nutriguide.MealItem {
	if b == nil {
		return nil
	}
	out := make([]nutriguide.MealItem, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Basket) Clone() *Basket {
	c := NewBasket()
	for _, it := range b.items {
		c.index[ItemKey(it.Item)] = len(c.items)
		c.items = append(c.items, it)
	}
	return c
}

func (b *Basket) add(name string) {
	display := strings.TrimSpace(name)
	b.index[ItemKey(display)] = len(b.items)
	b.items = append(b.items, nutriguide.MealItem{Item: display, Quantity: InitialQuantity})
}

func (b *Basket) remove(i int) {
	b.items = append(b.items[:i], b.items[i+1:]...)
	b.index = make(map[string]int, len(b.items))
	for j, it := range b.items {
		b.index[ItemKey(it.Item)] = j
	}
}
