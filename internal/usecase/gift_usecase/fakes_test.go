package gift

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"giftcart/internal/domain/model"
	"giftcart/internal/infra/cartapi"
)

// fakeCart はホストのカートをメモリで真似る。
type fakeCart struct {
	mu          sync.Mutex
	items       []model.LineItem
	seq         int
	calls       map[string]int
	unavailable map[string]bool
	fetchErr    error
	panicFetch  bool
	discounts   []string
}

func newFakeCart() *fakeCart {
	return &fakeCart{calls: map[string]int{}, unavailable: map[string]bool{}}
}

func (f *fakeCart) put(variantID string, qty int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putLocked(variantID, qty)
}

func (f *fakeCart) putLocked(variantID string, qty int64) string {
	for i := range f.items {
		if f.items[i].VariantID == variantID {
			f.items[i].Quantity += qty
			return f.items[i].Key
		}
	}
	f.seq++
	key := fmt.Sprintf("%s:%d", variantID, f.seq)
	f.items = append(f.items, model.LineItem{VariantID: variantID, Quantity: qty, Key: key})
	return key
}

func (f *fakeCart) remove(variantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.items[:0]
	for _, it := range f.items {
		if it.VariantID != variantID {
			out = append(out, it)
		}
	}
	f.items = out
}

func (f *fakeCart) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeCart) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

func (f *fakeCart) mutations() int {
	return f.count("add") + f.count("update")
}

func (f *fakeCart) snapshotLocked() model.CartSnapshot {
	s := model.CartSnapshot{Token: "t", Items: append([]model.LineItem(nil), f.items...)}
	for _, it := range f.items {
		s.ItemCount += it.Quantity
	}
	return s
}

func (f *fakeCart) FetchCart(ctx context.Context) (model.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["fetch"]++
	if f.panicFetch {
		panic("fetch exploded")
	}
	if f.fetchErr != nil {
		return model.CartSnapshot{}, f.fetchErr
	}
	return f.snapshotLocked(), nil
}

func (f *fakeCart) AddLine(ctx context.Context, variantID string, qty int64) (model.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["add"]++
	if f.unavailable[variantID] {
		return model.LineItem{}, &cartapi.TransportError{Op: "add line", Status: 422, Err: errors.New("sold out")}
	}
	key := f.putLocked(variantID, qty)
	return model.LineItem{VariantID: variantID, Quantity: qty, Key: key}, nil
}

func (f *fakeCart) UpdateLines(ctx context.Context, updates map[string]int64) (model.CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++

	out := f.items[:0]
	for _, it := range f.items {
		if qty, ok := updates[it.Key]; ok {
			if qty == 0 {
				continue
			}
			it.Quantity = qty
		}
		out = append(out, it)
	}
	f.items = out
	return f.snapshotLocked(), nil
}

func (f *fakeCart) ApplyDiscount(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["discount"]++
	f.discounts = append(f.discounts, code)
	return nil
}

func (f *fakeCart) FetchSections(ctx context.Context, path string, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["sections"]++

	out := map[string]string{}
	for _, id := range ids {
		out[id] = fmt.Sprintf(`<div class="shopify-section"><div class="js-contents"><span class="count">%d</span></div></div>`, f.snapshotLocked().ItemCount)
	}
	return out, nil
}
