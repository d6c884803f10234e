package gift

import (
	"context"
	"errors"
	"testing"
	"time"

	"giftcart/internal/domain/model"
	"giftcart/internal/event"
	"giftcart/internal/page"
	"giftcart/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSections []Section

func (s staticSections) Sections() []Section { return s }

func newRenderFixture(t *testing.T, provider SectionProvider, ttl time.Duration) (*Renderer, *fakeCart, *page.Document, *[]event.Event) {
	t.Helper()

	cart := newFakeCart()
	doc := page.Blank()
	bus := event.NewBus()
	timers := schedule.NewDebouncer()
	t.Cleanup(timers.Stop)

	var got []event.Event
	off := bus.Subscribe(event.CartUpdated, func(ev event.Event) { got = append(got, ev) })
	t.Cleanup(off)

	return NewRenderer(cart, doc, bus, provider, "/", ttl, timers), cart, doc, &got
}

func TestRenderer_GatesCheckoutEveryPass(t *testing.T) {
	r, cart, doc, events := newRenderFixture(t, nil, 0)
	ctx := context.Background()

	require.NoError(t, r.Render(ctx, model.EligibilityDecision{CheckoutBlocked: true}, model.CartSnapshot{}, MutationResult{}, nil))
	assert.True(t, doc.CheckoutDisabled())
	text, ok := doc.Text("." + page.ValidationClass)
	require.True(t, ok)
	assert.Equal(t, page.ValidationText, text)
	_, hidden := doc.Attr("."+page.ValidationClass, "hidden")
	assert.False(t, hidden)

	require.NoError(t, r.Render(ctx, model.EligibilityDecision{}, model.CartSnapshot{}, MutationResult{}, nil))
	assert.False(t, doc.CheckoutDisabled())
	_, hidden = doc.Attr("."+page.ValidationClass, "hidden")
	assert.True(t, hidden)

	// 変更なしならセクションもイベントも無し
	assert.Equal(t, 0, cart.count("sections"))
	assert.Empty(t, *events)
}

func TestRenderer_RefreshesSectionsAfterMutation(t *testing.T) {
	r, cart, doc, events := newRenderFixture(t, nil, 0)
	cart.put("1001", 1)
	cart.put(giftID, 1)

	res := MutationResult{Added: []string{giftID}}
	require.NoError(t, r.Render(context.Background(), model.EligibilityDecision{}, model.CartSnapshot{}, res, nil))

	assert.Equal(t, 1, cart.count("sections"))
	for _, id := range []string{"mini-cart", "cart-icon-bubble", "main-cart-items", "main-cart-footer"} {
		text, ok := doc.Text("#" + id + " .count")
		require.True(t, ok, id)
		assert.Equal(t, "2", text, id)
	}

	require.Len(t, *events, 1)
	assert.Equal(t, event.SourceReconciler, (*events)[0].Source)

	msg, ok := doc.Text("#" + page.MessageID)
	require.True(t, ok)
	assert.Equal(t, TextGiftsAdded, msg)
	kind, _ := doc.Attr("#"+page.MessageID, "data-kind")
	assert.Equal(t, MessageSuccess, kind)
}

func TestRenderer_UsesProvidedSections(t *testing.T) {
	r, cart, doc, _ := newRenderFixture(t, staticSections{{ID: "main-cart-items", Selector: ".js-contents"}}, 0)
	cart.put("1001", 3)

	require.NoError(t, r.Render(context.Background(), model.EligibilityDecision{}, model.CartSnapshot{}, MutationResult{Removed: []string{"x"}}, nil))

	text, ok := doc.Text("#main-cart-items .count")
	require.True(t, ok)
	assert.Equal(t, "3", text)
	_, ok = doc.Text("#mini-cart .count")
	assert.False(t, ok)
}

func TestRenderer_ErrorBannerHidesAfterTTL(t *testing.T) {
	r, _, doc, _ := newRenderFixture(t, nil, 20*time.Millisecond)

	require.NoError(t, r.Render(context.Background(), model.EligibilityDecision{}, model.CartSnapshot{}, MutationResult{}, errors.New("sold out")))
	msg, ok := doc.Text("#" + page.MessageID)
	require.True(t, ok)
	assert.Equal(t, TextGiftsFailed, msg)

	assert.Eventually(t, func() bool {
		_, hidden := doc.Attr("#"+page.MessageID, "hidden")
		return hidden
	}, time.Second, 5*time.Millisecond)
}
