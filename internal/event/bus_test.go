package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishInOrderAndUnsubscribe(t *testing.T) {
	b := NewBus()
	var got []string

	off1 := b.Subscribe(CartUpdated, func(ev Event) { got = append(got, "a:"+ev.Source) })
	b.Subscribe(CartUpdated, func(ev Event) { got = append(got, "b:"+ev.Source) })
	b.Subscribe(CartDrawerOpened, func(ev Event) { got = append(got, "drawer") })

	b.Publish(Event{Name: CartUpdated, Source: "theme"})
	assert.Equal(t, []string{"a:theme", "b:theme"}, got)

	off1()
	off1()
	got = nil
	b.Publish(Event{Name: CartUpdated, Source: SourceReconciler})
	assert.Equal(t, []string{"b:" + SourceReconciler}, got)
	assert.Equal(t, 1, b.Subscribers(CartUpdated))
}

func TestBus_PanicInHandlerDoesNotStopOthers(t *testing.T) {
	b := NewBus()
	called := false

	b.Subscribe(AjaxProductAdded, func(Event) { panic("boom") })
	b.Subscribe(AjaxProductAdded, func(Event) { called = true })

	assert.NotPanics(t, func() { b.Publish(Event{Name: AjaxProductAdded}) })
	assert.True(t, called)
}

func TestBus_SubscribeDuringPublish(t *testing.T) {
	b := NewBus()
	count := 0
	b.Subscribe(CartUpdated, func(Event) {
		count++
		b.Subscribe(CartUpdated, func(Event) { count += 10 })
	})

	b.Publish(Event{Name: CartUpdated})
	assert.Equal(t, 1, count)
	assert.Equal(t, 2, b.Subscribers(CartUpdated))
}
