package event

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ページ上のイベント名
const (
	CartUpdated      = "cart:updated"
	CartDrawerOpened = "cartdrawer:opened"
	AjaxProductAdded = "ajaxProduct:added"
	DiscountInput    = "discount:input"
	DiscountPaste    = "discount:paste"
	DiscountChange   = "discount:change"

	// 自分が発行した cart:updated の source
	SourceReconciler = "gift-reconciler"
)

// Event は1回の通知。Sourceは発行元（自分の発行を無視するのに使う）。
type Event struct {
	Name   string `json:"name"`
	Value  string `json:"value,omitempty"`
	Source string `json:"source,omitempty"`
}

type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus は同期 publish/subscribe。Publishは購読者を登録順に呼ぶ。
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: map[string][]subscription{}}
}

// Subscribe は解除用の関数を返す。何度呼んでもよい。
func (b *Bus) Subscribe(name string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(name, id) })
	}
}

func (b *Bus) unsubscribe(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[name]
	for i, s := range list {
		if s.id == id {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Publish は購読者を呼ぶ。1つがpanicしても残りは呼ぶ。
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[ev.Name]...)
	b.mu.RUnlock()

	for _, s := range list {
		b.call(s.fn, ev)
	}
}

func (b *Bus) call(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("event", ev.Name).Errorf("event handler panic: %v", r)
		}
	}()
	fn(ev)
}

// Subscribers は購読数（テスト・/state用）。
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}
