package gift

import (
	"context"
	"fmt"
	"time"

	"giftcart/internal/domain/model"
	"giftcart/internal/event"
	"giftcart/internal/schedule"

	"github.com/sirupsen/logrus"
)

const (
	MessageSuccess = "success"
	MessageError   = "error"

	TextGiftsAdded  = "Free gifts added!"
	TextGiftsFailed = "We couldn't update your free gift. Please try again."

	bannerTask = "banner"
)

// Section は ?sections= で取り直す領域。ID の要素内の Selector 部分を差し替える。
type Section struct {
	ID       string
	Selector string
}

// SectionProvider はテーマ側が差し替える領域を教える（無ければ DefaultSections）。
type SectionProvider interface {
	Sections() []Section
}

// DefaultSections はカートドロワーとカートページの領域。
func DefaultSections() []Section {
	return []Section{
		{ID: "mini-cart", Selector: ".shopify-section"},
		{ID: "cart-icon-bubble", Selector: ".shopify-section"},
		{ID: "mobile-cart-icon-bubble", Selector: ".shopify-section"},
		{ID: "main-cart-items", Selector: ".js-contents"},
		{ID: "main-cart-footer", Selector: ".js-contents"},
	}
}

type SectionFetcher interface {
	FetchSections(ctx context.Context, path string, ids []string) (map[string]string, error)
}

// Page はページ操作。*page.Document が実装する。
type Page interface {
	Splice(id, selector, fragment string) error
	SetCheckoutDisabled(disabled bool) int
	SetValidationVisible(visible bool)
	ShowMessage(kind, text string)
	HideMessage()
}

type Publisher interface {
	Publish(ev event.Event)
}

type Renderer struct {
	fetcher      SectionFetcher
	page         Page
	bus          Publisher
	provider     SectionProvider
	sectionsPath string
	bannerTTL    time.Duration
	timers       *schedule.Debouncer
}

// DI（provider は nil 可）
func NewRenderer(fetcher SectionFetcher, p Page, bus Publisher, provider SectionProvider, sectionsPath string, bannerTTL time.Duration, timers *schedule.Debouncer) *Renderer {
	return &Renderer{
		fetcher:      fetcher,
		page:         p,
		bus:          bus,
		provider:     provider,
		sectionsPath: sectionsPath,
		bannerTTL:    bannerTTL,
		timers:       timers,
	}
}

// Render はページを判定とカートに合わせる。
// チェックアウト可否は毎回、セクションの取り直しと cart:updated はカートを変えたときだけ。
func (r *Renderer) Render(ctx context.Context, d model.EligibilityDecision, snapshot model.CartSnapshot, res MutationResult, mutationErr error) error {
	r.page.SetCheckoutDisabled(d.CheckoutBlocked)
	r.page.SetValidationVisible(d.CheckoutBlocked)

	var err error
	if res.Mutated() {
		err = r.refreshSections(ctx)
		r.bus.Publish(event.Event{Name: event.CartUpdated, Source: event.SourceReconciler})
	}

	switch {
	case mutationErr != nil:
		r.flash(MessageError, TextGiftsFailed)
	case len(res.Added) > 0:
		r.flash(MessageSuccess, TextGiftsAdded)
	}

	logrus.WithFields(logrus.Fields{
		"rule_id":          d.RuleID,
		"items":            len(snapshot.Items),
		"checkout_blocked": d.CheckoutBlocked,
	}).Debug("page rendered")
	return err
}

func (r *Renderer) sections() []Section {
	if r.provider != nil {
		if s := r.provider.Sections(); len(s) > 0 {
			return s
		}
	}
	return DefaultSections()
}

func (r *Renderer) refreshSections(ctx context.Context) error {
	sections := r.sections()
	ids := make([]string, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}

	html, err := r.fetcher.FetchSections(ctx, r.sectionsPath, ids)
	if err != nil {
		return fmt.Errorf("fetch sections: %w", err)
	}

	for _, s := range sections {
		fragment, ok := html[s.ID]
		if !ok {
			continue
		}
		if err := r.page.Splice(s.ID, s.Selector, fragment); err != nil {
			// ページに無い領域はよくある（カートページ以外など）
			logrus.WithField("section", s.ID).WithError(err).Debug("section not spliced")
		}
	}
	return nil
}

// 一定時間で消えるメッセージ
func (r *Renderer) flash(kind, text string) {
	r.page.ShowMessage(kind, text)
	if r.timers == nil || r.bannerTTL <= 0 {
		return
	}
	r.timers.Schedule(bannerTask, r.bannerTTL, r.page.HideMessage)
}
