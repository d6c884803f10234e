package gift

import (
	"context"
	"strings"
	"sync"
	"time"

	"giftcart/internal/domain/model"
	"giftcart/internal/event"
	"giftcart/internal/infra/cartapi"
	"giftcart/internal/metrics"
	"giftcart/internal/schedule"
	"giftcart/internal/validator"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateIdle State = iota
	StateArmed
)

func (s State) String() string {
	if s == StateArmed {
		return "armed"
	}
	return "idle"
}

// 入力元ごとのタスク名
const (
	taskInput  = "input"
	taskPaste  = "paste"
	taskChange = "change"
)

type EventBus interface {
	Publisher
	Subscribe(name string, fn event.Handler) func()
}

type Timings struct {
	InputDebounce  time.Duration
	PasteDebounce  time.Duration
	ChangeDebounce time.Duration
}

// DefaultTimings はテーマのスクリプトと同じ待ち時間。
func DefaultTimings() Timings {
	return Timings{
		InputDebounce:  300 * time.Millisecond,
		PasteDebounce:  50 * time.Millisecond,
		ChangeDebounce: 100 * time.Millisecond,
	}
}

type Deps struct {
	Cart        CartAPI
	Resolver    *RuleResolver
	Mutator     *Mutator
	Renderer    *Renderer
	Bus         EventBus
	Timers      *schedule.Debouncer
	Eligibility *EligibilityStore // nil なら保存しない
	Metrics     *metrics.Metrics
	Timings     Timings
}

// RunOutcome は1回の照合の結果。
type RunOutcome struct {
	Result   string
	Dropped  bool
	Decision model.EligibilityDecision
	Mutation MutationResult
}

// Status は /state 用。
type Status struct {
	State      string `json:"state"`
	ActiveCode string `json:"active_code,omitempty"`
	RuleID     string `json:"rule_id,omitempty"`
	Running    bool   `json:"running"`
}

// Coordinator はページのイベントを受けて 判定→変更→描画 を回す。
type Coordinator struct {
	cart        CartAPI
	resolver    *RuleResolver
	mutator     *Mutator
	renderer    *Renderer
	bus         EventBus
	timers      *schedule.Debouncer
	eligibility *EligibilityStore
	metrics     *metrics.Metrics
	timings     Timings

	lock ReconciliationLock

	mu      sync.Mutex
	state   State
	code    string
	rule    *model.PromotionRule
	unsubs  []func()
	baseCtx context.Context
}

func NewCoordinator(d Deps) *Coordinator {
	if d.Metrics == nil {
		d.Metrics = metrics.New(nil)
	}
	if d.Timers == nil {
		d.Timers = schedule.NewDebouncer()
	}
	if d.Timings == (Timings{}) {
		d.Timings = DefaultTimings()
	}

	return &Coordinator{
		cart:        d.Cart,
		resolver:    d.Resolver,
		mutator:     d.Mutator,
		renderer:    d.Renderer,
		bus:         d.Bus,
		timers:      d.Timers,
		eligibility: d.Eligibility,
		metrics:     d.Metrics,
		timings:     d.Timings,
		baseCtx:     context.Background(),
	}
}

// Start は保存済みの状態を読み、イベントを購読する。
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	c.Restore(ctx)

	subs := []func(){
		c.bus.Subscribe(event.DiscountInput, func(ev event.Event) { c.OnInput(ev.Value) }),
		c.bus.Subscribe(event.DiscountPaste, func(ev event.Event) { c.OnPaste(ev.Value) }),
		c.bus.Subscribe(event.DiscountChange, func(ev event.Event) { c.OnChange(ev.Value) }),
		c.bus.Subscribe(event.CartUpdated, c.onCartEvent),
		c.bus.Subscribe(event.CartDrawerOpened, c.onCartEvent),
		c.bus.Subscribe(event.AjaxProductAdded, c.onCartEvent),
	}

	c.mu.Lock()
	c.unsubs = append(c.unsubs, subs...)
	c.mu.Unlock()
}

// Stop は購読を外し、待ちタスクを取り消す。
func (c *Coordinator) Stop() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, off := range unsubs {
		off()
	}
	c.timers.Stop()
}

func (c *Coordinator) onCartEvent(ev event.Event) {
	// 自分の cart:updated には反応しない
	if ev.Source == event.SourceReconciler {
		return
	}
	c.Run(c.context(), ev.Name)
}

// OnInput は入力中（300ms 待つ）
func (c *Coordinator) OnInput(value string) {
	c.timers.Schedule(taskInput, c.timings.InputDebounce, func() { c.Settle(c.context(), value) })
}

// OnPaste は貼り付け（50ms）。入力の待ちは取り消す。
func (c *Coordinator) OnPaste(value string) {
	c.timers.Cancel(taskInput)
	c.timers.Schedule(taskPaste, c.timings.PasteDebounce, func() { c.Settle(c.context(), value) })
}

// OnChange は change / オートフィル（100ms）
func (c *Coordinator) OnChange(value string) {
	c.timers.Schedule(taskChange, c.timings.ChangeDebounce, func() { c.Settle(c.context(), value) })
}

// Settle は確定した入力でルールを決める。一致すれば Armed にして照合する。
// 空・不一致なら Idle に戻す（ギフトは消さない）。
func (c *Coordinator) Settle(ctx context.Context, raw string) State {
	defer c.contain("settle")

	code := strings.TrimSpace(raw)
	if code == "" {
		c.disarm(ctx, "cleared")
		return StateIdle
	}
	if err := validator.ValidateDiscountCode(code); err != nil {
		logrus.WithError(err).WithField("reason", "invalid").Debug("discount code ignored")
		c.disarm(ctx, "invalid")
		return StateIdle
	}

	rule, ok := c.resolver.Resolve(code)
	if !ok {
		c.disarm(ctx, "no match")
		return StateIdle
	}

	c.arm(ctx, code, rule, true)
	c.Run(ctx, "discount")
	return StateArmed
}

// DetectFromPage はページ情報からコードを探し、見つかればすぐ Settle する。
func (c *Coordinator) DetectFromPage(ctx context.Context, pc PageContext) (string, State) {
	code, ok := DetectCode(pc, c.resolver.Prefix())
	if !ok {
		return "", c.State()
	}
	return code, c.Settle(ctx, code)
}

// Restore は保存済みの有効コードがあれば Armed に戻す。
// ギフト扱いの variant は有効コードが無くても読み戻す。
func (c *Coordinator) Restore(ctx context.Context) bool {
	if c.eligibility == nil {
		return false
	}

	gifts, err := c.eligibility.LoadGifts(ctx)
	if err != nil {
		logrus.WithError(err).Warn("load gift variants failed")
	}
	c.resolver.RememberGifts(gifts...)

	e, ok, err := c.eligibility.Load(ctx)
	if err != nil {
		logrus.WithError(err).Warn("load eligibility failed")
		return false
	}
	if !ok {
		return false
	}
	c.resolver.RememberGifts(e.Variant)

	rule, ok := c.resolver.Resolve(e.Code)
	if !ok {
		return false
	}
	c.arm(ctx, e.Code, rule, false)
	logrus.WithField("rule_id", rule.ID).Info("eligibility restored")
	return true
}

func (c *Coordinator) arm(ctx context.Context, code string, rule model.PromotionRule, persist bool) {
	c.mu.Lock()
	c.state = StateArmed
	c.code = code
	c.rule = &rule
	c.mu.Unlock()

	// 一度ギフトにした variant はコードが外れても商品として数えない
	if c.resolver.RememberGifts(rule.GiftVariantIDs...) && c.eligibility != nil {
		if err := c.eligibility.SaveGifts(ctx, c.resolver.KnownGifts()); err != nil {
			logrus.WithError(err).Warn("save gift variants failed")
		}
	}

	if !persist || c.eligibility == nil {
		return
	}
	variant := ""
	if len(rule.GiftVariantIDs) > 0 {
		variant = rule.GiftVariantIDs[0]
	}
	if err := c.eligibility.Save(ctx, Eligibility{Code: code, Variant: variant}); err != nil {
		logrus.WithError(err).Warn("save eligibility failed")
	}
}

func (c *Coordinator) disarm(ctx context.Context, reason string) {
	c.mu.Lock()
	was := c.state
	c.state = StateIdle
	c.code = ""
	c.rule = nil
	c.mu.Unlock()

	if was == StateArmed {
		logrus.WithField("reason", reason).Info("gift promotion disarmed")
	}
	if c.eligibility != nil {
		if err := c.eligibility.Clear(ctx); err != nil {
			logrus.WithError(err).Warn("clear eligibility failed")
		}
	}
}

// Run は 取得→判定→変更→（再取得）→描画 を1回行う。
// 実行中なら捨てる。どこで失敗しても panic もエラーも外に出さない。
func (c *Coordinator) Run(ctx context.Context, trigger string) (out RunOutcome) {
	log := logrus.WithField("trigger", trigger)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("reconcile panic: %v", r)
			c.metrics.ReconcileRuns.WithLabelValues(metrics.ResultPanic).Inc()
			out = RunOutcome{Result: metrics.ResultPanic}
		}
	}()

	if !c.lock.TryAcquire() {
		c.metrics.ReconcileDropped.Inc()
		log.Debug("reconcile dropped: already running")
		return RunOutcome{Dropped: true}
	}
	defer c.lock.Release()

	snapshot, err := c.cart.FetchCart(ctx)
	if err != nil {
		c.metrics.CartFetchErrors.WithLabelValues(fetchErrorKind(err)).Inc()
		c.metrics.ReconcileRuns.WithLabelValues(metrics.ResultFetchError).Inc()
		log.WithError(err).Warn("fetch cart failed, nothing changed")
		return RunOutcome{Result: metrics.ResultFetchError}
	}

	code, rule := c.active()
	rules := c.resolver.RulesFor(rule)
	decision := EvaluateAll(snapshot, rules, code)

	res, mutErr := c.mutator.Reconcile(ctx, snapshot, decision, code)
	if res.Mutated() {
		fresh, err := c.cart.FetchCart(ctx)
		if err != nil {
			c.metrics.CartFetchErrors.WithLabelValues(fetchErrorKind(err)).Inc()
			log.WithError(err).Warn("refetch cart failed")
		} else {
			snapshot = fresh
			decision = EvaluateAll(snapshot, rules, code)
		}
	}

	if err := c.renderer.Render(ctx, decision, snapshot, res, mutErr); err != nil {
		log.WithError(err).Warn("render failed")
	}

	result := metrics.ResultNoop
	switch {
	case mutErr != nil:
		result = metrics.ResultMutateErr
	case res.Mutated():
		result = metrics.ResultOK
	}
	c.metrics.ReconcileRuns.WithLabelValues(result).Inc()

	return RunOutcome{Result: result, Decision: decision, Mutation: res}
}

// Preview は今のカートを判定だけする。ロックは取らず、カートも変えない。
// 照合と同時に呼ばれたら /cart.js の取得は1回にまとまる。
func (c *Coordinator) Preview(ctx context.Context) (model.EligibilityDecision, error) {
	snapshot, err := c.cart.FetchCart(ctx)
	if err != nil {
		c.metrics.CartFetchErrors.WithLabelValues(fetchErrorKind(err)).Inc()
		return model.EligibilityDecision{}, err
	}
	code, rule := c.active()
	return EvaluateAll(snapshot, c.resolver.RulesFor(rule), code), nil
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{State: c.state.String(), ActiveCode: c.code, Running: c.lock.Held()}
	if c.rule != nil {
		s.RuleID = c.rule.ID
	}
	return s
}

func (c *Coordinator) active() (string, *model.PromotionRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.rule
}

func (c *Coordinator) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseCtx
}

func (c *Coordinator) contain(where string) {
	if r := recover(); r != nil {
		logrus.WithField("where", where).Errorf("gift reconciler panic: %v", r)
	}
}

func fetchErrorKind(err error) string {
	if _, ok := cartapi.AsTransportError(err); ok {
		return "transport"
	}
	if _, ok := cartapi.AsFormatError(err); ok {
		return "format"
	}
	return "other"
}
