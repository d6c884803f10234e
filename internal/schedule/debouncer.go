package schedule

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Debouncer はキーごとに1つだけ遅延タスクを持つ。
// 同じキーで Schedule し直すと前のタスクは取り消される。
type Debouncer struct {
	mu      sync.Mutex
	timers  map[string]*task
	wg      sync.WaitGroup
	gen     uint64
	stopped bool
}

type task struct {
	timer *time.Timer
	gen   uint64
}

func NewDebouncer() *Debouncer {
	return &Debouncer{timers: map[string]*task{}}
}

// Schedule は delay 後に fn を実行する。Stop 後は何もしない。
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.cancelLocked(key)

	d.gen++
	t := &task{gen: d.gen}
	d.wg.Add(1)
	t.timer = time.AfterFunc(delay, func() {
		defer d.wg.Done()

		d.mu.Lock()
		cur, ok := d.timers[key]
		if !ok || cur.gen != t.gen {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("task", key).Errorf("scheduled task panic: %v", r)
			}
		}()
		fn()
	})
	d.timers[key] = t
}

// Cancel は key の待ちタスクを取り消す。無ければ何もしない。
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked(key)
}

func (d *Debouncer) cancelLocked(key string) {
	t, ok := d.timers[key]
	if !ok {
		return
	}
	delete(d.timers, key)
	if t.timer.Stop() {
		// まだ発火していない
		d.wg.Done()
	}
}

// Pending は key のタスクが待ち状態か。
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}

// Stop は全タスクを取り消し、実行中のタスクが終わるまで待つ。
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key := range d.timers {
		d.cancelLocked(key)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
