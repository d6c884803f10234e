package gift

import "sync/atomic"

// ReconciliationLock は照合を同時に1つだけ走らせる。
// 取れなかった呼び出しは待たずに捨てる。
type ReconciliationLock struct {
	held atomic.Bool
}

func (l *ReconciliationLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

func (l *ReconciliationLock) Release() {
	l.held.Store(false)
}

func (l *ReconciliationLock) Held() bool {
	return l.held.Load()
}
