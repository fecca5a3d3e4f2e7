package encounter

import (
	"sync"
	"sync/atomic"
)

// Gate admits at most one mutating call at a time. A caller that cannot
// acquire it drops its intent; nothing is queued.
type Gate struct {
	held atomic.Bool
}

// TryAcquire returns a release func when the gate was free. Release may be
// called more than once.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if !g.held.CompareAndSwap(false, true) {
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.held.Store(false) })
	}, true
}

func (g *Gate) Held() bool {
	return g.held.Load()
}
