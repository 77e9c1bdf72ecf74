package sync

import (
	"sync"
)

type Mutex = sync.Mutex
type Cond = sync.Cond

// NewCond makes a condition variable bound to l
func NewCond(l sync.Locker) *Cond {
	return sync.NewCond(l)
}
