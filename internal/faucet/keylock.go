package faucet

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyLocker hands out one mutex per account so claims for the same account
// serialize while claims for different accounts run in parallel. Entries are
// never evicted: claim records live as long as the faucet does.
type keyLocker struct {
	locks *xsync.MapOf[string, *sync.Mutex]
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: xsync.NewMapOf[string, *sync.Mutex]()}
}

func (k *keyLocker) Lock(key string) (unlock func()) {
	mu, _ := k.locks.LoadOrCompute(key, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}
