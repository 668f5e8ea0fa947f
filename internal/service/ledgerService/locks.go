package ledgerService

import "sync"

// userLocks serializes ledger mutations per user. Two concurrent sells for
// one user must not both pass the balance check on the same snapshot; users
// never contend with each other. Entries are never removed, the map grows
// with the user count only.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *userLocks) get(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}
