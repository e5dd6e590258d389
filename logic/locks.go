package logic

import (
	"sync"

	"github.com/google/uuid"
)

// conversationLocks hands out one mutex per conversation so that at most
// one turn (batch or streaming) runs against a conversation at a time.
// Entries are reference counted and removed once unused, so the map does
// not grow with the number of conversations ever seen.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*conversationLock
}

type conversationLock struct {
	sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[uuid.UUID]*conversationLock)}
}

// Lock blocks until the caller holds the conversation's exclusive lock.
func (c *conversationLocks) Lock(id uuid.UUID) {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &conversationLock{}
		c.locks[id] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
}

// Unlock releases the conversation's lock, dropping the entry when no
// other goroutine is waiting on it.
func (c *conversationLocks) Unlock(id uuid.UUID) {
	c.mu.Lock()
	l := c.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(c.locks, id)
	}
	c.mu.Unlock()

	l.Unlock()
}
