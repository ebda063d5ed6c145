package cache

import (
	"container/list"
	"sync"

	"ex-sniper/pkg/sniper"
)

// Users memoizes identity lookups in a FIFO-bounded map keyed by user id.
type Users struct {
	capacity int

	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
}

// NewUsers creates an identity cache bounded by capacity; non-positive values
// fall back to DefaultCapacity.
func NewUsers(capacity int) *Users {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Users{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Add stores user, keeping the original insertion position on overwrite.
func (u *Users) Add(user sniper.User) {
	if user.ID == "" {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if element, ok := u.index[user.ID]; ok {
		element.Value = user
		return
	}
	u.index[user.ID] = u.order.PushBack(user)
	for u.order.Len() > u.capacity {
		front := u.order.Front()
		evicted := u.order.Remove(front).(sniper.User)
		delete(u.index, evicted.ID)
	}
}

// Get returns the cached identity for userID.
func (u *Users) Get(userID string) (sniper.User, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	element, ok := u.index[userID]
	if !ok {
		return sniper.User{}, false
	}

	return element.Value.(sniper.User), true
}

// Len returns the number of cached identities.
func (u *Users) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.order.Len()
}
