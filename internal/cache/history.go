// Package cache keeps bounded in-memory records of recently observed
// messages, their edit histories, and the latest deletion per channel.
package cache

import (
	"container/list"
	"fmt"
	"sync"

	"ex-sniper/pkg/sniper"
)

// DefaultCapacity bounds live messages, update histories, and deletion records.
const DefaultCapacity = 10000

// Option mutates history cache configuration.
type Option func(*History)

// WithCapacity sets the maximum number of entries per store.
func WithCapacity(capacity int) Option {
	return func(history *History) {
		if capacity > 0 {
			history.capacity = capacity
		}
	}
}

// History is a bounded, insertion-ordered message cache with per-message edit
// histories and a per-channel record of the most recent deletion.
//
// The live map evicts strictly in first-insertion order: overwriting an
// existing id keeps its original position. Update histories and deletion
// records move a key to the back whenever it is written, so GetUpdates and
// GetDeleted always report the most recent activity in a channel. All three
// stores are bounded by the same capacity.
//
// History is safe for concurrent use.
type History struct {
	capacity int

	mu      sync.Mutex
	nextSeq uint64
	live    *list.List
	index   map[string]*list.Element
	updates *partitionLog[[]sniper.Message]
	deleted *partitionLog[sniper.Message]
}

// New creates an empty history cache.
func New(options ...Option) *History {
	history := &History{
		capacity: DefaultCapacity,
		live:     list.New(),
		index:    make(map[string]*list.Element),
	}
	for _, option := range options {
		option(history)
	}
	history.updates = newPartitionLog[[]sniper.Message](history.capacity)
	history.deleted = newPartitionLog[sniper.Message](history.capacity)

	return history
}

// Capacity returns the configured per-store bound.
func (h *History) Capacity() int {
	return h.capacity
}

// Add inserts or overwrites message keyed by its id.
//
// When the live map exceeds capacity the single oldest-inserted entry is
// evicted.
func (h *History) Add(message sniper.Message) error {
	if err := message.Validate(); err != nil {
		return fmt.Errorf("cache add: %w", err)
	}
	stored := message.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	if element, ok := h.index[stored.ID]; ok {
		stored.Seq = element.Value.(sniper.Message).Seq
		element.Value = stored
		return nil
	}

	h.nextSeq++
	stored.Seq = h.nextSeq
	h.index[stored.ID] = h.live.PushBack(stored)
	h.trimToCapacityLocked()

	return nil
}

// Update replaces a cached message and records the previous snapshot.
//
// Absent ids are ignored and reported as false. The first update of an id
// always records the previous value; later updates record it only when its
// content differs from the last recorded snapshot. A replacement without an
// author inherits the cached author.
func (h *History) Update(message sniper.Message) (previous sniper.Message, updated bool, err error) {
	if err := message.Validate(); err != nil {
		return sniper.Message{}, false, fmt.Errorf("cache update: %w", err)
	}
	replacement := message.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	element, ok := h.index[replacement.ID]
	if !ok {
		return sniper.Message{}, false, nil
	}
	old := element.Value.(sniper.Message)

	snapshots, exists := h.updates.lookup(old.ChannelID, old.ID)
	switch {
	case !exists:
		snapshots = []sniper.Message{old}
	case snapshots[len(snapshots)-1].Content != old.Content:
		snapshots = append(snapshots, old)
	}
	h.updates.put(old.ChannelID, old.ID, snapshots)

	if replacement.Author == nil && old.Author != nil {
		author := *old.Author
		replacement.Author = &author
	}
	replacement.Seq = old.Seq
	element.Value = replacement

	return old.Clone(), true, nil
}

// Delete moves a cached message into its channel's deletion record.
// Absent ids are ignored and reported as false.
func (h *History) Delete(messageID string) (sniper.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	element, ok := h.index[messageID]
	if !ok {
		return sniper.Message{}, false
	}
	message := h.live.Remove(element).(sniper.Message)
	delete(h.index, messageID)
	h.deleted.put(message.ChannelID, message.ID, message)

	return message.Clone(), true
}

// Get returns the live entry for messageID.
func (h *History) Get(messageID string) (sniper.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	element, ok := h.index[messageID]
	if !ok {
		return sniper.Message{}, false
	}

	return element.Value.(sniper.Message).Clone(), true
}

// GetDeleted returns the most recently deleted message in channelID.
func (h *History) GetDeleted(channelID string) (sniper.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	message, ok := h.deleted.latest(channelID)
	if !ok {
		return sniper.Message{}, false
	}

	return message.Clone(), true
}

// GetUpdates returns the edit history of the most recently edited message in
// channelID, oldest snapshot first.
func (h *History) GetUpdates(channelID string) ([]sniper.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshots, ok := h.updates.latest(channelID)
	if !ok {
		return nil, false
	}
	cloned := make([]sniper.Message, 0, len(snapshots))
	for _, snapshot := range snapshots {
		cloned = append(cloned, snapshot.Clone())
	}

	return cloned, true
}

// Stats reports the current size of each store.
type Stats struct {
	Live    int
	Updates int
	Deleted int
}

// Stats returns current store sizes.
func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		Live:    h.live.Len(),
		Updates: h.updates.len(),
		Deleted: h.deleted.len(),
	}
}

func (h *History) trimToCapacityLocked() {
	for h.live.Len() > h.capacity {
		front := h.live.Front()
		if front == nil {
			return
		}
		evicted := h.live.Remove(front).(sniper.Message)
		delete(h.index, evicted.ID)
	}
}
