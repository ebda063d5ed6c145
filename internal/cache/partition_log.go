package cache

import "container/list"

// partitionLog keeps values keyed by (channel, id) in recency order across
// all channels. Re-inserting a key moves it to the back, so the newest key
// of a channel is always the last one written for it. When the log grows
// past capacity the globally oldest key is evicted.
type partitionLog[T any] struct {
	capacity int
	order    *list.List
	index    map[partitionKey]*list.Element
	channels map[string]*partitionState
}

type partitionKey struct {
	channelID string
	messageID string
}

type partitionEntry[T any] struct {
	key   partitionKey
	value T
}

type partitionState struct {
	count  int
	latest string
}

func newPartitionLog[T any](capacity int) *partitionLog[T] {
	return &partitionLog[T]{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[partitionKey]*list.Element),
		channels: make(map[string]*partitionState),
	}
}

func (l *partitionLog[T]) lookup(channelID, messageID string) (T, bool) {
	element, ok := l.index[partitionKey{channelID: channelID, messageID: messageID}]
	if !ok {
		var zero T
		return zero, false
	}

	return element.Value.(*partitionEntry[T]).value, true
}

func (l *partitionLog[T]) put(channelID, messageID string, value T) {
	key := partitionKey{channelID: channelID, messageID: messageID}
	state := l.channels[channelID]
	if state == nil {
		state = &partitionState{}
		l.channels[channelID] = state
	}
	state.latest = messageID

	if element, ok := l.index[key]; ok {
		element.Value.(*partitionEntry[T]).value = value
		l.order.MoveToBack(element)
		return
	}

	l.index[key] = l.order.PushBack(&partitionEntry[T]{key: key, value: value})
	state.count++
	l.trimToCapacity()
}

func (l *partitionLog[T]) latest(channelID string) (T, bool) {
	state, ok := l.channels[channelID]
	if !ok {
		var zero T
		return zero, false
	}

	return l.lookup(channelID, state.latest)
}

func (l *partitionLog[T]) len() int {
	return l.order.Len()
}

func (l *partitionLog[T]) trimToCapacity() {
	for l.capacity > 0 && l.order.Len() > l.capacity {
		front := l.order.Front()
		if front == nil {
			return
		}
		entry := l.order.Remove(front).(*partitionEntry[T])
		delete(l.index, entry.key)

		// Keys move to the back on every write, so a channel's latest key
		// is only ever evicted after all of its older keys.
		state := l.channels[entry.key.channelID]
		if state == nil {
			continue
		}
		state.count--
		if state.count <= 0 {
			delete(l.channels, entry.key.channelID)
		}
	}
}
