// Package dispatch implements the keyed frame dispatcher (C4) and the
// uniform subscriber registration façade (C11), grounded on
// original_source/src/protocols/utils.rs's DispatchKeyed/RecvSenderMap/
// KeyedDispatcher.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Keyed is implemented by any message type that projects a dispatch
// key, mirroring the Rust DispatchKeyed trait.
type Keyed[K comparable] interface {
	DispatchKey() K
}

// Map is a shared registry mapping keys of type K to bounded channels
// of messages T. Registration is last-writer-wins (see spec.md's
// Duplicate EtherType/NextHeader registration open question); dispatch
// on a miss logs once per key and drops.
type Map[K comparable, T Keyed[K]] struct {
	mu     sync.RWMutex
	subs   map[K]chan T
	warned map[K]struct{}
	log    *logrus.Entry
}

// NewMap constructs an empty registry. log may be nil, in which case a
// package-default logger is used.
func NewMap[K comparable, T Keyed[K]](log *logrus.Entry) *Map[K, T] {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Map[K, T]{subs: make(map[K]chan T), warned: make(map[K]struct{}), log: log}
}

// Register associates key with a channel. A repeat registration for
// the same key replaces the prior one.
func (m *Map[K, T]) Register(key K, ch chan T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[key] = ch
}

// Dispatch routes item to its registered channel, if any. A full
// channel blocks the caller -- this is the intended back-pressure path
// (spec.md §5): the upstream reader blocks rather than drop at the
// protocol layer.
func (m *Map[K, T]) Dispatch(item T) {
	key := item.DispatchKey()
	m.mu.RLock()
	ch, ok := m.subs[key]
	m.mu.RUnlock()
	if !ok {
		m.warnOnce(key)
		return
	}
	ch <- item
}

// warnOnce logs the "no receiver registered" warning the first time
// key is seen missing, and stays silent on every later miss for that
// same key.
func (m *Map[K, T]) warnOnce(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, already := m.warned[key]; already {
		return
	}
	m.warned[key] = struct{}{}
	m.log.WithField("key", fmt.Sprintf("%v", key)).Warn("dispatch: no receiver registered")
}
