// Package delayqueue implements the delay queue (C6) and the
// select-with-timers composition primitive (C7), grounded on
// original_source/src/delay_queue.rs's DelayQueue and its
// select_queues! macro.
package delayqueue

import (
	"container/heap"
	"reflect"
	"sync"
	"time"
)

type entry[T any] struct {
	deadline time.Time
	seq      uint64
	value    T
}

type entryHeap[T any] []*entry[T]

func (h entryHeap[T]) Len() int { return len(h) }
func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq // FIFO tie-break by insertion order
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap[T]) Push(x any)   { *h = append(*h, x.(*entry[T])) }
func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// DelayQueue is a min-heap ordered by absolute deadline, keyed value T,
// with FIFO tie-break on identical deadlines.
type DelayQueue[T any] struct {
	mu    sync.Mutex
	items entryHeap[T]
	seq   uint64
}

// New constructs an empty DelayQueue.
func New[T any]() *DelayQueue[T] {
	return &DelayQueue[T]{}
}

// PushAt schedules value to be popped no earlier than deadline.
func (q *DelayQueue[T]) PushAt(deadline time.Time, value T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.items, &entry[T]{deadline: deadline, seq: q.seq, value: value})
}

// PushAfter schedules value to be popped no earlier than d from now.
func (q *DelayQueue[T]) PushAfter(d time.Duration, value T) {
	q.PushAt(time.Now().Add(d), value)
}

// Pop removes and returns the earliest-deadline item unconditionally
// (it does not wait for the deadline to elapse); ok is false if the
// queue is empty.
func (q *DelayQueue[T]) Pop() (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return value, false
	}
	e := heap.Pop(&q.items).(*entry[T])
	return e.value, true
}

// Len reports the number of scheduled items.
func (q *DelayQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Chan returns a channel that becomes ready once the earliest deadline
// elapses, or nil if the queue is currently empty -- a nil channel
// blocks forever in a select, matching "wait never fires when empty".
// Callers should re-fetch Chan() each time around their select loop
// since the earliest deadline may change between iterations.
func (q *DelayQueue[T]) Chan() <-chan time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	d := time.Until(q.items[0].deadline)
	if d < 0 {
		d = 0
	}
	return time.After(d)
}

// FiredSource identifies which arm of a Select2 call fired.
type FiredSource int

const (
	FiredA FiredSource = iota
	FiredB
	FiredTimeout
)

// Select2 composes a receive on aCh with a receive on bCh (typically a
// DelayQueue's Chan()) and, if timeout > 0, a default timeout arm --
// the select-with-timers primitive (C7). Exactly one arm fires.
func Select2[A any, B any](aCh <-chan A, bCh <-chan B, timeout time.Duration) (source FiredSource, aVal A, bVal B, ok bool) {
	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(aCh)},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(bCh)},
	}
	if timeout > 0 {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(time.After(timeout)),
		})
	}
	chosen, recv, recvOK := reflect.Select(cases)
	switch chosen {
	case 0:
		if recvOK {
			aVal = recv.Interface().(A)
		}
		return FiredA, aVal, bVal, recvOK
	case 1:
		if recvOK {
			bVal = recv.Interface().(B)
		}
		return FiredB, aVal, bVal, recvOK
	default:
		return FiredTimeout, aVal, bVal, true
	}
}
