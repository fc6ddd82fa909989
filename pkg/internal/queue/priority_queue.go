package queue

import (
	"container/heap"
	"sync"
	"time"
)

// Item is a scheduled value
type Item[T any] struct {
	Value    T
	Priority int       // higher runs first among items due at the same time
	NextRun  time.Time // earliest time the item may be popped
	index    int
}

// PriorityQueue orders items by run time, then by priority
type PriorityQueue[T any] struct {
	items itemHeap[T]
	mu    sync.Mutex
}

// NewPriorityQueue returns an empty queue
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	pq := &PriorityQueue[T]{}
	heap.Init(&pq.items)
	return pq
}

// Push schedules value to become ready at nextRun
func (pq *PriorityQueue[T]) Push(value T, priority int, nextRun time.Time) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	heap.Push(&pq.items, &Item[T]{Value: value, Priority: priority, NextRun: nextRun})
}

// NextReady removes and returns the head item if its run time has passed
func (pq *PriorityQueue[T]) NextReady(now time.Time) (T, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	var zero T
	if pq.items.Len() == 0 || now.Before(pq.items[0].NextRun) {
		return zero, false
	}
	item := heap.Pop(&pq.items).(*Item[T])
	return item.Value, true
}

// NextRun returns the run time of the head item
func (pq *PriorityQueue[T]) NextRun() (time.Time, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if pq.items.Len() == 0 {
		return time.Time{}, false
	}
	return pq.items[0].NextRun, true
}

// Len returns the number of scheduled items
func (pq *PriorityQueue[T]) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return pq.items.Len()
}

// Clear drops every scheduled item
func (pq *PriorityQueue[T]) Clear() {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	pq.items = nil
}

// itemHeap implements heap.Interface
type itemHeap[T any] []*Item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if h[i].NextRun.Before(h[j].NextRun) {
		return true
	}
	if h[j].NextRun.Before(h[i].NextRun) {
		return false
	}
	// Same run time: higher priority first
	return h[i].Priority > h[j].Priority
}

func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[T]) Push(x any) {
	item := x.(*Item[T])
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}
