package queue

import (
	"testing"
	"time"
)

func TestPriorityQueue_Order(t *testing.T) {
	pq := NewPriorityQueue[string]()
	base := time.Now()

	pq.Push("late", 100, base.Add(2*time.Second))
	pq.Push("low", 10, base)
	pq.Push("high", 100, base)

	if pq.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", pq.Len())
	}

	want := []string{"high", "low"}
	for _, w := range want {
		got, ok := pq.NextReady(base)
		if !ok || got != w {
			t.Fatalf("NextReady: got (%q, %v), want %q", got, ok, w)
		}
	}

	if _, ok := pq.NextReady(base); ok {
		t.Errorf("NextReady returned an item scheduled in the future")
	}
	next, ok := pq.NextRun()
	if !ok || !next.Equal(base.Add(2*time.Second)) {
		t.Errorf("NextRun: got (%v, %v)", next, ok)
	}

	got, ok := pq.NextReady(base.Add(3 * time.Second))
	if !ok || got != "late" {
		t.Errorf("NextReady after delay: got (%q, %v)", got, ok)
	}
}

func TestPriorityQueue_Clear(t *testing.T) {
	pq := NewPriorityQueue[int]()
	pq.Push(1, 0, time.Now())
	pq.Push(2, 0, time.Now())
	pq.Clear()

	if pq.Len() != 0 {
		t.Errorf("Len after Clear: got %d", pq.Len())
	}
	if _, ok := pq.NextReady(time.Now()); ok {
		t.Errorf("NextReady after Clear returned an item")
	}
}
