package dsa

import (
	"testing"
	"time"
)

func TestPriorityQueue_PopsInPriorityOrder(t *testing.T) {
	pq := NewPriorityQueue(DefaultPriorityQueueConfig())
	pq.Push(HeapItem{Key: "low", Priority: 2})
	pq.Push(HeapItem{Key: "urgent", Priority: 0})
	pq.Push(HeapItem{Key: "mid", Priority: 1})

	var order []string
	for {
		item, ok := pq.Pop()
		if !ok {
			break
		}
		order = append(order, item.Key)
	}
	want := []string{"urgent", "mid", "low"}
	for i, k := range want {
		if order[i] != k {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestPriorityQueue_FIFOWithinSamePriority(t *testing.T) {
	pq := NewPriorityQueue(DefaultPriorityQueueConfig())
	base := time.Unix(1000, 0)
	pq.Push(HeapItem{Key: "first", Priority: 1, SubmittedAt: base})
	pq.Push(HeapItem{Key: "second", Priority: 1, SubmittedAt: base.Add(time.Second)})

	a, _ := pq.Pop()
	b, _ := pq.Pop()
	if a.Key != "first" || b.Key != "second" {
		t.Fatalf("got %s, %s; want first, second", a.Key, b.Key)
	}
}

func TestPriorityQueue_StarvationPrevention_BoostsOldLowPriorityItem(t *testing.T) {
	now := time.Unix(10_000, 0)
	pq := &PriorityQueue{
		config: PriorityQueueConfig{BoostInterval: time.Minute, MaxBoost: 2},
		now:    func() time.Time { return now },
	}
	// Submitted 6 minutes ago at priority 3: boosted by min(6,2)=2 -> effective 1.
	pq.Push(HeapItem{Key: "stale", Priority: 3, SubmittedAt: now.Add(-6 * time.Minute)})
	// Submitted just now at priority 2, unboosted.
	pq.Push(HeapItem{Key: "fresh", Priority: 2, SubmittedAt: now})

	top, _ := pq.Pop()
	if top.Key != "stale" {
		t.Fatalf("expected the starved item to be boosted ahead of the fresher one, got %q", top.Key)
	}
}

func TestPriorityQueue_PeekDoesNotRemove(t *testing.T) {
	pq := NewPriorityQueue(DefaultPriorityQueueConfig())
	pq.Push(HeapItem{Key: "only", Priority: 0})

	peeked, ok := pq.Peek()
	if !ok || peeked.Key != "only" {
		t.Fatalf("Peek = %+v, %v", peeked, ok)
	}
	if pq.Len() != 1 {
		t.Fatalf("Len() after Peek = %d, want 1", pq.Len())
	}
}

func TestPriorityQueue_EmptyPopReturnsFalse(t *testing.T) {
	pq := NewPriorityQueue(DefaultPriorityQueueConfig())
	if _, ok := pq.Pop(); ok {
		t.Error("Pop on empty queue should return false")
	}
}
