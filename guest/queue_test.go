package guest

import (
	"math/rand"
	"testing"
)

func testRequest(t *testing.T, id uint32) *Request {
	t.Helper()
	req, err := NewRequest(&Slot{}, nil, id, I32(id))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

// checkChain verifies the structural invariant: traversal from the head
// visits exactly the expected handles, and every node's neighbor links
// are mutually consistent.
func checkChain(t *testing.T, q *Queue, want []Handle) {
	t.Helper()

	if q.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", q.Len(), len(want))
	}

	var got []Handle
	prev := NoHandle
	for h := q.Head(); h != NoHandle; h = q.Next(h) {
		n := q.nodes[h-1]
		if !n.valid {
			t.Fatalf("traversal reached invalid handle %d", h)
		}
		if n.prev != prev {
			t.Fatalf("handle %d: prev = %d, want %d", h, n.prev, prev)
		}
		got = append(got, h)
		prev = h
		if len(got) > len(q.nodes) {
			t.Fatal("traversal cycle")
		}
	}

	if len(got) != len(want) {
		t.Fatalf("traversal visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("traversal visited %v, want %v", got, want)
		}
	}
}

func TestQueuePushFront(t *testing.T) {
	q := NewQueue()
	if q.Head() != NoHandle || q.Len() != 0 {
		t.Fatal("new queue not empty")
	}

	h1 := q.Push(testRequest(t, 1))
	h2 := q.Push(testRequest(t, 2))
	h3 := q.Push(testRequest(t, 3))

	// Most recent push is the head.
	checkChain(t, q, []Handle{h3, h2, h1})

	req, ok := q.Get(h2)
	if !ok || req.FuncID != 2 {
		t.Errorf("Get(h2) = %v, %v", req, ok)
	}
}

func TestQueueRemovePositions(t *testing.T) {
	build := func() (*Queue, [3]Handle) {
		q := NewQueue()
		h1 := q.Push(testRequest(t, 1))
		h2 := q.Push(testRequest(t, 2))
		h3 := q.Push(testRequest(t, 3))
		return q, [3]Handle{h3, h2, h1} // traversal order
	}

	t.Run("head", func(t *testing.T) {
		q, h := build()
		if req := q.Remove(h[0]); req == nil || req.FuncID != 3 {
			t.Fatalf("Remove head = %v", req)
		}
		checkChain(t, q, []Handle{h[1], h[2]})
	})

	t.Run("middle", func(t *testing.T) {
		q, h := build()
		if req := q.Remove(h[1]); req == nil || req.FuncID != 2 {
			t.Fatalf("Remove middle = %v", req)
		}
		checkChain(t, q, []Handle{h[0], h[2]})
	})

	t.Run("tail", func(t *testing.T) {
		q, h := build()
		if req := q.Remove(h[2]); req == nil || req.FuncID != 1 {
			t.Fatalf("Remove tail = %v", req)
		}
		checkChain(t, q, []Handle{h[0], h[1]})
	})

	t.Run("all then empty", func(t *testing.T) {
		q, h := build()
		q.Remove(h[1])
		q.Remove(h[0])
		q.Remove(h[2])
		checkChain(t, q, nil)
		if q.Head() != NoHandle {
			t.Errorf("Head = %d after removing everything", q.Head())
		}
	})
}

func TestQueueStaleHandles(t *testing.T) {
	q := NewQueue()
	h := q.Push(testRequest(t, 1))

	if q.Remove(NoHandle) != nil {
		t.Error("Remove(NoHandle) returned a request")
	}
	if q.Remove(Handle(99)) != nil {
		t.Error("Remove of unknown handle returned a request")
	}

	if q.Remove(h) == nil {
		t.Fatal("first Remove failed")
	}
	if q.Remove(h) != nil {
		t.Error("second Remove of same handle returned a request")
	}
	if _, ok := q.Get(h); ok {
		t.Error("Get succeeded on removed handle")
	}
	checkChain(t, q, nil)
}

func TestQueueHandleRecycling(t *testing.T) {
	q := NewQueue()
	h1 := q.Push(testRequest(t, 1))
	h2 := q.Push(testRequest(t, 2))
	q.Remove(h1)

	h3 := q.Push(testRequest(t, 3))
	if h3 != h1 {
		t.Errorf("freed slot not recycled: got %d, want %d", h3, h1)
	}
	checkChain(t, q, []Handle{h3, h2})

	req, ok := q.Get(h3)
	if !ok || req.FuncID != 3 {
		t.Errorf("recycled handle resolves to %v", req)
	}
}

func TestQueueEach(t *testing.T) {
	q := NewQueue()
	q.Push(testRequest(t, 1))
	q.Push(testRequest(t, 2))
	q.Push(testRequest(t, 3))

	var ids []uint32
	q.Each(func(h Handle, req *Request) bool {
		ids = append(ids, req.FuncID)
		return true
	})
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 2 || ids[2] != 1 {
		t.Errorf("Each visited %v, want [3 2 1]", ids)
	}

	n := 0
	q.Each(func(Handle, *Request) bool {
		n++
		return false
	})
	if n != 1 {
		t.Errorf("Each after stop visited %d, want 1", n)
	}
}

func TestQueueEachRemoveDuringWalk(t *testing.T) {
	q := NewQueue()
	q.Push(testRequest(t, 1))
	q.Push(testRequest(t, 2))
	q.Push(testRequest(t, 3))

	// Draining via Each is how collected requests are harvested.
	var ids []uint32
	q.Each(func(h Handle, req *Request) bool {
		ids = append(ids, req.FuncID)
		q.Remove(h)
		return true
	})
	if len(ids) != 3 {
		t.Fatalf("drain visited %v", ids)
	}
	checkChain(t, q, nil)
}

func TestQueueRandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q := NewQueue()

	live := map[Handle]uint32{}
	var order []Handle // traversal order, head first
	nextID := uint32(0)

	for step := 0; step < 2000; step++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			nextID++
			h := q.Push(testRequest(t, nextID))
			if _, clash := live[h]; clash {
				t.Fatalf("step %d: handle %d already live", step, h)
			}
			live[h] = nextID
			order = append([]Handle{h}, order...)
		} else {
			i := rng.Intn(len(order))
			h := order[i]
			req := q.Remove(h)
			if req == nil || req.FuncID != live[h] {
				t.Fatalf("step %d: Remove(%d) = %v, want id %d", step, h, req, live[h])
			}
			delete(live, h)
			order = append(order[:i], order[i+1:]...)
		}
		checkChain(t, q, order)
	}
}
