package guest

// Handle names a queued request. A handle stays valid until the entry is
// removed; slots of removed entries are recycled for later pushes.
type Handle uint32

// NoHandle is the null handle. Removing it is a no-op, and it is what
// Submit returns when nothing was queued.
const NoHandle Handle = 0

// Queue is the pending request collection: an arena of nodes threaded
// into a front-insertion doubly-linked chain. Push and Remove are O(1);
// traversal from the head visits exactly the live entries. Not safe for
// concurrent use.
type Queue struct {
	nodes    []queueNode
	freeList []Handle
	head     Handle
	live     int
}

type queueNode struct {
	next  Handle
	prev  Handle
	req   *Request
	valid bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		nodes:    make([]queueNode, 0, 16),
		freeList: make([]Handle, 0, 4),
	}
}

// Push inserts a request at the front and returns its handle.
func (q *Queue) Push(req *Request) Handle {
	n := queueNode{next: q.head, req: req, valid: true}

	var h Handle
	if len(q.freeList) > 0 {
		h = q.freeList[len(q.freeList)-1]
		q.freeList = q.freeList[:len(q.freeList)-1]
		q.nodes[h-1] = n
	} else {
		q.nodes = append(q.nodes, n)
		h = Handle(len(q.nodes))
	}

	if n.next != NoHandle {
		q.nodes[n.next-1].prev = h
	}
	q.head = h
	q.live++
	return h
}

// Remove unlinks an entry, relinking its neighbors (or moving the head if
// the entry was first), and returns its request. Stale or unknown handles
// return nil and change nothing.
func (q *Queue) Remove(h Handle) *Request {
	if h == NoHandle || int(h) > len(q.nodes) {
		return nil
	}
	n := &q.nodes[h-1]
	if !n.valid {
		return nil
	}

	if n.prev != NoHandle {
		q.nodes[n.prev-1].next = n.next
	} else if q.head == h {
		q.head = n.next
	}
	if n.next != NoHandle {
		q.nodes[n.next-1].prev = n.prev
	}

	req := n.req
	*n = queueNode{}
	q.freeList = append(q.freeList, h)
	q.live--
	return req
}

// Get returns the request behind a live handle.
func (q *Queue) Get(h Handle) (*Request, bool) {
	if h == NoHandle || int(h) > len(q.nodes) {
		return nil, false
	}
	n := q.nodes[h-1]
	if !n.valid {
		return nil, false
	}
	return n.req, true
}

// Head returns the handle of the most recently pushed live entry.
func (q *Queue) Head() Handle { return q.head }

// Next returns the handle following h in traversal order.
func (q *Queue) Next(h Handle) Handle {
	if h == NoHandle || int(h) > len(q.nodes) || !q.nodes[h-1].valid {
		return NoHandle
	}
	return q.nodes[h-1].next
}

// Each walks the chain from the head until fn returns false. fn may
// remove the entry it is visiting.
func (q *Queue) Each(fn func(Handle, *Request) bool) {
	for h := q.head; h != NoHandle; {
		n := q.nodes[h-1]
		next := n.next
		if !fn(h, n.req) {
			return
		}
		h = next
	}
}

// Len reports the number of live entries.
func (q *Queue) Len() int { return q.live }
