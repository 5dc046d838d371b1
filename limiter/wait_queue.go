/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import "container/list"

type waiter struct {
	id    string
	ready chan struct{} // closed when the waiter is admitted
}

// waitQueue is a FIFO queue of operations waiting for admission.
// Waiters may leave the queue from any position when their context is done.
type waitQueue struct {
	list  *list.List
	index map[string]*list.Element
}

func newWaitQueue() *waitQueue {
	return &waitQueue{list: list.New(), index: make(map[string]*list.Element)}
}

func (q *waitQueue) Len() int {
	return q.list.Len()
}

func (q *waitQueue) Contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

func (q *waitQueue) PushBack(id string) *waiter {
	w := &waiter{id: id, ready: make(chan struct{})}
	q.index[id] = q.list.PushBack(w)
	return w
}

func (q *waitQueue) PopFront() *waiter {
	elem := q.list.Front()
	if elem == nil {
		return nil
	}
	w := q.list.Remove(elem).(*waiter)
	delete(q.index, w.id)
	return w
}

// Remove removes the waiter from the queue. It returns false if the waiter is not queued anymore.
func (q *waitQueue) Remove(w *waiter) bool {
	elem, ok := q.index[w.id]
	if !ok || elem.Value.(*waiter) != w {
		return false
	}
	q.list.Remove(elem)
	delete(q.index, w.id)
	return true
}
