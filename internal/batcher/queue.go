package batcher

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// queueKey orders the admission queue: higher priority first, then FIFO by
// submission sequence within a tier.
type queueKey struct {
	priority int
	seq      uint64
}

func compareQueueKeys(a, b interface{}) int {
	ka, kb := a.(queueKey), b.(queueKey)
	switch {
	case ka.priority > kb.priority:
		return -1
	case ka.priority < kb.priority:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// taskQueue is not safe for concurrent use; the batcher guards it with its mutex.
type taskQueue struct {
	tree *redblacktree.Tree
}

func newTaskQueue() *taskQueue {
	return &taskQueue{tree: redblacktree.NewWith(compareQueueKeys)}
}

func (q *taskQueue) push(t *task) {
	q.tree.Put(queueKey{priority: t.priority, seq: t.seq}, t)
}

// pop removes and returns the front task, nil when empty.
func (q *taskQueue) pop() *task {
	node := q.tree.Left()
	if node == nil {
		return nil
	}
	q.tree.Remove(node.Key)
	return node.Value.(*task)
}

// drain pops up to max tasks in queue order.
func (q *taskQueue) drain(max int) []*task {
	if max <= 0 {
		return nil
	}
	var out []*task
	for len(out) < max {
		t := q.pop()
		if t == nil {
			break
		}
		out = append(out, t)
	}
	return out
}

func (q *taskQueue) len() int {
	return q.tree.Size()
}
