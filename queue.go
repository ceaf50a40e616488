package assetcompress

import "sync"

// DeletionQueue collects the paths of original files to remove once the
// build has finished. One queue spans the phases of a single build.
// Push is safe for concurrent use; a path is kept once.
type DeletionQueue struct {
	mu      sync.Mutex
	paths   []string
	seen    map[string]struct{}
	drained bool
}

// NewDeletionQueue returns an empty queue.
func NewDeletionQueue() *DeletionQueue {
	return &DeletionQueue{seen: make(map[string]struct{})}
}

// Push appends path. It reports false when the path was already queued or
// the queue has been drained.
func (q *DeletionQueue) Push(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.drained {
		return false
	}
	if q.seen == nil {
		q.seen = make(map[string]struct{})
	}
	if _, ok := q.seen[path]; ok {
		return false
	}
	q.seen[path] = struct{}{}
	q.paths = append(q.paths, path)
	return true
}

// Len returns the number of queued paths.
func (q *DeletionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.paths)
}

// Drain returns the queued paths in push order and closes the queue.
// Later calls return nil.
func (q *DeletionQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.drained {
		return nil
	}
	q.drained = true
	paths := q.paths
	q.paths = nil
	q.seen = nil
	return paths
}
