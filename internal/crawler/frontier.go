package crawler

import "sync"

// queue is a FIFO frontier that admits each URL once per run.
type queue struct {
	items    []string
	enqueued map[string]struct{}
}

func newQueue(seeds []string) *queue {
	q := &queue{enqueued: make(map[string]struct{}, len(seeds))}
	for _, s := range seeds {
		q.push(s)
	}
	return q
}

// push appends url unless it was already admitted this run.
func (q *queue) push(url string) bool {
	if _, ok := q.enqueued[url]; ok {
		return false
	}
	q.enqueued[url] = struct{}{}
	q.items = append(q.items, url)
	return true
}

func (q *queue) pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	url := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return url, true
}

func (q *queue) size() int { return len(q.items) }

// VisitedSet records URLs fetched successfully over an Engine's lifetime.
type VisitedSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// Add marks url visited.
func (v *VisitedSet) Add(url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen[url] = struct{}{}
}

// Contains reports whether url was visited.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.seen[url]
	return ok
}

// Len reports how many URLs were visited.
func (v *VisitedSet) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.seen)
}
