package reference

import "sync"

// query is the state of one asynchronous fetch. A settle from a superseded
// start is ignored.
type query[T any] struct {
	mu       sync.Mutex
	gen      uint64
	data     T
	err      error
	loaded   bool
	fetching bool
	enabled  bool
}

type snapshot[T any] struct {
	Data     T
	Err      error
	Loaded   bool
	Fetching bool
	Enabled  bool
}

func (q *query[T]) start() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gen++
	q.fetching = true
	q.enabled = true
	return q.gen
}

func (q *query[T]) settle(gen uint64, data T, err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return false
	}
	q.fetching = false
	q.err = err
	if err == nil {
		q.data = data
		q.loaded = true
	}
	return true
}

// disable resets the query to its idle state.
func (q *query[T]) disable() {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	q.gen++
	q.data, q.err, q.loaded, q.fetching, q.enabled = zero, nil, false, false, false
}

func (q *query[T]) snapshot() snapshot[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return snapshot[T]{Data: q.data, Err: q.err, Loaded: q.loaded, Fetching: q.fetching, Enabled: q.enabled}
}
