package server

import "context"

// workerPool bounds the number of parses running at once.
type workerPool struct {
	sem chan struct{}
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 1
	}
	return &workerPool{sem: make(chan struct{}, size)}
}

// Active reports how many slots are taken.
func (p *workerPool) Active() int {
	return len(p.sem)
}

func (p *workerPool) Size() int {
	return cap(p.sem)
}

// submit runs fn on a pool slot. If ctx ends first the caller stops waiting;
// a job that already started keeps its slot until fn returns.
func submit[T any](ctx context.Context, p *workerPool, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	var zero T
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	ch := make(chan result, 1)
	go func() {
		defer func() { <-p.sem }()
		v, err := fn()
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
