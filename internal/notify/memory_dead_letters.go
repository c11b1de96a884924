package notify

import (
	"context"
	"sync"
)

// MemoryDeadLetters is the in-process sink used when Redis is not available.
type MemoryDeadLetters struct {
	mu       sync.Mutex
	failures []Failure
}

// NewMemoryDeadLetters builds an empty sink.
func NewMemoryDeadLetters() *MemoryDeadLetters {
	return &MemoryDeadLetters{}
}

func (d *MemoryDeadLetters) Record(_ context.Context, failure Failure) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = append([]Failure{failure}, d.failures...)
	if len(d.failures) > deadLetterCap {
		d.failures = d.failures[:deadLetterCap]
	}
	return nil
}

func (d *MemoryDeadLetters) Count(context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.failures)), nil
}

func (d *MemoryDeadLetters) Recent(_ context.Context, n int64) ([]Failure, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > int64(len(d.failures)) {
		n = int64(len(d.failures))
	}
	if n <= 0 {
		return nil, nil
	}
	return append([]Failure(nil), d.failures[:n]...), nil
}
