package engine

import (
	"slices"
	"sync"
)

// Registry owns one OrderBook per instrument. Books are created on first
// reference and never evicted.
type Registry struct {
	mu      sync.RWMutex
	books   map[string]*OrderBook
	newBook func(instrument string) *OrderBook
	created func(instrument string)
}

func NewRegistry(newBook func(instrument string) *OrderBook) *Registry {
	return &Registry{
		books:   make(map[string]*OrderBook),
		newBook: newBook,
	}
}

// OnCreate registers fn to run after a new book is stored, outside the map
// lock. It must be set before the registry is shared.
func (r *Registry) OnCreate(fn func(instrument string)) { r.created = fn }

// Resolve returns the book for instrument, creating it exactly once. newBook
// runs under the map lock and should only allocate.
func (r *Registry) Resolve(instrument string) *OrderBook {
	r.mu.RLock()
	b, ok := r.books[instrument]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	if b, ok := r.books[instrument]; ok {
		r.mu.Unlock()
		return b
	}
	b = r.newBook(instrument)
	r.books[instrument] = b
	r.mu.Unlock()

	if r.created != nil {
		r.created(instrument)
	}
	return b
}

// Lookup returns an existing book without creating one.
func (r *Registry) Lookup(instrument string) (*OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[instrument]
	return b, ok
}

func (r *Registry) Instruments() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.books))
	for k := range r.books {
		out = append(out, k)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}
