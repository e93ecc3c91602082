package publish

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"weak"
)

// Handle is an observer's subscription. Keep it reachable for as long as
// notifications are wanted.
type Handle[E any] struct {
	fn      func(ctx context.Context, ev E)
	cancel  func()
	cleanup runtime.Cleanup
}

// Cancel unsubscribes. Safe to call more than once.
func (h *Handle[E]) Cancel() {
	h.cleanup.Stop()
	h.cancel()
}

type slot[E any] struct {
	id     uint64
	handle weak.Pointer[Handle[E]]
}

type slotKey[K comparable] struct {
	subject K
	id      uint64
}

// Registry maps subjects to observers in registration order.
// It is safe for concurrent use.
type Registry[K comparable, E any] struct {
	mu       sync.Mutex
	subjects map[K][]slot[E]
	nextID   uint64
}

// NewRegistry returns an empty registry.
func NewRegistry[K comparable, E any]() *Registry[K, E] {
	return &Registry[K, E]{subjects: make(map[K][]slot[E])}
}

// Register subscribes fn to subject.
func (r *Registry[K, E]) Register(subject K, fn func(ctx context.Context, ev E)) *Handle[E] {
	r.mu.Lock()
	r.nextID++
	key := slotKey[K]{subject: subject, id: r.nextID}
	h := &Handle[E]{fn: fn}
	r.subjects[subject] = append(r.subjects[subject], slot[E]{id: key.id, handle: weak.Make(h)})
	r.mu.Unlock()

	h.cancel = func() { r.drop(key) }
	h.cleanup = runtime.AddCleanup(h, r.drop, key)
	return h
}

// Remove unsubscribes h.
func (r *Registry[K, E]) Remove(h *Handle[E]) {
	if h != nil {
		h.Cancel()
	}
}

func (r *Registry[K, E]) drop(key slotKey[K]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slots := slices.DeleteFunc(r.subjects[key.subject], func(s slot[E]) bool { return s.id == key.id })
	if len(slots) == 0 {
		delete(r.subjects, key.subject)
		return
	}
	r.subjects[key.subject] = slots
}

// Notify calls every live observer of subject in registration order.
// Observers may register or cancel during the call; changes apply to the
// next notification.
func (r *Registry[K, E]) Notify(ctx context.Context, subject K, ev E) {
	r.mu.Lock()
	slots := slices.Clone(r.subjects[subject])
	r.mu.Unlock()

	for _, s := range slots {
		if h := s.handle.Value(); h != nil {
			h.fn(ctx, ev)
		}
	}
}

// Len returns the number of observers registered for subject, including
// collected ones whose cleanup has not run yet.
func (r *Registry[K, E]) Len(subject K) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects[subject])
}
