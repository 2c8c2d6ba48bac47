package util

// Semaphore bounds the number of concurrent task executions within a single
// stage. The engine acquires one slot per task before dispatching it and
// releases the slot when the task finishes, regardless of outcome.
type Semaphore struct {
	tickets chan struct{}
}

// NewSemaphore creates a semaphore that permits up to n concurrent holders.
// n <= 0 is treated as unbounded.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{tickets: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available. It is a no-op for an unbounded
// semaphore.
func (s *Semaphore) Acquire() {
	if s.tickets == nil {
		return
	}
	s.tickets <- struct{}{}
}

// Release returns a slot to the pool.
func (s *Semaphore) Release() {
	if s.tickets == nil {
		return
	}
	<-s.tickets
}
