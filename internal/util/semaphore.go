package util

// Semaphore bounds the number of concurrent holders via a buffered channel.
type Semaphore struct {
	ch chan struct{}
}

// NewSemaphore returns a Semaphore permitting up to n concurrent Acquires.
// n <= 0 is treated as unbounded (Acquire/Release become no-ops).
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{ch: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available.
func (s *Semaphore) Acquire() {
	if s.ch == nil {
		return
	}
	s.ch <- struct{}{}
}

// Release frees a slot acquired by Acquire.
func (s *Semaphore) Release() {
	if s.ch == nil {
		return
	}
	<-s.ch
}
