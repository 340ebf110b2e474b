package service

import "sync"

// streamLocks serializes ledger mutations per stream. Different streams
// proceed concurrently; two writers on the same stream queue up. Locks are
// created on first use and never reclaimed, which is fine for the stream
// counts a single process serves.
type streamLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newStreamLocks() *streamLocks {
	return &streamLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *streamLocks) lock(streamID string) func() {
	s.mu.Lock()
	l, ok := s.locks[streamID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[streamID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
