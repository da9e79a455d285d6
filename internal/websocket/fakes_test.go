package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type fakeSocket struct {
	id     string
	userID uuid.UUID

	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	code    int
	reason  string
	sendErr error
}

func newFakeSocket(userID uuid.UUID) *fakeSocket {
	return &fakeSocket{id: uuid.NewString(), userID: userID}
}

func (s *fakeSocket) ID() string        { return s.id }
func (s *fakeSocket) UserID() uuid.UUID { return s.userID }

func (s *fakeSocket) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	if s.closed {
		return ErrClientClosed
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSocket) Close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed, s.code, s.reason = true, code, reason
}

func (s *fakeSocket) received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *fakeSocket) closedWith() (bool, int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.code, s.reason
}

// blockSet is a symmetric block table.
type blockSet struct {
	mu    sync.Mutex
	pairs map[[2]uuid.UUID]bool
	err   error
	calls int
}

func newBlockSet() *blockSet {
	return &blockSet{pairs: make(map[[2]uuid.UUID]bool)}
}

func (b *blockSet) block(a, c uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pairs[[2]uuid.UUID{a, c}] = true
}

func (b *blockSet) IsBlocked(_ context.Context, a, c uuid.UUID) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return false, b.err
	}
	return b.pairs[[2]uuid.UUID{a, c}] || b.pairs[[2]uuid.UUID{c, a}], nil
}
