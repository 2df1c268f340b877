package bigmi

import (
	"context"
	"errors"
	"io"
	"sync"
)

// NextPageFunc fetches the page after prev.
type NextPageFunc func(ctx context.Context, prev TransactionPage) (TransactionPage, error)

// PageStream is a lazy, finite sequence of transaction pages. Every Recv after the first
// costs one provider round-trip. Recv returns io.EOF after the page with HasMore == false.
// A stream cannot be restarted; request the history again for a fresh cursor.
type PageStream struct {
	mu      sync.Mutex
	next    NextPageFunc
	pending *TransactionPage
	last    TransactionPage
	done    bool
	err     error
}

// NewPageStream fetches the first page now so that provider failures surface to the caller.
func NewPageStream(ctx context.Context, first func(ctx context.Context) (TransactionPage, error), next NextPageFunc) (*PageStream, error) {
	p, err := first(ctx)
	if err != nil {
		return nil, err
	}
	return &PageStream{next: next, pending: &p}, nil
}

// StaticPages returns a stream over pages that are already in memory.
func StaticPages(pages ...TransactionPage) *PageStream {
	s := &PageStream{}
	if len(pages) == 0 {
		s.done = true
		return s
	}
	rest := pages[1:]
	s.pending = &pages[0]
	s.next = func(ctx context.Context, prev TransactionPage) (TransactionPage, error) {
		if len(rest) == 0 {
			return TransactionPage{}, io.EOF
		}
		p := rest[0]
		rest = rest[1:]
		return p, nil
	}
	return s
}

func (s *PageStream) Recv(ctx context.Context) (TransactionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return TransactionPage{}, s.err
	}
	if s.done {
		return TransactionPage{}, io.EOF
	}
	var (
		p   TransactionPage
		err error
	)
	if s.pending != nil {
		p = *s.pending
		s.pending = nil
	} else {
		if ctx == nil {
			ctx = context.Background()
		}
		p, err = s.next(ctx, s.last)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				return TransactionPage{}, io.EOF
			}
			s.err = err
			return TransactionPage{}, err
		}
	}
	s.last = p
	if !p.HasMore || s.next == nil {
		s.done = true
	}
	return p, nil
}

// Close stops the stream. Further Recv calls return io.EOF.
func (s *PageStream) Close() {
	s.mu.Lock()
	s.done = true
	s.pending = nil
	s.mu.Unlock()
}

// DrainPages reads every remaining page and concatenates their transactions.
func DrainPages(ctx context.Context, s *PageStream) ([]Transaction, error) {
	var out []Transaction
	for {
		p, err := s.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, p.Transactions...)
	}
}
