package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// readTimeout bounds one collection across all readers.
const readTimeout = 5 * time.Second

// Sampler merges reader output into a State and caches it for maxAge so
// that frequent measurements do not hammer the host.
type Sampler struct {
	readers []Reader
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state *State
}

func NewSampler(readers []Reader, maxAge time.Duration, logger *slog.Logger) *Sampler {
	return &Sampler{
		readers: readers,
		maxAge:  maxAge,
		logger:  logger,
		now:     time.Now,
	}
}

// Sample returns the cached state, collecting a fresh one when it is older
// than maxAge.
func (s *Sampler) Sample() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil && s.now().Sub(s.state.Timestamp) < s.maxAge {
		return s.state.Clone(), nil
	}

	state, err := s.collect()
	if err != nil {
		return nil, err
	}
	s.state = state
	return state.Clone(), nil
}

func (s *Sampler) collect() (*State, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	state := &State{Timestamp: s.now()}
	read := 0
	for _, r := range s.readers {
		if err := r.Read(ctx, state); err != nil {
			s.logger.Warn("resource reading failed", "reader", r.Name(), "error", err)
			continue
		}
		read++
	}

	if read == 0 && len(s.readers) > 0 {
		return nil, ErrNoSample
	}
	return state, nil
}
