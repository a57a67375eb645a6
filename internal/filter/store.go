package filter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrStoreClosed is returned by Close when the store was already closed.
var ErrStoreClosed = errors.New("filter: store closed")

const defaultWriteTimeout = 5 * time.Second

// Persister is the durable storage behind a Store. Load returns (nil, nil) when nothing was saved yet.
type Persister interface {
	LoadFilterState(ctx context.Context) ([]byte, error)
	SaveFilterState(ctx context.Context, blob []byte) error
}

// Store holds the single FilterState value. SetFilters and ResetFilters are the only
// mutation entry points; each mutation is queued for persistence without waiting for it.
// Only the latest pending state is written when mutations outpace the persister.
type Store struct {
	mu     sync.RWMutex
	state  FilterState
	closed bool

	persister    Persister
	writeTimeout time.Duration
	logger       zerolog.Logger
	pending      chan []byte
	done         chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithWriteTimeout bounds each persister write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// NewStore rehydrates the state from p and starts the background writer.
// A nil persister keeps the state in memory only. Missing or corrupt persisted
// data falls back to InitialState.
func NewStore(ctx context.Context, p Persister, opts ...Option) *Store {
	s := &Store{
		state:        InitialState(),
		persister:    p,
		writeTimeout: defaultWriteTimeout,
		logger:       log.Logger,
		pending:      make(chan []byte, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = s.rehydrate(ctx)
	go s.run()
	return s
}

func (s *Store) rehydrate(ctx context.Context) FilterState {
	if s.persister == nil {
		return InitialState()
	}
	blob, err := s.persister.LoadFilterState(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("filter state load failed, starting from empty filters")
		return InitialState()
	}
	if len(blob) == 0 {
		return InitialState()
	}
	state, err := DecodeState(blob)
	if err != nil {
		s.logger.Warn().Err(err).Msg("persisted filter state is corrupt, starting from empty filters")
		return InitialState()
	}
	s.logger.Debug().Str("category", state.CategoryName()).Int("characteristics", len(state.Characteristics)).Msg("filter state rehydrated")
	return state
}

// State returns a copy of the current filter state.
func (s *Store) State() FilterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// SetFilters shallow-merges p into the current state and returns the result.
func (s *Store) SetFilters(p Patch) FilterState {
	return s.SetFiltersFunc(func(FilterState) Patch { return p })
}

// SetFiltersFunc builds the patch from the current state under the store lock,
// so read-modify-write updates cannot interleave.
func (s *Store) SetFiltersFunc(build func(current FilterState) Patch) FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := build(s.state.Clone())
	s.state = s.state.Apply(p)
	s.enqueueLocked()
	return s.state.Clone()
}

// ResetFilters restores the initial state.
func (s *Store) ResetFilters() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = InitialState()
	s.enqueueLocked()
	return s.state.Clone()
}

// enqueueLocked replaces any unwritten blob with the current state. Must hold s.mu.
func (s *Store) enqueueLocked() {
	if s.persister == nil || s.closed {
		return
	}
	blob, err := EncodeState(s.state)
	if err != nil {
		s.logger.Error().Err(err).Msg("filter state encode failed")
		return
	}
	select {
	case <-s.pending:
	default:
	}
	s.pending <- blob
}

func (s *Store) run() {
	defer close(s.done)
	for blob := range s.pending {
		s.write(blob)
	}
}

func (s *Store) write(blob []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.persister.SaveFilterState(ctx, blob); err != nil {
		s.logger.Warn().Err(err).Msg("filter state persist failed")
	}
}

// Close stops accepting writes and waits until the last queued state is written
// or ctx is done.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.closed = true
	close(s.pending)
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
