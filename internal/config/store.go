package config

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/tasktrack/internal/config/notify"
)

// Store holds the current Config and publishes replacements.
type Store struct {
	current  atomic.Pointer[Config]
	mu       sync.Mutex // serialises Apply and Update
	notifier *notify.Notifier[*Config]
}

// NewStore creates a Store from opts.
func NewStore(opts Options) (*Store, error) {
	cfg, err := Compile(opts)
	if err != nil {
		return nil, err
	}
	s := &Store{notifier: notify.New[*Config]()}
	s.current.Store(cfg)
	return s, nil
}

// Current returns the active snapshot.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Apply validates opts and, on success, replaces the active snapshot and
// notifies subscribers. On error the previous snapshot stays in effect.
func (s *Store) Apply(opts Options) error {
	s.mu.Lock()
	cfg, err := Compile(opts)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current.Store(cfg)
	s.mu.Unlock()

	s.notifier.Notify(cfg)
	return nil
}

// Update applies fn to a copy of the current options.
func (s *Store) Update(fn func(*Options)) error {
	s.mu.Lock()
	opts := s.current.Load().Options()
	fn(&opts)
	cfg, err := Compile(opts)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current.Store(cfg)
	s.mu.Unlock()

	s.notifier.Notify(cfg)
	return nil
}

// AddCommentExclusion appends text to the exact-comment exclusions unless
// it is already present.
func (s *Store) AddCommentExclusion(text string) error {
	if s.Current().IsCommentExcluded(text) {
		return nil
	}
	return s.Update(func(o *Options) {
		if !slices.Contains(o.ExcludeExactComments, text) {
			o.ExcludeExactComments = append(o.ExcludeExactComments, text)
		}
	})
}

// Subscribe registers fn for every applied snapshot.
func (s *Store) Subscribe(fn func(*Config)) *notify.Subscription {
	return s.notifier.Subscribe(fn)
}

// Close releases subscribers.
func (s *Store) Close() {
	s.notifier.Close()
}
