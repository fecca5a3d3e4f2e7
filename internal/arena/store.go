package arena

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

var ErrNotFound = errors.New("game not found")

// Store keeps live games in memory, keyed by session id.
type Store struct {
	content *Content
	newRand func() *rand.Rand

	mu    sync.RWMutex
	games map[string]*Game
}

type StoreOption func(*Store)

// WithRand sets the source each new game draws its randomness from.
func WithRand(fn func() *rand.Rand) StoreOption {
	return func(s *Store) {
		s.newRand = fn
	}
}

func NewStore(content *Content, opts ...StoreOption) *Store {
	s := &Store{
		content: content,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		games: map[string]*Game{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Content() *Content {
	return s.content
}

// Create starts a new game under a fresh session id.
func (s *Store) Create(_ context.Context, username string, difficulty api.Difficulty) (*Game, error) {
	g, err := NewGame(uuid.NewString(), username, difficulty, s.content, s.newRand())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID()] = g
	return g, nil
}

func (s *Store) Get(_ context.Context, id string) (*Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (s *Store) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// Fact draws a fact whose tags appear in topic, or any fact when nothing
// matches. A nil rng uses the shared source.
func (c *Content) Fact(topic string, rng *rand.Rand) string {
	intn := rand.IntN
	if rng != nil {
		intn = rng.IntN
	}
	topic = strings.ToLower(topic)

	var matches []string
	if topic != "" {
		for _, f := range c.Facts {
			for _, tag := range f.Tags {
				if strings.Contains(topic, strings.ToLower(tag)) {
					matches = append(matches, f.Text)
					break
				}
			}
		}
	}
	if len(matches) == 0 {
		for _, f := range c.Facts {
			matches = append(matches, f.Text)
		}
	}
	return matches[intn(len(matches))]
}
