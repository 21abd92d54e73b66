// Package memory keeps conversations and settings for the life of the process.
package memory

import (
	"context"
	"sync"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

var (
	_ output.ConversationStore = (*Store)(nil)
	_ output.SettingsStore     = (*Store)(nil)
)

type Store struct {
	mu            sync.RWMutex
	conversations map[string][]entity.ConversationTurn
	apiKey        string
}

func NewStore() *Store {
	return &Store{conversations: make(map[string][]entity.ConversationTurn)}
}

func (s *Store) Load(_ context.Context, url string) ([]entity.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns, ok := s.conversations[url]
	if !ok {
		return nil, nil
	}
	return append([]entity.ConversationTurn(nil), turns...), nil
}

func (s *Store) Save(_ context.Context, url string, turns []entity.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[url] = append([]entity.ConversationTurn(nil), entity.History(turns).Window()...)
	return nil
}

func (s *Store) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, url)
	return nil
}

func (s *Store) APIKey(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey, nil
}

func (s *Store) SetAPIKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
	return nil
}
