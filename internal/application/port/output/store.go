package output

import (
	"context"

	"zenix/internal/domain/entity"
)

type ConversationStore interface {
	Load(ctx context.Context, url string) ([]entity.ConversationTurn, error)
	Save(ctx context.Context, url string, turns []entity.ConversationTurn) error
	Delete(ctx context.Context, url string) error
}

type SettingsStore interface {
	APIKey(ctx context.Context) (string, error)
	SetAPIKey(ctx context.Context, key string) error
}
