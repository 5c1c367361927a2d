package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"gardener/internal/domain"
)

type ItemStore interface {
	LoadAll(ctx context.Context) ([]*domain.Item, error)
	Upsert(ctx context.Context, item *domain.Item) (int64, error)
}

type PatternStore interface {
	LoadAll(ctx context.Context) ([]*domain.Pattern, error)
	Upsert(ctx context.Context, pattern *domain.Pattern) (int64, error)
}

type Catalog interface {
	ListCurrent(ctx context.Context) ([]domain.Listing, error)
	FetchPayload(ctx context.Context, externalID string) (*domain.Payload, error)
}

type DesiredPatterns interface {
	Desired(ctx context.Context) ([]string, error)
}

type ArtifactStore interface {
	Exists(path string) bool
	Save(name string, data []byte) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, event domain.ItemEvent) error
	Close() error
}
