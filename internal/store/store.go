package store

import "context"

// Store defines durable experiment storage.
type Store interface {
	// Test operations
	CreateTest(ctx context.Context, def *TestDefinition) (*Test, error)
	GetTest(ctx context.Context, id string) (*Test, error)
	ListTests(ctx context.Context) ([]*Test, error)
	ListActiveTests(ctx context.Context) ([]*Test, error)
	UpdateTest(ctx context.Context, id string, update *TestUpdate) (*Test, error)
	SetWinner(ctx context.Context, id, winningVariantID string) error
	DeleteTest(ctx context.Context, id string) error

	// Event operations
	RecordImpression(ctx context.Context, testID, variantID string) error
	RecordConversion(ctx context.Context, testID, variantID string) error

	// Lifecycle
	Close() error
}
