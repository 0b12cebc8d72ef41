// Package store defines the persistence collaborators and their sqlite
// implementation.
package store

import (
	"context"
	"errors"

	"github.com/groupdigest/summary-platform/internal/engine"
	"github.com/groupdigest/summary-platform/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// MessageStore reads and writes captured messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, threadID string) ([]model.Message, error)
	ListRecentMessages(ctx context.Context, threadID string, limit int) ([]model.Message, error)
}

// ThreadStore reads and writes thread records.
type ThreadStore interface {
	GetThread(ctx context.Context, threadID string) (*model.Thread, error)
	ListThreads(ctx context.Context) ([]model.Thread, error)
	TouchThread(ctx context.Context, thread *model.Thread) error
}

// SummaryStore persists generated summaries.
type SummaryStore interface {
	CreateSummary(ctx context.Context, summary *model.Summary) (string, error)
	LatestSummary(ctx context.Context, threadID string) (*model.Summary, error)
}

// DownloadedModel points at a model file a collaborator already fetched
// and verified.
type DownloadedModel struct {
	Name          string
	LocalFilePath string
}

// ModelRegistry exposes the downloaded-model record, nil when none exists.
type ModelRegistry interface {
	DownloadedModel(ctx context.Context) (*DownloadedModel, error)
}

// PreferenceStore holds runtime-switchable user preferences. It satisfies
// the engine's ProviderSource and CredentialSource and the triage
// ThresholdSource, all of which re-read per call.
type PreferenceStore interface {
	ActiveProvider(ctx context.Context) (engine.Provider, error)
	SetActiveProvider(ctx context.Context, provider engine.Provider) error
	CloudCredential(ctx context.Context) (string, error)
	SetCloudCredential(ctx context.Context, credential string) error
	ImportanceThreshold(ctx context.Context) (float64, error)
	SetImportanceThreshold(ctx context.Context, threshold float64) error
}
