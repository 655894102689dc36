package interfaces

import "github.com/khufkens/greenwave/internal/sources"

// SourceManager defines the interface for managing acquisition sources
type SourceManager interface {
	StartSources() error
	AddSource(siteName string) error
	RemoveSource(siteName string) error
	ReloadSourcesConfig() error
	GetSource(siteName string) sources.Source
}

// Refetcher is implemented by sources that can run an out-of-schedule
// collection pass on demand.
type Refetcher interface {
	Refetch() error
}
