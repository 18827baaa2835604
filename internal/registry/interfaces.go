package registry

import (
	"context"
	"time"

	"github.com/joshdurbin/linkregistry/internal/domain"
)

// LinkRegistry defines the operations over the shortCode -> ShortLink map.
//
// Mutating operations persist the full map. When that write fails the
// in-memory change is kept, the normal result is returned, and the error
// is a *domain.PersistenceError (errors.Is(err, domain.ErrPersistence)).
type LinkRegistry interface {
	// Load replaces the in-memory map with the persisted snapshot, if any
	Load(ctx context.Context) error

	// Create validates the request, allocates a short code and stores a new link
	Create(ctx context.Context, req domain.CreateLinkRequest) (*domain.ShortLink, error)

	// Resolve returns the link for shortCode, flipping its expired flag when due
	Resolve(ctx context.Context, shortCode string) (*domain.ShortLink, error)

	// Access records a click and returns the original URL for redirection
	Access(ctx context.Context, shortCode, source string) (string, error)

	// List returns every link, newest first, without touching expiry flags
	List(ctx context.Context) []*domain.ShortLink

	// RefreshExpired flips the expired flag on every link past its expiry
	RefreshExpired(ctx context.Context) (int, error)

	// PurgeExpired removes every link whose expiry time has passed
	PurgeExpired(ctx context.Context) (int, error)

	// Delete removes a single link
	Delete(ctx context.Context, shortCode string) error

	// Clear removes every link and the persisted snapshot
	Clear(ctx context.Context) (int, error)

	// StartMaintenance periodically refreshes expiry flags, and purges when autoPurge is set
	StartMaintenance(ctx context.Context, interval time.Duration, autoPurge bool) error

	// StopMaintenance stops the maintenance loop
	StopMaintenance() error

	// Close stops background work
	Close() error
}
