package registry

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshdurbin/linkregistry/internal/domain"
	"github.com/joshdurbin/linkregistry/internal/logging"
	"github.com/joshdurbin/linkregistry/internal/metrics"
	"github.com/joshdurbin/linkregistry/internal/shortener"
	"github.com/joshdurbin/linkregistry/internal/store"
)

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

// Registry implements LinkRegistry over an in-memory map persisted to a KeyValueStore
type Registry struct {
	mu        sync.Mutex
	links     map[string]*domain.ShortLink
	kv        store.KeyValueStore
	generator shortener.Generator

	now        func() time.Time
	newID      func() string
	env        Environment
	storageKey string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	loopMu   sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDFunc replaces the link ID generator
func WithIDFunc(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// WithEnvironment sets the default caller environment recorded on clicks
func WithEnvironment(env Environment) Option {
	return func(r *Registry) { r.env = env }
}

// WithStorageKey sets the key the snapshot is stored under
func WithStorageKey(key string) Option {
	return func(r *Registry) { r.storageKey = key }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates an empty registry. Call Load to restore persisted links.
func New(kv store.KeyValueStore, generator shortener.Generator, opts ...Option) *Registry {
	r := &Registry{
		links:      make(map[string]*domain.ShortLink),
		kv:         kv,
		generator:  generator,
		now:        time.Now,
		newID:      uuid.NewString,
		env:        ProcessEnvironment{},
		storageKey: store.DefaultKey,
		logger:     logging.Discard(),
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the in-memory map with the persisted snapshot. A missing
// snapshot leaves the registry empty.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.kv.Get(ctx, r.storageKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			r.links = make(map[string]*domain.ShortLink)
			r.metrics.SetLinks(0)
			return nil
		}
		return r.fail("load", &domain.PersistenceError{Op: "load", Err: err})
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return r.fail("load", &domain.PersistenceError{Op: "load", Err: fmt.Errorf("failed to decode snapshot: %w", err)})
	}

	links, err := snapshot.Map()
	if err != nil {
		return r.fail("load", &domain.PersistenceError{Op: "load", Err: err})
	}

	r.links = links
	r.metrics.SetLinks(len(links))
	r.logger.Info("registry loaded", "links", len(links), "last_updated", snapshot.LastUpdated)
	return nil
}

// Create validates req, allocates a short code and stores the new link
func (r *Registry) Create(ctx context.Context, req domain.CreateLinkRequest) (*domain.ShortLink, error) {
	originalURL := strings.TrimSpace(req.OriginalURL)
	if err := validateURL(originalURL); err != nil {
		return nil, r.fail("create", err)
	}

	validity := domain.DefaultValidityMinutes
	if req.ValidityMinutes != nil {
		validity = *req.ValidityMinutes
	}
	if validity <= 0 {
		return nil, r.fail("create", fmt.Errorf("%w: must be a positive number of minutes, got %d", domain.ErrInvalidValidity, validity))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Custom codes are taken verbatim; surrounding whitespace fails the pattern
	shortCode := req.CustomShortCode
	if shortCode != "" {
		if !shortCodePattern.MatchString(shortCode) {
			return nil, r.fail("create", fmt.Errorf("%w: must be 3-20 alphanumeric characters", domain.ErrInvalidShortCode))
		}
		if _, exists := r.links[shortCode]; exists {
			return nil, r.fail("create", fmt.Errorf("%w: %s", domain.ErrDuplicateShortCode, shortCode))
		}
	} else {
		existing := make(map[string]struct{}, len(r.links))
		for code := range r.links {
			existing[code] = struct{}{}
		}

		code, err := r.generator.Generate(ctx, existing)
		if err != nil {
			return nil, r.fail("create", fmt.Errorf("failed to generate short code: %w", err))
		}
		shortCode = code
	}

	now := r.now()
	link := &domain.ShortLink{
		ID:              r.newID(),
		OriginalURL:     originalURL,
		ShortCode:       shortCode,
		CreatedAt:       now,
		ValidityMinutes: validity,
		ExpiresAt:       now.Add(time.Duration(validity) * time.Minute),
		IsExpired:       false,
		Clicks:          []domain.ClickEvent{},
	}

	r.links[shortCode] = link
	r.metrics.LinkCreated()
	r.logger.Info("link created", "short_code", shortCode, "original_url", originalURL, "validity_minutes", validity)

	return link.Clone(), r.persist(ctx, "create")
}

// Resolve returns the link for shortCode, flipping its expired flag when due
func (r *Registry) Resolve(ctx context.Context, shortCode string) (*domain.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, flipped, err := r.resolveLocked(shortCode)
	if err != nil {
		return nil, r.fail("resolve", err)
	}

	var persistErr error
	if flipped {
		persistErr = r.persist(ctx, "resolve")
	}
	return link.Clone(), persistErr
}

// Access records a click on shortCode and returns its original URL. An empty
// source is recorded as domain.SourceDirect.
func (r *Registry) Access(ctx context.Context, shortCode, source string) (string, error) {
	location, agent := r.callerFor(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	link, flipped, err := r.resolveLocked(shortCode)
	if err != nil {
		return "", r.fail("access", err)
	}

	if link.IsExpired {
		err := fmt.Errorf("%w: %s", domain.ErrExpired, shortCode)
		if flipped {
			err = errors.Join(err, r.persist(ctx, "access"))
		}
		return "", r.fail("access", err)
	}

	if source == "" {
		source = domain.SourceDirect
	}

	link.Clicks = append(link.Clicks, domain.ClickEvent{
		Timestamp:   r.now(),
		Source:      source,
		Location:    location,
		AgentString: agent,
	})
	r.metrics.ClickRecorded()
	r.logger.Debug("click recorded", "short_code", shortCode, "source", source, "clicks", len(link.Clicks))

	return link.OriginalURL, r.persist(ctx, "access")
}

// resolveLocked looks up shortCode and flips its expired flag when due.
// It returns the live record; callers must hold r.mu.
func (r *Registry) resolveLocked(shortCode string) (*domain.ShortLink, bool, error) {
	link, exists := r.links[shortCode]
	if !exists {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrNotFound, shortCode)
	}

	if link.IsExpired || !link.ExpiredAt(r.now()) {
		return link, false, nil
	}

	link.IsExpired = true
	r.metrics.LinkExpired(1)
	r.logger.Info("link expired", "short_code", shortCode, "expires_at", link.ExpiresAt)
	return link, true, nil
}

// List returns copies of every link sorted by creation time, newest first
func (r *Registry) List(ctx context.Context) []*domain.ShortLink {
	r.mu.Lock()
	defer r.mu.Unlock()

	links := make([]*domain.ShortLink, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, link.Clone())
	}

	slices.SortFunc(links, func(a, b *domain.ShortLink) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ShortCode, b.ShortCode)
	})
	return links
}

// RefreshExpired flips the expired flag on every link whose expiry has been reached
func (r *Registry) RefreshExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	flipped := 0
	for _, link := range r.links {
		if !link.IsExpired && link.ExpiredAt(now) {
			link.IsExpired = true
			flipped++
		}
	}

	if flipped == 0 {
		return 0, nil
	}

	r.metrics.LinkExpired(flipped)
	r.logger.Info("expired links refreshed", "flipped", flipped)
	return flipped, r.persist(ctx, "refresh")
}

// PurgeExpired removes every link whose expiry time is before now, whether or
// not its expired flag has been flipped yet
func (r *Registry) PurgeExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for code, link := range r.links {
		if link.ExpiresAt.Before(now) {
			delete(r.links, code)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}

	r.metrics.LinksRemoved(removed, 0)
	r.logger.Info("expired links purged", "removed", removed)
	return removed, r.persist(ctx, "purge")
}

// Delete removes a single link
func (r *Registry) Delete(ctx context.Context, shortCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.links[shortCode]; !exists {
		return r.fail("delete", fmt.Errorf("%w: %s", domain.ErrNotFound, shortCode))
	}

	delete(r.links, shortCode)
	r.metrics.LinksRemoved(0, 1)
	r.logger.Info("link deleted", "short_code", shortCode)
	return r.persist(ctx, "delete")
}

// Clear removes every link and deletes the persisted snapshot
func (r *Registry) Clear(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := len(r.links)
	r.links = make(map[string]*domain.ShortLink)
	r.metrics.LinksRemoved(0, removed)
	r.metrics.SetLinks(0)
	r.logger.Info("registry cleared", "removed", removed)

	if err := r.kv.Delete(ctx, r.storageKey); err != nil {
		return removed, r.persistFailed("clear", err)
	}
	return removed, nil
}

// Close stops the maintenance loop
func (r *Registry) Close() error {
	return r.StopMaintenance()
}

// persist writes the full map under the storage key. Callers must hold r.mu.
func (r *Registry) persist(ctx context.Context, op string) error {
	r.metrics.SetLinks(len(r.links))

	snapshot := domain.NewSnapshot(r.links, r.now())
	data, err := json.Marshal(snapshot)
	if err != nil {
		return r.persistFailed(op, fmt.Errorf("failed to encode snapshot: %w", err))
	}

	if err := r.kv.Set(ctx, r.storageKey, data); err != nil {
		return r.persistFailed(op, err)
	}
	return nil
}

func (r *Registry) persistFailed(op string, err error) error {
	r.metrics.PersistenceFailed()
	r.logger.Warn("failed to persist registry", "op", op, "error", err)
	return r.fail(op, &domain.PersistenceError{Op: op, Err: err})
}

// fail records err against op and returns it unchanged
func (r *Registry) fail(op string, err error) error {
	kind := domain.KindOf(err)
	r.metrics.OperationFailed(op, kind)
	if kind != "persistence" {
		r.logger.Debug("registry operation failed", "op", op, "kind", kind, "error", err)
	}
	return err
}

// validateURL accepts absolute http and https URLs with a host
func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: URL is required", domain.ErrInvalidURL)
	}

	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: only HTTP and HTTPS are supported", domain.ErrInvalidURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidURL)
	}
	return nil
}

// Ensure Registry implements LinkRegistry
var _ LinkRegistry = (*Registry)(nil)
