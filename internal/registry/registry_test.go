package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/linkregistry/internal/domain"
	"github.com/joshdurbin/linkregistry/internal/metrics"
	"github.com/joshdurbin/linkregistry/internal/shortener"
	"github.com/joshdurbin/linkregistry/internal/store"
	"github.com/joshdurbin/linkregistry/internal/store/memory"
	"github.com/joshdurbin/linkregistry/internal/store/mocks"
)

func setupRegistry(t *testing.T, opts ...Option) (*Registry, *memory.Store, *fakeClock) {
	t.Helper()

	kv := memory.New()
	clock := newFakeClock()

	base := []Option{
		WithClock(clock.Now),
		WithIDFunc(sequentialIDs()),
		WithEnvironment(staticEnvironment{location: "Europe/Paris", agent: "test-agent/1.0"}),
	}
	r := New(kv, &testGenerator{}, append(base, opts...)...)
	t.Cleanup(func() { r.Close() })

	return r, kv, clock
}

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setup     func(*Registry)
		req       domain.CreateLinkRequest
		wantErr   error
		wantCode  string
		wantValid int
	}{
		{
			name:      "default validity and generated code",
			req:       domain.CreateLinkRequest{OriginalURL: "https://example.com/x"},
			wantCode:  "test0001",
			wantValid: domain.DefaultValidityMinutes,
		},
		{
			name:      "explicit validity",
			req:       domain.CreateLinkRequest{OriginalURL: "http://example.com", ValidityMinutes: intPtr(90)},
			wantCode:  "test0001",
			wantValid: 90,
		},
		{
			name:      "custom short code",
			req:       domain.CreateLinkRequest{OriginalURL: "https://example.com", CustomShortCode: "MyLink42"},
			wantCode:  "MyLink42",
			wantValid: domain.DefaultValidityMinutes,
		},
		{
			name:      "surrounding whitespace on URL is trimmed",
			req:       domain.CreateLinkRequest{OriginalURL: "  https://example.com  ", CustomShortCode: "abc"},
			wantCode:  "abc",
			wantValid: domain.DefaultValidityMinutes,
		},
		{
			name:    "custom short code with surrounding whitespace",
			req:     domain.CreateLinkRequest{OriginalURL: "https://example.com", CustomShortCode: "  abc  "},
			wantErr: domain.ErrInvalidShortCode,
		},
		{
			name:    "whitespace-only custom short code",
			req:     domain.CreateLinkRequest{OriginalURL: "https://example.com", CustomShortCode: "   "},
			wantErr: domain.ErrInvalidShortCode,
		},
		{
			name:    "ftp scheme",
			req:     domain.CreateLinkRequest{OriginalURL: "ftp://bad"},
			wantErr: domain.ErrInvalidURL,
		},
		{
			name:    "empty URL",
			req:     domain.CreateLinkRequest{},
			wantErr: domain.ErrInvalidURL,
		},
		{
			name:    "relative URL",
			req:     domain.CreateLinkRequest{OriginalURL: "not-a-url"},
			wantErr: domain.ErrInvalidURL,
		},
		{
			name:    "missing host",
			req:     domain.CreateLinkRequest{OriginalURL: "https://"},
			wantErr: domain.ErrInvalidURL,
		},
		{
			name:    "zero validity",
			req:     domain.CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: intPtr(0)},
			wantErr: domain.ErrInvalidValidity,
		},
		{
			name:    "negative validity",
			req:     domain.CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: intPtr(-5)},
			wantErr: domain.ErrInvalidValidity,
		},
		{
			name:    "custom code too short",
			req:     domain.CreateLinkRequest{OriginalURL: "https://example.com", CustomShortCode: "ab"},
			wantErr: domain.ErrInvalidShortCode,
		},
		{
			name:    "custom code too long",
			req:     domain.CreateLinkRequest{OriginalURL: "https://example.com", CustomShortCode: strings.Repeat("a", 21)},
			wantErr: domain.ErrInvalidShortCode,
		},
		{
			name:    "custom code with symbols",
			req:     domain.CreateLinkRequest{OriginalURL: "https://example.com", CustomShortCode: "bad-code"},
			wantErr: domain.ErrInvalidShortCode,
		},
		{
			name: "duplicate custom code",
			setup: func(r *Registry) {
				_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://first.example.com", CustomShortCode: "taken"})
				require.NoError(t, err)
			},
			req:     domain.CreateLinkRequest{OriginalURL: "https://second.example.com", CustomShortCode: "taken"},
			wantErr: domain.ErrDuplicateShortCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, clock := setupRegistry(t)
			if tt.setup != nil {
				tt.setup(r)
			}
			before := len(r.List(ctx))

			link, err := r.Create(ctx, tt.req)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, link)
				assert.Len(t, r.List(ctx), before)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, link)
			assert.Equal(t, tt.wantCode, link.ShortCode)
			assert.Equal(t, strings.TrimSpace(tt.req.OriginalURL), link.OriginalURL)
			assert.Equal(t, tt.wantValid, link.ValidityMinutes)
			assert.Equal(t, clock.Now(), link.CreatedAt)
			assert.Equal(t, clock.Now().Add(time.Duration(tt.wantValid)*time.Minute), link.ExpiresAt)
			assert.False(t, link.IsExpired)
			assert.NotNil(t, link.Clicks)
			assert.Empty(t, link.Clicks)
			assert.NotEmpty(t, link.ID)
		})
	}
}

func TestRegistry_Create_GeneratorSkipsExistingCodes(t *testing.T) {
	r, _, _ := setupRegistry(t)
	ctx := context.Background()

	// Claim the code the generator would produce next
	_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://a.example.com", CustomShortCode: "test0001"})
	require.NoError(t, err)

	link, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://b.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "test0002", link.ShortCode)
}

func TestRegistry_Create_DefaultIDsAreUUIDs(t *testing.T) {
	r := New(memory.New(), shortener.NewRandomGenerator())
	ctx := context.Background()

	first, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	second, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	assert.Len(t, first.ID, 36)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, first.ShortCode, shortener.CodeLength)
}

func TestRegistry_Create_GeneratorError(t *testing.T) {
	r := New(memory.New(), shortener.NewCounterGenerator(failingCounter{}))

	link, err := r.Create(context.Background(), domain.CreateLinkRequest{OriginalURL: "https://example.com"})

	require.Error(t, err)
	assert.Nil(t, link)
	assert.Contains(t, err.Error(), "failed to generate short code")
	assert.Empty(t, r.List(context.Background()))
}

type failingCounter struct{}

func (failingCounter) NextCounter(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("counter unavailable")
}

func TestRegistry_CreateThenResolve(t *testing.T) {
	r, _, _ := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com/x", ValidityMinutes: intPtr(30)})
	require.NoError(t, err)

	resolved, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.False(t, resolved.IsExpired)
	assert.Equal(t, created, resolved)
}

func TestRegistry_ExpiryFlipsAndBlocksAccess(t *testing.T) {
	r, _, clock := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: intPtr(1)})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	resolved, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.True(t, resolved.IsExpired)

	url, err := r.Access(ctx, created.ShortCode, "direct_link")
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.Empty(t, url)

	after, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Empty(t, after.Clicks)
}

func TestRegistry_Resolve_ExpiresExactlyAtExpiry(t *testing.T) {
	r, _, clock := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: intPtr(5)})
	require.NoError(t, err)

	clock.Advance(5*time.Minute - time.Nanosecond)
	link, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.False(t, link.IsExpired)

	clock.Advance(time.Nanosecond)
	link, err = r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.True(t, link.IsExpired)
}

func TestRegistry_Resolve_NotFound(t *testing.T) {
	r, _, _ := setupRegistry(t)

	link, err := r.Resolve(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, link)
}

func TestRegistry_ExpiryIsMonotonic(t *testing.T) {
	current := newFakeClock().Now()
	r := New(memory.New(), &testGenerator{}, WithClock(func() time.Time { return current }))
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: intPtr(1)})
	require.NoError(t, err)

	current = current.Add(time.Hour)
	_, err = r.RefreshExpired(ctx)
	require.NoError(t, err)

	// Wind the clock back before expiry; the flag stays set
	current = current.Add(-2 * time.Hour)
	link, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.True(t, link.IsExpired)

	n, err := r.RefreshExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, r.List(ctx)[0].IsExpired)
}

func TestRegistry_Access(t *testing.T) {
	r, kv, clock := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com/target"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	url, err := r.Access(ctx, created.ShortCode, "results_page")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/target", url)

	clock.Advance(time.Minute)
	clientCtx := WithClient(ctx, ClientInfo{Location: "America/Chicago", UserAgent: "curl/8.0"})
	_, err = r.Access(clientCtx, created.ShortCode, "")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	partialCtx := WithClient(ctx, ClientInfo{UserAgent: "Mozilla/5.0"})
	_, err = r.Access(partialCtx, created.ShortCode, "qr")
	require.NoError(t, err)

	link, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	require.Len(t, link.Clicks, 3)

	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.ClickEvent{
		Timestamp:   base.Add(time.Minute),
		Source:      "results_page",
		Location:    "Europe/Paris",
		AgentString: "test-agent/1.0",
	}, link.Clicks[0])
	assert.Equal(t, domain.ClickEvent{
		Timestamp:   base.Add(2 * time.Minute),
		Source:      domain.SourceDirect,
		Location:    "America/Chicago",
		AgentString: "curl/8.0",
	}, link.Clicks[1])
	assert.Equal(t, "Europe/Paris", link.Clicks[2].Location)
	assert.Equal(t, "Mozilla/5.0", link.Clicks[2].AgentString)

	// Every click is persisted
	data, err := kv.Get(ctx, store.DefaultKey)
	require.NoError(t, err)
	var snapshot domain.Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	require.Len(t, snapshot.Links, 1)
	assert.Len(t, snapshot.Links[0].Link.Clicks, 3)
}

func TestRegistry_Access_FailuresLeaveClicksUnchanged(t *testing.T) {
	r, _, clock := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: intPtr(1)})
	require.NoError(t, err)

	_, err = r.Access(ctx, "missing", "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Access(ctx, created.ShortCode, "a")
	require.NoError(t, err)

	clock.Advance(time.Minute)

	// Access on a link that is due performs the flip itself
	_, err = r.Access(ctx, created.ShortCode, "a")
	assert.ErrorIs(t, err, domain.ErrExpired)

	link, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.True(t, link.IsExpired)
	assert.Len(t, link.Clicks, 1)
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r, _, _ := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	created.OriginalURL = "https://evil.example.com"
	created.Clicks = append(created.Clicks, domain.ClickEvent{Source: "forged"})

	listed := r.List(ctx)
	listed[0].IsExpired = true

	link, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.OriginalURL)
	assert.Empty(t, link.Clicks)
	assert.False(t, link.IsExpired)
}

func TestRegistry_List(t *testing.T) {
	r, _, clock := setupRegistry(t)
	ctx := context.Background()

	assert.Empty(t, r.List(ctx))

	for _, code := range []string{"first", "second", "third"} {
		_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com/" + code, CustomShortCode: code, ValidityMinutes: intPtr(1)})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	clock.Advance(time.Hour)
	links := r.List(ctx)

	require.Len(t, links, 3)
	assert.Equal(t, "third", links[0].ShortCode)
	assert.Equal(t, "second", links[1].ShortCode)
	assert.Equal(t, "first", links[2].ShortCode)

	// Listing does not flip expiry flags
	for _, link := range links {
		assert.False(t, link.IsExpired)
	}
}

func TestRegistry_RefreshExpired(t *testing.T) {
	r, kv, clock := setupRegistry(t)
	ctx := context.Background()

	_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://a.example.com", CustomShortCode: "short", ValidityMinutes: intPtr(1)})
	require.NoError(t, err)
	_, err = r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://b.example.com", CustomShortCode: "long", ValidityMinutes: intPtr(60)})
	require.NoError(t, err)

	n, err := r.RefreshExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(10 * time.Minute)
	n, err = r.RefreshExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reloaded := New(kv, &testGenerator{}, WithClock(clock.Now))
	require.NoError(t, reloaded.Load(ctx))
	byCode := map[string]bool{}
	for _, link := range reloaded.List(ctx) {
		byCode[link.ShortCode] = link.IsExpired
	}
	assert.Equal(t, map[string]bool{"short": true, "long": false}, byCode)
}

func TestRegistry_PurgeExpired(t *testing.T) {
	r, _, clock := setupRegistry(t)
	ctx := context.Background()

	_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://a.example.com", CustomShortCode: "flipped", ValidityMinutes: intPtr(1)})
	require.NoError(t, err)
	_, err = r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://b.example.com", CustomShortCode: "unflipped", ValidityMinutes: intPtr(1)})
	require.NoError(t, err)
	_, err = r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://c.example.com", CustomShortCode: "boundary", ValidityMinutes: intPtr(2)})
	require.NoError(t, err)
	_, err = r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://d.example.com", CustomShortCode: "alive", ValidityMinutes: intPtr(30)})
	require.NoError(t, err)

	n, err := r.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Minute)
	_, err = r.Resolve(ctx, "flipped")
	require.NoError(t, err)

	// "unflipped" never had its flag observed; purge uses the timestamp.
	// "boundary" expires exactly now and is not strictly before it.
	n, err = r.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var codes []string
	for _, link := range r.List(ctx) {
		codes = append(codes, link.ShortCode)
	}
	assert.ElementsMatch(t, []string{"boundary", "alive"}, codes)

	// Purged codes become available again
	_, err = r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://e.example.com", CustomShortCode: "unflipped"})
	assert.NoError(t, err)
}

func TestRegistry_Delete(t *testing.T) {
	r, _, _ := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, created.ShortCode))
	_, err = r.Resolve(ctx, created.ShortCode)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, r.Delete(ctx, created.ShortCode), domain.ErrNotFound)
}

func TestRegistry_Clear(t *testing.T) {
	r, kv, _ := setupRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
		require.NoError(t, err)
	}

	n, err := r.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, r.List(ctx))

	_, err = kv.Get(ctx, store.DefaultKey)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestRegistry_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip reproduces the map", func(t *testing.T) {
		r, kv, clock := setupRegistry(t)

		a, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://a.example.com"})
		require.NoError(t, err)
		_, err = r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://b.example.com", CustomShortCode: "custom", ValidityMinutes: intPtr(1)})
		require.NoError(t, err)
		for _, source := range []string{"x", "y", "z"} {
			clock.Advance(time.Second)
			_, err = r.Access(ctx, a.ShortCode, source)
			require.NoError(t, err)
		}
		clock.Advance(time.Hour)
		_, err = r.RefreshExpired(ctx)
		require.NoError(t, err)

		reloaded := New(kv, &testGenerator{}, WithClock(clock.Now))
		require.NoError(t, reloaded.Load(ctx))

		assert.Equal(t, r.List(ctx), reloaded.List(ctx))

		link, err := reloaded.Resolve(ctx, a.ShortCode)
		require.NoError(t, err)
		require.Len(t, link.Clicks, 3)
		assert.Equal(t, "x", link.Clicks[0].Source)
		assert.Equal(t, "z", link.Clicks[2].Source)
	})

	t.Run("missing snapshot starts empty", func(t *testing.T) {
		r, _, _ := setupRegistry(t)
		require.NoError(t, r.Load(ctx))
		assert.Empty(t, r.List(ctx))
	})

	t.Run("persisted layout is an array of pairs", func(t *testing.T) {
		r, kv, _ := setupRegistry(t)
		_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com", CustomShortCode: "pair"})
		require.NoError(t, err)

		data, err := kv.Get(ctx, store.DefaultKey)
		require.NoError(t, err)

		var raw struct {
			Links       [][]json.RawMessage `json:"links"`
			LastUpdated time.Time           `json:"lastUpdated"`
		}
		require.NoError(t, json.Unmarshal(data, &raw))
		require.Len(t, raw.Links, 1)
		require.Len(t, raw.Links[0], 2)
		assert.JSONEq(t, `"pair"`, string(raw.Links[0][0]))
		assert.Contains(t, string(raw.Links[0][1]), `"shortCode":"pair"`)
		assert.False(t, raw.LastUpdated.IsZero())
	})

	t.Run("custom storage key", func(t *testing.T) {
		r, kv, _ := setupRegistry(t, WithStorageKey("other_key"))
		_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
		require.NoError(t, err)

		_, err = kv.Get(ctx, "other_key")
		assert.NoError(t, err)
		_, err = kv.Get(ctx, store.DefaultKey)
		assert.ErrorIs(t, err, store.ErrKeyNotFound)
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		kv := memory.New()
		require.NoError(t, kv.Set(ctx, store.DefaultKey, []byte(`{"links":[["only-one-element"]]}`)))

		r := New(kv, &testGenerator{})
		err := r.Load(ctx)
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.Contains(t, err.Error(), "failed to decode snapshot")
	})

	t.Run("store read failure", func(t *testing.T) {
		kv := &mocks.KeyValueStore{}
		kv.On("Get", ctx, store.DefaultKey).Return(nil, errors.New("connection refused"))

		r := New(kv, &testGenerator{})
		err := r.Load(ctx)

		var perr *domain.PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "load", perr.Op)
		kv.AssertExpectations(t)
	})
}

func TestRegistry_PersistenceFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	kv := &mocks.KeyValueStore{}
	kv.On("Set", ctx, store.DefaultKey, mock.AnythingOfType("[]uint8")).Return(errors.New("disk full"))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clock := newFakeClock()
	r := New(kv, &testGenerator{}, WithClock(clock.Now), WithMetrics(m))

	link, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	require.NotNil(t, link)

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "create", perr.Op)
	assert.EqualError(t, perr.Err, "disk full")

	// The in-memory map stays authoritative
	url, err := r.Access(ctx, link.ShortCode, "a")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, "https://example.com", url)

	resolved, err := r.Resolve(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Len(t, resolved.Clicks, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PersistenceFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinksHeld))
	kv.AssertExpectations(t)
}

func TestRegistry_RetryingStoreRecovers(t *testing.T) {
	ctx := context.Background()
	kv := &mocks.KeyValueStore{}
	kv.On("Set", ctx, store.DefaultKey, mock.Anything).Return(errors.New("busy")).Once()
	kv.On("Set", ctx, store.DefaultKey, mock.Anything).Return(nil).Once()

	r := New(store.WithRetry(kv, 3), &testGenerator{})

	_, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
	assert.NoError(t, err)
	kv.AssertExpectations(t)
}

func TestRegistry_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r, _, clock := setupRegistry(t, WithMetrics(m))
	ctx := context.Background()

	a, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com", ValidityMinutes: intPtr(1)})
	require.NoError(t, err)
	_, err = r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "ftp://bad"})
	require.Error(t, err)
	_, err = r.Access(ctx, a.ShortCode, "a")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = r.Access(ctx, a.ShortCode, "a")
	require.Error(t, err)
	_, err = r.PurgeExpired(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClicksRecorded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinksExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinksPurged))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LinksHeld))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("create", "invalid_url")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("access", "expired")))
}

func TestRegistry_UniqueCodes(t *testing.T) {
	r := New(memory.New(), shortener.NewRandomGenerator())
	ctx := context.Background()

	const total = 500
	seen := make(map[string]bool, total)
	for i := 0; i < total; i++ {
		link, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
		require.NoError(t, err)
		assert.False(t, seen[link.ShortCode], "duplicate short code %s", link.ShortCode)
		seen[link.ShortCode] = true
	}
	assert.Len(t, r.List(ctx), total)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r, _, _ := setupRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	const numGoroutines = 10
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if _, err := r.Access(ctx, created.ShortCode, "concurrent"); err != nil {
					t.Errorf("access failed: %v", err)
					return
				}
			}
		}()
	}

	// Concurrent creates must never collide
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"}); err != nil {
				t.Errorf("create failed: %v", err)
			}
		}()
	}
	wg.Wait()

	link, err := r.Resolve(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Len(t, link.Clicks, numGoroutines*perGoroutine)
	assert.Len(t, r.List(ctx), numGoroutines+1)
}

func TestProcessEnvironment(t *testing.T) {
	t.Setenv("TZ", "Asia/Tokyo")

	env := ProcessEnvironment{}
	assert.Equal(t, "Asia/Tokyo", env.Location())
	assert.Contains(t, env.UserAgent(), "(")
}

func TestProcessEnvironment_NoTZ(t *testing.T) {
	t.Setenv("TZ", "")

	t.Run("zone from localtime link", func(t *testing.T) {
		link := filepath.Join(t.TempDir(), "localtime")
		require.NoError(t, os.Symlink("/usr/share/zoneinfo/Europe/Paris", link))
		setLocaltimePath(t, link)

		assert.Equal(t, "Europe/Paris", ProcessEnvironment{}.Location())
	})

	t.Run("abbreviation without a link", func(t *testing.T) {
		setLocaltimePath(t, filepath.Join(t.TempDir(), "missing"))

		location := ProcessEnvironment{}.Location()
		assert.NotEmpty(t, location)
		assert.NotEqual(t, "Local", location)
		if abbr, _ := time.Now().Zone(); abbr != "" && time.Local.String() == "Local" {
			assert.Equal(t, abbr, location)
		}
	})

	t.Run("clicks record the resolved zone", func(t *testing.T) {
		link := filepath.Join(t.TempDir(), "localtime")
		require.NoError(t, os.Symlink("../usr/share/zoneinfo/Etc/UTC", link))
		setLocaltimePath(t, link)

		r := New(memory.New(), &testGenerator{}, WithEnvironment(ProcessEnvironment{}))
		t.Cleanup(func() { r.Close() })
		ctx := context.Background()

		created, err := r.Create(ctx, domain.CreateLinkRequest{OriginalURL: "https://example.com"})
		require.NoError(t, err)
		_, err = r.Access(ctx, created.ShortCode, "results_page")
		require.NoError(t, err)

		resolved, err := r.Resolve(ctx, created.ShortCode)
		require.NoError(t, err)
		require.Len(t, resolved.Clicks, 1)
		assert.Equal(t, "Etc/UTC", resolved.Clicks[0].Location)
	})
}

func TestZoneFromLink(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "absolute zoneinfo path", target: "/usr/share/zoneinfo/America/New_York", want: "America/New_York"},
		{name: "relative zoneinfo path", target: "../usr/share/zoneinfo/Etc/UTC", want: "Etc/UTC"},
		{name: "not a zoneinfo path", target: "/tmp/somewhere", want: ""},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := filepath.Join(dir, fmt.Sprintf("link%d", i))
			require.NoError(t, os.Symlink(tt.target, link))
			assert.Equal(t, tt.want, zoneFromLink(link))
		})
	}

	assert.Empty(t, zoneFromLink(filepath.Join(dir, "missing")))
}

func setLocaltimePath(t *testing.T, path string) {
	t.Helper()
	prev := localtimePath
	localtimePath = path
	t.Cleanup(func() { localtimePath = prev })
}

func TestClientFromContext(t *testing.T) {
	_, ok := ClientFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClient(context.Background(), ClientInfo{Location: "x"})
	info, ok := ClientFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "x", info.Location)
}
