package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/linkregistry/internal/domain"
)

// LinkRegistry is a mock implementation of registry.LinkRegistry
type LinkRegistry struct {
	mock.Mock
}

func (m *LinkRegistry) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *LinkRegistry) Create(ctx context.Context, req domain.CreateLinkRequest) (*domain.ShortLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShortLink), args.Error(1)
}

func (m *LinkRegistry) Resolve(ctx context.Context, shortCode string) (*domain.ShortLink, error) {
	args := m.Called(ctx, shortCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShortLink), args.Error(1)
}

func (m *LinkRegistry) Access(ctx context.Context, shortCode, source string) (string, error) {
	args := m.Called(ctx, shortCode, source)
	return args.String(0), args.Error(1)
}

func (m *LinkRegistry) List(ctx context.Context) []*domain.ShortLink {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*domain.ShortLink)
}

func (m *LinkRegistry) RefreshExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *LinkRegistry) PurgeExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *LinkRegistry) Delete(ctx context.Context, shortCode string) error {
	args := m.Called(ctx, shortCode)
	return args.Error(0)
}

func (m *LinkRegistry) Clear(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *LinkRegistry) StartMaintenance(ctx context.Context, interval time.Duration, autoPurge bool) error {
	args := m.Called(ctx, interval, autoPurge)
	return args.Error(0)
}

func (m *LinkRegistry) StopMaintenance() error {
	args := m.Called()
	return args.Error(0)
}

func (m *LinkRegistry) Close() error {
	args := m.Called()
	return args.Error(0)
}
