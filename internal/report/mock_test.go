package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/newhook/pipereport/internal/logparser"
	"github.com/stretchr/testify/mock"
)

// MockLogSource implements LogSource for testing.
type MockLogSource struct {
	ConsoleTextFunc func(ctx context.Context, ref RunRef) (string, bool, error)

	mu    sync.Mutex
	calls []RunRef
}

func (m *MockLogSource) ConsoleText(ctx context.Context, ref RunRef) (string, bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ref)
	m.mu.Unlock()
	if m.ConsoleTextFunc != nil {
		return m.ConsoleTextFunc(ctx, ref)
	}
	return "", false, errors.New("ConsoleText not implemented")
}

func (m *MockLogSource) Calls() []RunRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunRef(nil), m.calls...)
}

// MockRunStore implements RunStore for testing.
type MockRunStore struct {
	ExcerptsFunc     func(ctx context.Context, ref RunRef) (logparser.Excerpts, bool, error)
	SaveExcerptsFunc func(ctx context.Context, ref RunRef, result *logparser.Result) error
}

func (m *MockRunStore) Excerpts(ctx context.Context, ref RunRef) (logparser.Excerpts, bool, error) {
	if m.ExcerptsFunc != nil {
		return m.ExcerptsFunc(ctx, ref)
	}
	return nil, false, nil
}

func (m *MockRunStore) SaveExcerpts(ctx context.Context, ref RunRef, result *logparser.Result) error {
	if m.SaveExcerptsFunc != nil {
		return m.SaveExcerptsFunc(ctx, ref, result)
	}
	return errors.New("SaveExcerpts not implemented")
}

// MockCacheManager is a mock implementation of cachemanager.CacheManager for testing
type MockCacheManager[K comparable, V any] struct {
	mock.Mock
}

func (m *MockCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	args := m.Called(ctx, key)
	return args.Get(0).(V), args.Bool(1)
}

func (m *MockCacheManager[K, V]) GetMultiple(ctx context.Context, keys []K) (map[K]V, bool) {
	args := m.Called(ctx, keys)
	return args.Get(0).(map[K]V), args.Bool(1)
}

func (m *MockCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	args := m.Called(ctx, key, ttl)
	return args.Get(0).(V), args.Bool(1)
}

func (m *MockCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *MockCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCacheManager[K, V]) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
