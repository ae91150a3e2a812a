package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/models"
	"github.com/SergeiKhy/linkregistry/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing.
// The map is guarded by a single mutex, so Create enforces code uniqueness
// and IncrementClick never loses updates, the same as the real table.
type MockLinkRepository struct {
	mu     sync.Mutex
	links  map[string]*models.Link
	nextID int64

	// ForceConflict makes every Create report a uniqueness violation.
	ForceConflict bool
	// FindErr, CreateErr, DeleteErr, ListErr are returned instead of running the operation.
	FindErr   error
	CreateErr error
	DeleteErr error
	ListErr   error
	// IncrementErr is returned by the next IncrementFailures calls.
	IncrementErr      error
	IncrementFailures int
	// BeforeCreate runs outside the lock before each insert.
	BeforeCreate func(code string)

	FindCalls      int
	CreateCalls    int
	IncrementCalls int
	DeleteCalls    int
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindCalls++
	if m.FindErr != nil {
		return nil, m.FindErr
	}

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	clone := *link
	return &clone, nil
}

func (m *MockLinkRepository) Create(ctx context.Context, code, url string) (*models.Link, error) {
	m.mu.Lock()
	hook := m.BeforeCreate
	m.mu.Unlock()

	if hook != nil {
		hook(code)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.ForceConflict {
		return nil, repository.ErrCodeExists
	}
	if _, exists := m.links[code]; exists {
		return nil, repository.ErrCodeExists
	}

	// Монотонные метки, чтобы порядок List был детерминированным
	now := time.Now().UTC().Add(time.Duration(m.nextID) * time.Microsecond)
	link := &models.Link{
		ID:        fmt.Sprintf("00000000-0000-0000-0000-%012d", m.nextID),
		Code:      code,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.nextID++
	m.links[code] = link

	clone := *link
	return &clone, nil
}

func (m *MockLinkRepository) IncrementClick(ctx context.Context, code string, at time.Time) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IncrementCalls++
	if m.IncrementFailures > 0 {
		m.IncrementFailures--
		return nil, m.IncrementErr
	}

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}

	link.TotalClicks++
	if link.LastClickedAt == nil || at.After(*link.LastClickedAt) {
		clickedAt := at
		link.LastClickedAt = &clickedAt
	}
	if at.After(link.UpdatedAt) {
		link.UpdatedAt = at
	}

	clone := *link
	return &clone, nil
}

func (m *MockLinkRepository) DeleteByCode(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	if _, exists := m.links[code]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, code)
	return nil
}

func (m *MockLinkRepository) List(ctx context.Context) ([]models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	links := make([]models.Link, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, *link)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

// Counts returns a consistent snapshot of the call counters.
func (m *MockLinkRepository) Counts() (find, create, increment, del int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FindCalls, m.CreateCalls, m.IncrementCalls, m.DeleteCalls
}

// Insert seeds a link directly, bypassing the hooks.
func (m *MockLinkRepository) Insert(link models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := link
	m.links[link.Code] = &clone
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.nextID = 1
	m.FindCalls, m.CreateCalls, m.IncrementCalls, m.DeleteCalls = 0, 0, 0, 0
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link

	GetErr error
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	link, exists := m.cache[key]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	clone := *link
	return &clone, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *link
	m.cache[key] = &clone
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}
