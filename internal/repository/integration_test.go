package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/config"
	"github.com/SergeiKhy/linkregistry/internal/models"
	"github.com/SergeiKhy/linkregistry/internal/repository"
	"github.com/SergeiKhy/linkregistry/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupPostgres поднимает PostgreSQL в контейнере и применяет схему
func setupPostgres(t *testing.T) *repository.PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("links"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     host,
		Port:     port.Port(),
		User:     "user",
		Password: "password",
		Name:     "links",
		MaxConns: 50,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	// Повторное применение схемы безопасно
	require.NoError(t, db.EnsureSchema(ctx))

	return db
}

// setupRedis поднимает Redis в контейнере
func setupRedis(t *testing.T) *repository.RedisDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}
	ctx := context.Background()

	container, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := repository.NewRedisClient(config.RedisConfig{Host: host, Port: port.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

// TestIntegration_LinkRepository проверяет хранилище на реальной PostgreSQL
func TestIntegration_LinkRepository(t *testing.T) {
	db := setupPostgres(t)
	repo := repository.NewLinkRepository(db)
	ctx := context.Background()

	t.Run("создание и поиск", func(t *testing.T) {
		created, err := repo.Create(ctx, "abc1234", "https://example.com/a")
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Zero(t, created.TotalClicks)
		assert.Nil(t, created.LastClickedAt)
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		found, err := repo.FindByCode(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "https://example.com/a", found.URL)
	})

	t.Run("дубликат кода", func(t *testing.T) {
		_, err := repo.Create(ctx, "dup0001", "https://example.com/1")
		require.NoError(t, err)

		_, err = repo.Create(ctx, "dup0001", "https://example.com/2")
		assert.ErrorIs(t, err, repository.ErrCodeExists)
		assert.NotErrorIs(t, err, repository.ErrUnavailable)
	})

	t.Run("код чувствителен к регистру", func(t *testing.T) {
		_, err := repo.Create(ctx, "CaSe001", "https://example.com/upper")
		require.NoError(t, err)
		_, err = repo.Create(ctx, "case001", "https://example.com/lower")
		require.NoError(t, err)
	})

	t.Run("отсутствующая ссылка", func(t *testing.T) {
		_, err := repo.FindByCode(ctx, "nothere")
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)

		_, err = repo.IncrementClick(ctx, "nothere", time.Now())
		assert.ErrorIs(t, err, repository.ErrLinkNotFound)

		assert.ErrorIs(t, repo.DeleteByCode(ctx, "nothere"), repository.ErrLinkNotFound)
	})

	t.Run("конкурентные инкременты", func(t *testing.T) {
		_, err := repo.Create(ctx, "hot0001", "https://example.com/hot")
		require.NoError(t, err)

		base := time.Now().UTC().Truncate(time.Microsecond)
		const clicks = 100
		var wg sync.WaitGroup
		for i := 0; i < clicks; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.IncrementClick(ctx, "hot0001", base.Add(time.Duration(i)*time.Millisecond))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		link, err := repo.FindByCode(ctx, "hot0001")
		require.NoError(t, err)
		assert.Equal(t, int64(clicks), link.TotalClicks)
		require.NotNil(t, link.LastClickedAt)
		// Самый поздний клик побеждает независимо от порядка применения
		assert.True(t, link.LastClickedAt.Equal(base.Add((clicks-1)*time.Millisecond)))
		assert.False(t, link.UpdatedAt.Before(*link.LastClickedAt))
	})

	t.Run("клик из прошлого не откатывает метки", func(t *testing.T) {
		_, err := repo.Create(ctx, "late001", "https://example.com/late")
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)
		_, err = repo.IncrementClick(ctx, "late001", now)
		require.NoError(t, err)
		link, err := repo.IncrementClick(ctx, "late001", now.Add(-time.Hour))
		require.NoError(t, err)

		assert.Equal(t, int64(2), link.TotalClicks)
		assert.True(t, link.LastClickedAt.Equal(now))
	})

	t.Run("удаление", func(t *testing.T) {
		_, err := repo.Create(ctx, "del0001", "https://example.com/del")
		require.NoError(t, err)

		require.NoError(t, repo.DeleteByCode(ctx, "del0001"))
		assert.ErrorIs(t, repo.DeleteByCode(ctx, "del0001"), repository.ErrLinkNotFound)

		// Код после удаления можно занять снова
		_, err = repo.Create(ctx, "del0001", "https://example.com/again")
		require.NoError(t, err)
	})

	t.Run("список новые первыми", func(t *testing.T) {
		links, err := repo.List(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, links)
		for i := 1; i < len(links); i++ {
			assert.False(t, links[i].CreatedAt.After(links[i-1].CreatedAt))
		}
	})

	t.Run("отменённый контекст", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := repo.FindByCode(cancelled, "abc1234")
		assert.ErrorIs(t, err, repository.ErrUnavailable)
	})
}

// TestIntegration_RegistryConcurrency гонка за один код на реальном уникальном индексе
func TestIntegration_RegistryConcurrency(t *testing.T) {
	db := setupPostgres(t)
	linkRepo := repository.NewLinkRepository(db)

	clicks := service.NewClickProcessor(linkRepo, zap.NewNop(), service.ClickProcessorConfig{Workers: 4})
	clicks.Start()
	t.Cleanup(clicks.Stop)

	generator, err := service.NewCodeGenerator()
	require.NoError(t, err)
	registry := service.NewLinkRegistry(linkRepo, nil, generator, clicks, zap.NewNop(), service.RegistryConfig{})
	ctx := context.Background()

	code := "race001"
	const writers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.CreateLink(ctx, &models.CreateLinkInput{URL: "https://example.com/race", Code: &code})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, service.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)

	const redirects = 50
	for i := 0; i < redirects; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := registry.ResolveAndRecordClick(ctx, code)
			assert.NoError(t, err)
			assert.Equal(t, "https://example.com/race", url)
		}()
	}
	wg.Wait()
	clicks.Stop()

	link, err := registry.GetLink(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, int64(redirects), link.TotalClicks)
}

// TestIntegration_CacheRepository проверяет кэш ссылок на реальном Redis
func TestIntegration_CacheRepository(t *testing.T) {
	client := setupRedis(t)
	cache := repository.NewCacheRepository(client)
	ctx := context.Background()

	_, err := cache.Get(ctx, "cached1")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	link := &models.Link{
		ID:        "00000000-0000-0000-0000-000000000001",
		Code:      "cached1",
		URL:       "https://example.com/cached",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, cache.Set(ctx, link.Code, link, time.Minute))

	got, err := cache.Get(ctx, "cached1")
	require.NoError(t, err)
	assert.Equal(t, link.URL, got.URL)
	assert.True(t, link.CreatedAt.Equal(got.CreatedAt))

	ttl, err := client.Client.TTL(ctx, "link:cached1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.Delete(ctx, "cached1"))
	_, err = cache.Get(ctx, "cached1")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	// Удаление отсутствующего ключа не ошибка
	require.NoError(t, cache.Delete(ctx, "cached1"))
}
