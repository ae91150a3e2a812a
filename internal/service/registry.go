package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/metrics"
	"github.com/SergeiKhy/linkregistry/internal/models"
	"github.com/SergeiKhy/linkregistry/internal/repository"
	"github.com/SergeiKhy/linkregistry/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Константы реестра
const (
	MaxCodeAttempts     = 10
	defaultCacheTTL     = 24 * time.Hour
	defaultStoreTimeout = 5 * time.Second
)

// LinkRegistry интерфейс реестра ссылок
type LinkRegistry interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	ResolveAndRecordClick(ctx context.Context, code string) (string, error)
	GetLink(ctx context.Context, code string) (*models.Link, error)
	DeleteLink(ctx context.Context, code string) error
	ListLinks(ctx context.Context) ([]models.Link, error)
}

type RegistryConfig struct {
	// CacheTTL время жизни записи о ссылке в кэше редиректов
	CacheTTL time.Duration
	// StoreTimeout ограничивает мутации, отвязанные от отмены запроса
	StoreTimeout time.Duration
	// MaxCodeAttempts число попыток генерации кода (по умолчанию 10)
	MaxCodeAttempts int
	Now             func() time.Time
}

// linkRegistry реализация реестра ссылок.
// Общего изменяемого состояния между запросами нет, запросы синхронизирует
// только хранилище (уникальный индекс и атомарные UPDATE).
type linkRegistry struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	generator CodeGenerator
	clicks    ClickProcessor
	logger    *zap.Logger
	config    RegistryConfig
	lookups   singleflight.Group
}

// NewLinkRegistry создаёт новый экземпляр реестра
func NewLinkRegistry(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	generator CodeGenerator,
	clicks ClickProcessor,
	logger *zap.Logger,
	config RegistryConfig,
) LinkRegistry {
	if cacheRepo == nil {
		cacheRepo = repository.NewNoopCacheRepository()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaultStoreTimeout
	}
	if config.MaxCodeAttempts <= 0 {
		config.MaxCodeAttempts = MaxCodeAttempts
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &linkRegistry{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		generator: generator,
		clicks:    clicks,
		logger:    logger,
		config:    config,
	}
}

// CreateLink создаёт новую короткую ссылку с кодом пользователя или сгенерированным
func (r *linkRegistry) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	if input == nil {
		input = &models.CreateLinkInput{}
	}

	// Валидация до любого обращения к хранилищу
	url, err := validation.ValidateURL(input.URL)
	if err != nil {
		return nil, err
	}

	if input.Code != nil && strings.TrimSpace(*input.Code) != "" {
		code, err := validation.ValidateCode(*input.Code)
		if err != nil {
			return nil, err
		}
		return r.createWithCode(ctx, code, url)
	}

	return r.createWithGeneratedCode(ctx, url)
}

// createWithCode создаёт ссылку с кодом пользователя.
// Предварительная проверка лишь ускоряет типичный отказ; гарантию
// уникальности даёт ограничение в БД, его конфликт не повторяется.
func (r *linkRegistry) createWithCode(ctx context.Context, code, url string) (*models.Link, error) {
	taken, err := r.codeTaken(ctx, code)
	if err != nil {
		return nil, err
	}
	if taken {
		metrics.CodeConflictsTotal.WithLabelValues("custom", "advisory").Inc()
		return nil, fmt.Errorf("%w: %s", ErrConflict, code)
	}

	link, err := r.insert(ctx, code, url)
	if err != nil {
		if errors.Is(err, repository.ErrCodeExists) {
			metrics.CodeConflictsTotal.WithLabelValues("custom", "constraint").Inc()
			r.logger.Info("Код занят конкурентным запросом", zap.String("code", code))
			return nil, fmt.Errorf("%w: %s", ErrConflict, code)
		}
		return nil, r.storeError("create", err)
	}

	metrics.LinksCreatedTotal.WithLabelValues("custom").Inc()
	r.cache(ctx, link)
	return link, nil
}

// createWithGeneratedCode перебирает не более MaxCodeAttempts свежих кандидатов
func (r *linkRegistry) createWithGeneratedCode(ctx context.Context, url string) (*models.Link, error) {
	for attempt := 1; attempt <= r.config.MaxCodeAttempts; attempt++ {
		code, err := r.generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		taken, err := r.codeTaken(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			metrics.CodeConflictsTotal.WithLabelValues("generated", "advisory").Inc()
			continue
		}

		link, err := r.insert(ctx, code, url)
		if err == nil {
			metrics.LinksCreatedTotal.WithLabelValues("generated").Inc()
			r.cache(ctx, link)
			return link, nil
		}
		if !errors.Is(err, repository.ErrCodeExists) {
			return nil, r.storeError("create", err)
		}

		metrics.CodeConflictsTotal.WithLabelValues("generated", "constraint").Inc()
		r.logger.Debug("Коллизия сгенерированного кода",
			zap.String("code", code),
			zap.Int("attempt", attempt),
		)
	}

	metrics.CodeGenerationExhaustedTotal.Inc()
	r.logger.Warn("Исчерпаны попытки генерации кода", zap.Int("attempts", r.config.MaxCodeAttempts))
	return nil, ErrCapacityExhausted
}

// ResolveAndRecordClick возвращает целевой URL и ставит клик в очередь записи.
// Сбой записи клика не влияет на редирект, но всегда логируется.
func (r *linkRegistry) ResolveAndRecordClick(ctx context.Context, rawCode string) (string, error) {
	code, err := validation.ValidateCode(rawCode)
	if err != nil {
		metrics.RedirectsTotal.WithLabelValues("invalid").Inc()
		return "", err
	}

	link, err := r.lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.RedirectsTotal.WithLabelValues("not_found").Inc()
		}
		return "", err
	}

	event := &models.ClickEvent{Code: code, ClickedAt: r.config.Now()}
	if err := r.clicks.RecordClick(ctx, event); err != nil {
		metrics.ClicksFailedTotal.WithLabelValues("not_queued").Inc()
		r.logger.Error("Клик не поставлен в очередь",
			zap.String("code", code),
			zap.Time("clicked_at", event.ClickedAt),
			zap.Error(err),
		)
	}

	metrics.RedirectsTotal.WithLabelValues("found").Inc()
	return link.URL, nil
}

// GetLink читает ссылку напрямую из хранилища (актуальные счётчики)
func (r *linkRegistry) GetLink(ctx context.Context, rawCode string) (*models.Link, error) {
	code, err := validation.ValidateCode(rawCode)
	if err != nil {
		return nil, err
	}

	link, err := r.linkRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, r.storeError("find", err)
	}

	return link, nil
}

// DeleteLink удаляет ссылку; повторное удаление возвращает ErrNotFound
func (r *linkRegistry) DeleteLink(ctx context.Context, rawCode string) error {
	code, err := validation.ValidateCode(rawCode)
	if err != nil {
		return err
	}

	ctx, cancel := r.detach(ctx)
	defer cancel()

	r.evict(ctx, code)

	if err := r.linkRepo.DeleteByCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return r.storeError("delete", err)
	}

	// Вторая инвалидация убирает запись редиректа, прочитавшего ссылку до
	// удаления; более поздние записи снимает перепроверка в fill
	r.evict(ctx, code)
	return nil
}

// ListLinks возвращает все ссылки, новые первыми
func (r *linkRegistry) ListLinks(ctx context.Context) ([]models.Link, error) {
	links, err := r.linkRepo.List(ctx)
	if err != nil {
		return nil, r.storeError("list", err)
	}
	return links, nil
}

// lookup ищет ссылку для редиректа: сначала кэш, затем БД.
// Одновременные промахи по одному коду схлопываются в один запрос.
func (r *linkRegistry) lookup(ctx context.Context, code string) (*models.Link, error) {
	if link, err := r.cacheRepo.Get(ctx, code); err == nil {
		metrics.CacheHitsTotal.Inc()
		return link, nil
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		r.logger.Warn("Ошибка чтения кэша", zap.String("code", code), zap.Error(err))
	}
	metrics.CacheMissesTotal.Inc()

	result, err, _ := r.lookups.Do(code, func() (interface{}, error) {
		// Общий запрос не должен отменяться вместе с первым вызывающим
		lookupCtx, cancel := r.detach(ctx)
		defer cancel()
		return r.fill(lookupCtx, code)
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, r.storeError("find", err)
	}

	return result.(*models.Link), nil
}

// fill читает ссылку из БД и кладёт её в кэш.
// Удаление, завершившееся между чтением и записью в кэш, уже не
// инвалидирует эту запись, поэтому после записи строка проверяется повторно.
func (r *linkRegistry) fill(ctx context.Context, code string) (*models.Link, error) {
	link, err := r.linkRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	r.cache(ctx, link)

	if _, err := r.linkRepo.FindByCode(ctx, code); err != nil {
		r.evict(ctx, code)
		if errors.Is(err, repository.ErrLinkNotFound) {
			metrics.StaleCacheEvictionsTotal.Inc()
			r.logger.Info("Ссылка удалена во время редиректа", zap.String("code", code))
			return nil, err
		}
		// Подтвердить запись не удалось: редирект обслуживается, кэш пуст
		r.logger.Warn("Не удалось перепроверить ссылку после кэширования", zap.String("code", code), zap.Error(err))
	}

	return link, nil
}

// codeTaken рекомендательная проверка занятости кода
func (r *linkRegistry) codeTaken(ctx context.Context, code string) (bool, error) {
	_, err := r.linkRepo.FindByCode(ctx, code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrLinkNotFound):
		return false, nil
	default:
		return false, r.storeError("find", err)
	}
}

// insert выполняет вставку на контексте, не зависящем от отмены запроса:
// начатая мутация доводится до конца или отменяется по таймауту целиком
func (r *linkRegistry) insert(ctx context.Context, code, url string) (*models.Link, error) {
	ctx, cancel := r.detach(ctx)
	defer cancel()
	return r.linkRepo.Create(ctx, code, url)
}

func (r *linkRegistry) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.config.StoreTimeout)
}

func (r *linkRegistry) cache(ctx context.Context, link *models.Link) {
	if err := r.cacheRepo.Set(ctx, link.Code, link, r.config.CacheTTL); err != nil {
		r.logger.Warn("Не удалось закэшировать ссылку", zap.String("code", link.Code), zap.Error(err))
	}
}

func (r *linkRegistry) evict(ctx context.Context, code string) {
	if err := r.cacheRepo.Delete(ctx, code); err != nil {
		r.logger.Warn("Не удалось удалить ссылку из кэша", zap.String("code", code), zap.Error(err))
	}
}

// storeError приводит любой сбой хранилища к ErrUnavailable; не повторяется
func (r *linkRegistry) storeError(op string, err error) error {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	r.logger.Error("Сбой хранилища ссылок", zap.String("operation", op), zap.Error(err))
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
