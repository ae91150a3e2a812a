package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SergeiKhy/linkregistry/internal/metrics"
	"github.com/SergeiKhy/linkregistry/internal/models"
	"github.com/SergeiKhy/linkregistry/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount    = 3    // Количество воркеров
	defaultChannelBuffer  = 1000 // Размер буфера канала
	defaultMaxRetries     = 3    // Максимальное количество попыток записи
	defaultRetryBackoff   = 100 * time.Millisecond
	defaultAttemptTimeout = 5 * time.Second
)

var ErrProcessorStopped = errors.New("click processor stopped")

// ClickProcessor интерфейс для асинхронной записи кликов
type ClickProcessor interface {
	Start()
	Stop()
	RecordClick(ctx context.Context, event *models.ClickEvent) error
	GetChannelStats() ChannelStats
}

type ClickProcessorConfig struct {
	Workers        int
	BufferSize     int
	MaxRetries     int
	RetryBackoff   time.Duration
	AttemptTimeout time.Duration
}

func (c ClickProcessorConfig) withDefaults() ClickProcessorConfig {
	if c.Workers <= 0 {
		c.Workers = defaultWorkerCount
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultChannelBuffer
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaultAttemptTimeout
	}
	return c
}

// clickProcessor реализация процессора кликов с использованием Worker Pool.
// Каждый клик превращается ровно в один атомарный инкремент в хранилище,
// в памяти счётчики не агрегируются.
type clickProcessor struct {
	linkRepo     repository.LinkRepository
	logger       *zap.Logger
	config       ClickProcessorConfig
	clickChannel chan *models.ClickEvent // Канал для событий кликов
	wg           sync.WaitGroup          // воркеры и overflow-горутины
	mu           sync.RWMutex            // защищает stopped и закрытие канала
	started      bool
	stopped      bool
}

// NewClickProcessor создаёт новый экземпляр процессора кликов
func NewClickProcessor(
	linkRepo repository.LinkRepository,
	logger *zap.Logger,
	config ClickProcessorConfig,
) ClickProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	config = config.withDefaults()
	return &clickProcessor{
		linkRepo:     linkRepo,
		logger:       logger,
		config:       config,
		clickChannel: make(chan *models.ClickEvent, config.BufferSize),
	}
}

// Start запускает worker pool
func (p *clickProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	p.logger.Info("Запуск воркеров процессора кликов", zap.Int("count", p.config.Workers))

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop прекращает приём событий и дожидается записи всех уже принятых кликов
func (p *clickProcessor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.clickChannel)
	started := p.started
	p.mu.Unlock()

	p.logger.Info("Остановка процессора кликов...", zap.Int("pending", len(p.clickChannel)))

	// Воркеры не запускались: дописываем очередь в текущей горутине
	if !started {
		for event := range p.clickChannel {
			p.processClick(event)
		}
	}

	p.wg.Wait()
	metrics.ClickQueueDepth.Set(0)
	p.logger.Info("Процессор кликов остановлен")
}

// worker обрабатывает события кликов из канала до его закрытия
func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер кликов запущен", zap.Int("id", id))

	for event := range p.clickChannel {
		metrics.ClickQueueDepth.Set(float64(len(p.clickChannel)))
		p.processClick(event)
	}

	p.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
}

// processClick применяет один инкремент с retry логикой.
// Повторяются только сбои хранилища; удалённая ссылка не повторяется.
func (p *clickProcessor) processClick(event *models.ClickEvent) {
	var lastErr error

	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.AttemptTimeout)
		link, err := p.linkRepo.IncrementClick(ctx, event.Code, event.ClickedAt)
		cancel()

		if err == nil {
			metrics.ClicksRecordedTotal.Inc()
			p.logger.Debug("Клик записан",
				zap.String("code", event.Code),
				zap.Int64("total_clicks", link.TotalClicks),
			)
			return
		}

		if errors.Is(err, repository.ErrLinkNotFound) {
			metrics.ClicksFailedTotal.WithLabelValues("not_found").Inc()
			p.logger.Warn("Ссылка удалена до записи клика",
				zap.String("code", event.Code),
			)
			return
		}

		lastErr = err
		if attempt < p.config.MaxRetries {
			p.logger.Debug("Повторная попытка записи клика",
				zap.String("code", event.Code),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			time.Sleep(time.Duration(attempt) * p.config.RetryBackoff)
		}
	}

	metrics.ClicksFailedTotal.WithLabelValues("unavailable").Inc()
	p.logger.Error("Не удалось записать клик после всех попыток",
		zap.String("code", event.Code),
		zap.Time("clicked_at", event.ClickedAt),
		zap.Int("attempts", p.config.MaxRetries),
		zap.Error(lastErr),
	)
}

// RecordClick передаёт событие в worker pool и никогда не блокирует запрос.
// При заполненном буфере клик записывается отдельной горутиной, а не теряется.
func (p *clickProcessor) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrProcessorStopped
	}

	select {
	case p.clickChannel <- event:
		metrics.ClickQueueDepth.Set(float64(len(p.clickChannel)))
		return nil
	default:
	}

	metrics.ClicksOverflowTotal.Inc()
	p.logger.Warn("Буфер канала кликов заполнен, клик записывается вне пула",
		zap.String("code", event.Code),
	)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.processClick(event)
	}()

	return nil
}

// GetChannelStats возвращает статистику канала для /healthz
func (p *clickProcessor) GetChannelStats() ChannelStats {
	return ChannelStats{
		BufferSize:  cap(p.clickChannel),
		BufferUsed:  len(p.clickChannel),
		WorkerCount: p.config.Workers,
	}
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize  int `json:"bufferSize"`  // Общая ёмкость канала
	BufferUsed  int `json:"bufferUsed"`  // Текущее использование
	WorkerCount int `json:"workerCount"` // Количество воркеров
}
