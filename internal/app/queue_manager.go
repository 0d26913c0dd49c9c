package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/tunegrab/internal/domain"
	"github.com/yourusername/tunegrab/pkg/logger"
)

const queueCapacity = 256

// EnqueueStatus tells a caller what happened to a download request
type EnqueueStatus string

const (
	EnqueueStarted     EnqueueStatus = "started"
	EnqueueDownloading EnqueueStatus = "downloading"
	EnqueueDownloaded  EnqueueStatus = "downloaded"
)

// ErrQueueFull is returned when the request backlog is full
var ErrQueueFull = errors.New("download queue is full")

// Downloader is the part of the engine the queue drives
type Downloader interface {
	StartDownload(ctx context.Context, track domain.Track) (<-chan error, bool)
	IsDownloaded(id string) bool
	IsDownloading(id string) bool
}

// QueueManager accepts download requests and dispatches them to the engine
// in the background, bounded by the configured concurrency limit
type QueueManager struct {
	downloadMgr Downloader
	repo        domain.DownloadRepository
	config      *domain.DownloadConfig
	multiLogger *logger.MultiLogger
	mu          sync.RWMutex
	running     bool
	pending     map[string]struct{}
	requests    chan domain.Track
	slots       chan struct{} // nil = unbounded
	stopChan    chan struct{}
	cancel      context.CancelFunc
	workerWg    sync.WaitGroup
}

// NewQueueManager creates a new queue manager. repo may be nil.
func NewQueueManager(
	downloadMgr Downloader,
	repo domain.DownloadRepository,
	config *domain.DownloadConfig,
	multiLogger *logger.MultiLogger,
) *QueueManager {
	var slots chan struct{}
	if config.ConcurrentLimit > 0 {
		slots = make(chan struct{}, config.ConcurrentLimit)
	}
	return &QueueManager{
		downloadMgr: downloadMgr,
		repo:        repo,
		config:      config,
		multiLogger: multiLogger,
		pending:     make(map[string]struct{}),
		requests:    make(chan domain.Track, queueCapacity),
		slots:       slots,
		stopChan:    make(chan struct{}),
	}
}

// Start starts the dispatcher
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	ctx, qm.cancel = context.WithCancel(ctx)
	qm.mu.Unlock()

	qm.logEvent("queue_started")

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the dispatcher and cancels the downloads it started
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	qm.mu.Unlock()

	qm.logEvent("queue_stopped")
	close(qm.stopChan)
	qm.cancel()
	qm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// Enqueue schedules a download of track
func (qm *QueueManager) Enqueue(track domain.Track) (EnqueueStatus, error) {
	if track.ID == "" {
		return "", fmt.Errorf("track id is required")
	}
	if err := domain.ValidateTrackID(track.ID); err != nil {
		return "", err
	}
	if qm.downloadMgr.IsDownloaded(track.ID) {
		return EnqueueDownloaded, nil
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()

	if !qm.running {
		return "", fmt.Errorf("queue manager not running")
	}
	if _, queued := qm.pending[track.ID]; queued || qm.downloadMgr.IsDownloading(track.ID) {
		return EnqueueDownloading, nil
	}

	select {
	case qm.requests <- track:
	default:
		return "", ErrQueueFull
	}
	qm.pending[track.ID] = struct{}{}

	qm.logEvent("download_added",
		zap.String("id", track.ID),
		zap.String("title", track.Title))

	return EnqueueStarted, nil
}

// Pending returns how many requests wait for a free slot
func (qm *QueueManager) Pending() int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return len(qm.pending)
}

// GetRecord retrieves a history record by ID
func (qm *QueueManager) GetRecord(id string) (*domain.DownloadRecord, error) {
	if qm.repo == nil {
		return nil, fmt.Errorf("history is not available")
	}
	return qm.repo.FindByID(id)
}

// ListHistory lists history records with optional filters
func (qm *QueueManager) ListHistory(filters map[string]interface{}) ([]*domain.DownloadRecord, error) {
	if qm.repo == nil {
		return []*domain.DownloadRecord{}, nil
	}
	return qm.repo.FindAll(filters)
}

// TrackHistory returns every record of one track, newest first
func (qm *QueueManager) TrackHistory(videoID string) ([]*domain.DownloadRecord, error) {
	if qm.repo == nil {
		return []*domain.DownloadRecord{}, nil
	}
	return qm.repo.FindByVideoID(videoID)
}

// GetStats returns download statistics
func (qm *QueueManager) GetStats() (*domain.DownloadStats, error) {
	if qm.repo == nil {
		return &domain.DownloadStats{}, nil
	}
	return qm.repo.GetStats()
}

// processQueue hands queued requests to the engine
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	for {
		select {
		case <-ctx.Done():
			qm.logEvent("queue_processor_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-qm.stopChan:
			qm.logEvent("queue_processor_stopped", zap.String("reason", "stop_signal"))
			return
		case track := <-qm.requests:
			qm.workerWg.Add(1)
			go func(track domain.Track) {
				defer qm.workerWg.Done()
				qm.dispatch(ctx, track)
			}(track)
		}
	}
}

func (qm *QueueManager) dispatch(ctx context.Context, track domain.Track) {
	defer func() {
		qm.mu.Lock()
		delete(qm.pending, track.ID)
		qm.mu.Unlock()
	}()

	if qm.slots != nil {
		select {
		case qm.slots <- struct{}{}:
			defer func() { <-qm.slots }()
		case <-ctx.Done():
			return
		}
	}

	done, started := qm.downloadMgr.StartDownload(ctx, track)
	if !started {
		qm.logEvent("download_skipped", zap.String("id", track.ID))
		return
	}

	qm.mu.Lock()
	delete(qm.pending, track.ID)
	qm.mu.Unlock()

	qm.logEvent("download_started", zap.String("id", track.ID))

	err := <-done
	switch {
	case err == nil:
		qm.logEvent("download_completed", zap.String("id", track.ID))
	case errors.Is(err, domain.ErrDownloadCancelled):
		qm.logEvent("download_cancelled", zap.String("id", track.ID))
	default:
		qm.logEvent("download_failed", zap.String("id", track.ID), zap.Error(err))
		if qm.multiLogger != nil {
			qm.multiLogger.LogAppError("Failed to process download",
				zap.String("id", track.ID),
				zap.Error(err))
		}
	}
}

func (qm *QueueManager) logEvent(event string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent(event, fields...)
	}
}
