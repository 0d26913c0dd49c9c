package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/tunegrab/internal/domain"
	"github.com/yourusername/tunegrab/internal/infrastructure"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultURLTemplate = "https://www.youtube.com/watch?v=%s"
	stderrTailLines    = 20
	subscriberBuffer   = 64
)

// DownloadManagerDeps are the collaborators of a DownloadManager.
// History and Notifier are optional.
type DownloadManagerDeps struct {
	Config    *domain.Config
	Binary    string
	Runner    domain.ProcessRunner
	Parser    domain.ProgressParser
	Selector  *infrastructure.BypassSelector
	Locator   *infrastructure.FileLocator
	Metadata  domain.MetadataStore
	Completed domain.CompletedStore
	History   domain.DownloadRepository
	Notifier  domain.Notifier
	Logger    *zap.Logger
}

// inFlight is the engine-side state of one running request
type inFlight struct {
	token    uint64
	track    domain.Track
	progress domain.DownloadProgress
	state    *domain.BypassState
	record   *domain.DownloadRecord
	cancel   context.CancelFunc

	// per attempt
	stderr   []string
	detected bool
	keychain bool
}

type lingeringFailure struct {
	token    uint64
	progress domain.DownloadProgress
}

// DownloadManager runs yt-dlp for each requested track, rotates bypass
// strategies on failure and tracks which tracks are downloaded and where.
// All mutable state is guarded by mu.
type DownloadManager struct {
	config    *domain.DownloadConfig
	extractor *domain.ExtractorConfig
	bypass    *domain.BypassConfig
	binary    string
	runner    domain.ProcessRunner
	parser    domain.ProgressParser
	selector  *infrastructure.BypassSelector
	locator   *infrastructure.FileLocator
	metadata  domain.MetadataStore
	store     domain.CompletedStore
	history   domain.DownloadRepository
	notifier  domain.Notifier
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.RWMutex
	inFlight    map[string]*inFlight
	failures    map[string]lingeringFailure
	completed   map[string]struct{}
	subscribers map[int]chan domain.DownloadProgress
	nextToken   uint64
	nextSub     int

	persistMu sync.Mutex
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(deps DownloadManagerDeps) *DownloadManager {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadManager{
		config:      &deps.Config.Download,
		extractor:   &deps.Config.Extractor,
		bypass:      &deps.Config.Bypass,
		binary:      deps.Binary,
		runner:      deps.Runner,
		parser:      deps.Parser,
		selector:    deps.Selector,
		locator:     deps.Locator,
		metadata:    deps.Metadata,
		store:       deps.Completed,
		history:     deps.History,
		notifier:    deps.Notifier,
		logger:      logger,
		now:         time.Now,
		inFlight:    make(map[string]*inFlight),
		failures:    make(map[string]lingeringFailure),
		completed:   make(map[string]struct{}),
		subscribers: make(map[int]chan domain.DownloadProgress),
	}
}

// Load restores the completed set from the durable store
func (dm *DownloadManager) Load() error {
	if err := os.MkdirAll(dm.config.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create downloads directory: %w", err)
	}

	ids, err := dm.store.LoadCompleted()
	if err != nil {
		return fmt.Errorf("failed to load completed downloads: %w", err)
	}

	dm.mu.Lock()
	for _, id := range ids {
		dm.completed[id] = struct{}{}
	}
	dm.mu.Unlock()

	dm.locator.Invalidate()
	dm.logger.Info("Completed downloads loaded", zap.Int("count", len(ids)))
	return nil
}

// RequestDownload downloads track and blocks until the request ends.
// It returns nil right away when the track is already downloading or downloaded.
func (dm *DownloadManager) RequestDownload(ctx context.Context, track domain.Track) error {
	done, started := dm.StartDownload(ctx, track)
	if !started {
		return nil
	}
	return <-done
}

// StartDownload begins downloading track and returns a channel receiving
// the terminal result. ctx bounds the whole request including retries.
// started is false when the request was a no-op. An invalid id resolves the
// channel at once with domain.ErrInvalidTrackID.
func (dm *DownloadManager) StartDownload(ctx context.Context, track domain.Track) (<-chan error, bool) {
	if err := domain.ValidateTrackID(track.ID); err != nil {
		dm.logger.Warn("Rejected download request", zap.String("id", track.ID), zap.Error(err))
		done := make(chan error, 1)
		done <- err
		return done, true
	}

	dm.mu.Lock()
	if _, busy := dm.inFlight[track.ID]; busy {
		dm.mu.Unlock()
		dm.logger.Debug("Download already in progress", zap.String("id", track.ID))
		return nil, false
	}
	if _, done := dm.completed[track.ID]; done {
		dm.mu.Unlock()
		dm.logger.Debug("Track already downloaded", zap.String("id", track.ID))
		return nil, false
	}

	reqCtx, cancel := context.WithCancel(ctx)
	dm.nextToken++
	state := domain.NewBypassState(dm.selector.Current(), dm.config.MaxRetries)
	entry := &inFlight{
		token:    dm.nextToken,
		track:    track,
		progress: domain.NewDownloadProgress(track.ID, state.Strategy),
		state:    state,
		record:   domain.NewDownloadRecord(track),
		cancel:   cancel,
	}
	dm.inFlight[track.ID] = entry
	delete(dm.failures, track.ID)
	dm.publishLocked(entry.progress)
	dm.mu.Unlock()

	dm.locator.Remember(track)
	entry.record.MarkProcessing(state.Strategy)
	dm.createRecord(entry.record)

	dm.logger.Info("Download requested",
		zap.String("id", track.ID),
		zap.String("title", track.Title),
		zap.String("strategy", string(state.Strategy)))

	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- dm.run(reqCtx, entry)
	}()
	return done, true
}

// run drives the retry state machine of one request
func (dm *DownloadManager) run(ctx context.Context, entry *inFlight) error {
	id := entry.track.ID
	pacer := dm.newRetryPacer()

	for {
		strategy := entry.state.Strategy
		completion := dm.runner.Start(ctx, id, dm.binary, dm.buildArgs(entry.track, strategy),
			func(stream domain.Stream, line string) {
				dm.handleLine(entry, stream, line)
			})
		<-completion.Done()
		result, _ := completion.Result()

		if result.Cancelled || ctx.Err() != nil {
			return dm.finishCancelled(entry)
		}

		if result.Err != nil {
			return dm.finishFailed(entry, &domain.DownloadError{
				Kind: domain.KindStartupFailure,
				ID:   id,
				Err:  result.Err,
			})
		}

		if result.Success() {
			return dm.finishSucceeded(entry, strategy)
		}

		retry := dm.attemptFailed(entry, result.ExitCode)
		if !retry {
			return dm.finishFailed(entry, &domain.DownloadError{
				Kind:     domain.KindExhaustedRetries,
				ID:       id,
				ExitCode: result.ExitCode,
				Retries:  entry.state.Retries,
				Err:      dm.failureDetail(entry),
			})
		}

		if !dm.prepareRetry(entry, result.ExitCode) {
			return dm.finishCancelled(entry)
		}
		if err := pacer.Wait(ctx); err != nil {
			return dm.finishCancelled(entry)
		}
	}
}

// newRetryPacer spaces attempts of one request at least RetryDelay apart
func (dm *DownloadManager) newRetryPacer() *rate.Limiter {
	if dm.config.RetryDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	limiter := rate.NewLimiter(rate.Every(dm.config.RetryDelay), 1)
	limiter.Allow() // the first attempt
	return limiter
}

func (dm *DownloadManager) buildArgs(track domain.Track, strategy domain.Strategy) []string {
	format := dm.config.AudioFormat
	if format == "" {
		format = "m4a"
	}
	template := dm.extractor.URLTemplate
	if template == "" {
		template = defaultURLTemplate
	}
	// a literal % in the name would be read as a template field
	base := strings.ReplaceAll(infrastructure.MediaBaseName(track.Title, track.Uploader), "%", "%%")
	output := filepath.Join(dm.config.Dir, base+".%(ext)s")

	args := []string{
		"--newline",
		"--no-playlist",
		"-f", "bestaudio",
		"-x",
		"--audio-format", format,
		"-o", output,
	}
	args = append(args, dm.selector.Arguments(strategy)...)
	args = append(args, dm.extractor.ExtraArgs...)
	return append(args, fmt.Sprintf(template, track.ID))
}

// handleLine runs on runner goroutines
func (dm *DownloadManager) handleLine(entry *inFlight, stream domain.Stream, line string) {
	update, isProgress := dm.parser.Parse(line)

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if !dm.liveLocked(entry) {
		return
	}

	if stream == domain.StreamStderr {
		entry.stderr = append(entry.stderr, line)
		if len(entry.stderr) > stderrTailLines {
			entry.stderr = entry.stderr[len(entry.stderr)-stderrTailLines:]
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "keychain") {
			entry.keychain = true
		}
		if matchesAny(lower, dm.bypass.DetectionPhrases) {
			entry.detected = true
		}
	}

	if isProgress {
		entry.progress = entry.progress.Apply(update)
		dm.publishLocked(entry.progress)
	}
}

// attemptFailed decides whether a non-zero exit is retried
func (dm *DownloadManager) attemptFailed(entry *inFlight, exitCode int) bool {
	dm.mu.Lock()
	detected, keychain := entry.detected, entry.keychain
	dm.mu.Unlock()

	if keychain {
		dm.selector.MarkKeychainDenied()
	}

	dm.logger.Warn("Download attempt failed",
		zap.String("id", entry.track.ID),
		zap.String("strategy", string(entry.state.Strategy)),
		zap.Int("attempt", entry.state.Attempt()),
		zap.Int("exit_code", exitCode),
		zap.Bool("bot_detected", detected))

	if !entry.state.CanRetry() {
		return false
	}
	if dm.bypass.StrictDetection && !detected && !keychain {
		return false
	}
	return true
}

// prepareRetry advances the strategy and publishes the retrying placeholder.
// It returns false when the request is no longer live.
func (dm *DownloadManager) prepareRetry(entry *inFlight, exitCode int) bool {
	dm.mu.Lock()
	if !dm.liveLocked(entry) {
		dm.mu.Unlock()
		return false
	}
	strategy := entry.state.Advance()
	entry.stderr = nil
	entry.detected = false
	entry.keychain = false
	entry.progress = entry.progress.Retrying(strategy, entry.state.Attempt())
	dm.publishLocked(entry.progress)
	dm.mu.Unlock()

	entry.record.MarkRetry(strategy, exitCode)
	dm.updateRecord(entry.record)

	dm.logger.Info("Retrying download",
		zap.String("id", entry.track.ID),
		zap.String("strategy", string(strategy)),
		zap.Int("retry", entry.state.Retries),
		zap.Int("max_retries", entry.state.MaxRetries))
	return true
}

func (dm *DownloadManager) finishSucceeded(entry *inFlight, strategy domain.Strategy) error {
	id := entry.track.ID

	dm.mu.Lock()
	if !dm.liveLocked(entry) {
		dm.mu.Unlock()
		return dm.finishCancelled(entry)
	}
	delete(dm.inFlight, id)
	dm.completed[id] = struct{}{}
	progress := entry.progress
	progress.Fraction = 1
	progress.Completed = true
	dm.publishLocked(progress)
	dm.mu.Unlock()

	entry.state.Reset()
	dm.selector.Remember(strategy)
	dm.persistCompleted()

	if err := dm.metadata.Save(entry.track, dm.now()); err != nil {
		dm.logger.Error("Failed to save track metadata", zap.String("id", id), zap.Error(err))
	}
	dm.locator.Invalidate()

	path, _ := dm.FindFile(id)
	entry.record.MarkCompleted(path)
	dm.updateRecord(entry.record)

	dm.logger.Info("Download completed",
		zap.String("id", id),
		zap.String("strategy", string(strategy)),
		zap.String("file", path))

	if dm.notifier != nil {
		dm.notifier.NotifyDownloadCompleted(entry.track)
	}
	return nil
}

func (dm *DownloadManager) finishFailed(entry *inFlight, dlErr *domain.DownloadError) error {
	id := entry.track.ID

	dm.mu.Lock()
	if !dm.liveLocked(entry) {
		dm.mu.Unlock()
		return dm.finishCancelled(entry)
	}
	delete(dm.inFlight, id)
	progress := entry.progress.Failed(dlErr.Error())
	dm.failures[id] = lingeringFailure{token: entry.token, progress: progress}
	dm.publishLocked(progress)
	dm.mu.Unlock()

	entry.state.Reset()
	time.AfterFunc(dm.config.FailureLinger, func() {
		dm.mu.Lock()
		if f, ok := dm.failures[id]; ok && f.token == entry.token {
			delete(dm.failures, id)
		}
		dm.mu.Unlock()
	})

	entry.record.MarkFailed(dlErr.ExitCode, dlErr)
	dm.updateRecord(entry.record)

	dm.logger.Error("Download failed",
		zap.String("id", id),
		zap.String("kind", string(dlErr.Kind)),
		zap.Int("exit_code", dlErr.ExitCode),
		zap.Int("retries", dlErr.Retries),
		zap.Error(dlErr.Err))

	if dm.notifier != nil {
		dm.notifier.NotifyDownloadFailed(entry.track, dlErr)
	}
	return dlErr
}

func (dm *DownloadManager) finishCancelled(entry *inFlight) error {
	dm.mu.Lock()
	if dm.liveLocked(entry) {
		delete(dm.inFlight, entry.track.ID)
	}
	dm.mu.Unlock()

	entry.record.MarkCancelled()
	dm.updateRecord(entry.record)

	dm.logger.Info("Download cancelled", zap.String("id", entry.track.ID))
	return domain.ErrDownloadCancelled
}

// failureDetail picks the most telling stderr line of the last attempt
func (dm *DownloadManager) failureDetail(entry *inFlight) error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	for i := len(entry.stderr) - 1; i >= 0; i-- {
		if strings.Contains(entry.stderr[i], "ERROR") {
			return errors.New(entry.stderr[i])
		}
	}
	if n := len(entry.stderr); n > 0 {
		return errors.New(entry.stderr[n-1])
	}
	return nil
}

// Cancel stops an in-flight download. The identifier leaves the in-flight
// set immediately; late output of the killed process is discarded.
func (dm *DownloadManager) Cancel(id string) bool {
	dm.mu.Lock()
	entry, ok := dm.inFlight[id]
	if !ok {
		dm.mu.Unlock()
		return false
	}
	delete(dm.inFlight, id)
	dm.runner.Cancel(id)
	entry.cancel()
	dm.mu.Unlock()

	dm.logger.Info("Cancelling download", zap.String("id", id))
	return true
}

// CancelAll stops every in-flight download
func (dm *DownloadManager) CancelAll() {
	for _, p := range dm.ActiveDownloads() {
		dm.Cancel(p.ID)
	}
}

// DeleteDownload removes the media file, the metadata and the completed
// mark of id. File removal is best-effort.
func (dm *DownloadManager) DeleteDownload(id string) {
	if err := domain.ValidateTrackID(id); err != nil {
		dm.logger.Warn("Rejected delete request", zap.String("id", id), zap.Error(err))
		return
	}

	if path, ok := dm.FindFile(id); ok {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			dm.logger.Warn("Failed to remove media file", zap.String("id", id), zap.String("path", path), zap.Error(err))
		}
	}
	if err := dm.metadata.Delete(id); err != nil {
		dm.logger.Warn("Failed to remove metadata", zap.String("id", id), zap.Error(err))
	}

	dm.mu.Lock()
	delete(dm.completed, id)
	dm.mu.Unlock()

	dm.persistCompleted()
	dm.locator.Forget(id)
	dm.locator.Invalidate()

	dm.logger.Info("Download deleted", zap.String("id", id))
}

// IsDownloaded reports whether id is in the completed set
func (dm *DownloadManager) IsDownloaded(id string) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	_, ok := dm.completed[id]
	return ok
}

// IsDownloading reports whether id is in flight
func (dm *DownloadManager) IsDownloading(id string) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	_, ok := dm.inFlight[id]
	return ok
}

// FindFile returns the media file of a completed download
func (dm *DownloadManager) FindFile(id string) (string, bool) {
	if !dm.IsDownloaded(id) {
		return "", false
	}
	return dm.locator.Resolve(id, dm.CompletedIDs())
}

// Progress returns the live record of id, or its terminal failure while it lingers
func (dm *DownloadManager) Progress(id string) (domain.DownloadProgress, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	if entry, ok := dm.inFlight[id]; ok {
		return entry.progress, true
	}
	if f, ok := dm.failures[id]; ok {
		return f.progress, true
	}
	return domain.DownloadProgress{}, false
}

// ActiveDownloads returns the in-flight records sorted by identifier
func (dm *DownloadManager) ActiveDownloads() []domain.DownloadProgress {
	dm.mu.RLock()
	active := make([]domain.DownloadProgress, 0, len(dm.inFlight))
	for _, entry := range dm.inFlight {
		active = append(active, entry.progress)
	}
	dm.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}

// CompletedIDs returns the completed set, sorted
func (dm *DownloadManager) CompletedIDs() []string {
	dm.mu.RLock()
	ids := make([]string, 0, len(dm.completed))
	for id := range dm.completed {
		ids = append(ids, id)
	}
	dm.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// ListDownloadedTracks returns every completed track that has a file on
// disk, newest first. Tracks without metadata are rebuilt from the file name.
func (dm *DownloadManager) ListDownloadedTracks() []domain.DownloadedTrack {
	var tracks []domain.DownloadedTrack

	for _, id := range dm.CompletedIDs() {
		path, ok := dm.FindFile(id)
		if !ok {
			dm.logger.Debug("Completed track has no file", zap.String("id", id))
			continue
		}

		item := domain.DownloadedTrack{FilePath: path}
		if record, found := dm.metadata.Load(id); found {
			item.Track = record.Track
			item.DownloadedAt = record.DownloadedAt
		} else {
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			base = strings.TrimSpace(strings.Replace(base, "["+id+"]", "", 1))
			title, uploader := infrastructure.ParseMediaBaseName(base)
			item.Track = domain.Track{ID: id, Title: title, Uploader: uploader}
		}

		if item.DownloadedAt.IsZero() {
			if info, err := os.Stat(path); err == nil {
				item.DownloadedAt = info.ModTime()
			}
		}
		tracks = append(tracks, item)
	}

	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].DownloadedAt.After(tracks[j].DownloadedAt)
	})
	return tracks
}

// Subscribe returns a channel receiving every published progress record.
// Slow subscribers miss records rather than block the engine.
func (dm *DownloadManager) Subscribe() (<-chan domain.DownloadProgress, func()) {
	ch := make(chan domain.DownloadProgress, subscriberBuffer)

	dm.mu.Lock()
	dm.nextSub++
	key := dm.nextSub
	dm.subscribers[key] = ch
	dm.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			dm.mu.Lock()
			delete(dm.subscribers, key)
			dm.mu.Unlock()
			close(ch)
		})
	}
}

func (dm *DownloadManager) publishLocked(progress domain.DownloadProgress) {
	for _, ch := range dm.subscribers {
		select {
		case ch <- progress:
		default:
		}
	}
}

func (dm *DownloadManager) liveLocked(entry *inFlight) bool {
	current, ok := dm.inFlight[entry.track.ID]
	return ok && current.token == entry.token
}

// persistCompleted writes the completed set. The snapshot is taken under
// persistMu so the last write always carries the newest state.
func (dm *DownloadManager) persistCompleted() {
	dm.persistMu.Lock()
	defer dm.persistMu.Unlock()

	if err := dm.store.SaveCompleted(dm.CompletedIDs()); err != nil {
		dm.logger.Error("Failed to persist completed downloads", zap.Error(err))
	}
}

func (dm *DownloadManager) createRecord(record *domain.DownloadRecord) {
	if dm.history == nil {
		return
	}
	if err := dm.history.Create(record); err != nil {
		dm.logger.Warn("Failed to record download history", zap.String("id", record.VideoID), zap.Error(err))
	}
}

func (dm *DownloadManager) updateRecord(record *domain.DownloadRecord) {
	if dm.history == nil {
		return
	}
	if err := dm.history.Update(record); err != nil {
		dm.logger.Warn("Failed to update download history", zap.String("id", record.VideoID), zap.Error(err))
	}
}

func matchesAny(lowerLine string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(lowerLine, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
