package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/resilience"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/storage"
)

var (
	// ErrRunInProgress is returned when a run is requested while another one is still going.
	ErrRunInProgress = errors.New("sync run already in progress")
	// ErrEmptyText is returned when asked to publish an empty post.
	ErrEmptyText = errors.New("text must not be empty")
)

// Source reads and publishes posts on the upstream platform.
type Source interface {
	FetchNewItems(ctx context.Context, accountID, sinceID string) (resilience.Result[models.SearchResponse], error)
	PublishItem(ctx context.Context, text string) (resilience.Result[models.PublishResult], error)
}

// Translator translates post text.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (resilience.Result[string], error)
}

// RunReport summarises one pipeline run.
type RunReport struct {
	AccountID string                 `json:"account_id"`
	Watermark string                 `json:"watermark,omitempty"`
	Fetched   int                    `json:"fetched"`
	Published []models.PublishResult `json:"published"`
	Skipped   int                    `json:"skipped"`
	Failed    int                    `json:"failed"`
}

type itemOutcome int

const (
	itemPublished itemOutcome = iota
	itemSkipped
)

// Service drives posts through translate, persist and publish.
type Service struct {
	config     config.SyncConfig
	storage    storage.Storage
	source     Source
	translator Translator
	log        *zap.Logger
	now        func() time.Time

	running atomic.Bool

	mu     sync.RWMutex
	status models.RunStatus
}

// NewService creates a new ingestion service
func NewService(cfg config.SyncConfig, store storage.Storage, source Source, translator Translator, logger *zap.Logger) *Service {
	return &Service{
		config:     cfg,
		storage:    store,
		source:     source,
		translator: translator,
		log:        logger.Named("ingestion"),
		now:        func() time.Time { return time.Now().UTC() },
		status:     models.RunStatus{State: models.RunStateNeverRun},
	}
}

// Start runs the pipeline for the tracked account immediately and then on every tick
// until ctx is cancelled. Failed runs are logged and do not stop the loop.
func (s *Service) Start(ctx context.Context) error {
	s.runScheduled(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Service) runScheduled(ctx context.Context) {
	report, err := s.SyncAccount(ctx, s.config.AccountID)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Info("previous run still in progress, skipping tick", zap.String("account_id", s.config.AccountID))
	case err != nil:
		s.log.Error("scheduled run failed", zap.String("account_id", s.config.AccountID), zap.Error(err))
	default:
		s.log.Info("scheduled run finished",
			zap.String("account_id", report.AccountID),
			zap.Int("fetched", report.Fetched),
			zap.Int("published", len(report.Published)),
			zap.Int("skipped", report.Skipped))
	}
}

// SyncAccount runs the pipeline once for accountID. Only one run may be active at a time.
func (s *Service) SyncAccount(ctx context.Context, accountID string) (RunReport, error) {
	report := RunReport{AccountID: accountID, Published: []models.PublishResult{}}
	if !s.running.CompareAndSwap(false, true) {
		return report, ErrRunInProgress
	}
	defer s.running.Store(false)

	s.markRunning()
	err := s.run(ctx, &report)
	s.markDone(report, err)
	return report, err
}

func (s *Service) run(ctx context.Context, report *RunReport) error {
	log := s.log.With(zap.String("account_id", report.AccountID))
	log.Info("getting posts")

	latest, err := s.storage.LatestRecord(ctx)
	if err != nil {
		log.Error("failed to read watermark", zap.Error(err))
		return fmt.Errorf("failed to read watermark: %w", err)
	}
	if latest != nil {
		report.Watermark = latest.SourceItemID
	}

	res, err := s.source.FetchNewItems(ctx, report.AccountID, report.Watermark)
	if err != nil {
		log.Error("error on getting posts", zap.String("since_id", report.Watermark), zap.Error(err))
		return fmt.Errorf("failed to fetch posts: %w", err)
	}
	if !res.Present || res.Value.Data == nil {
		log.Info("no new posts", zap.String("since_id", report.Watermark))
		return nil
	}

	items := res.Value.Data
	report.Fetched = len(items)

	var errs []error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		outcome, published, err := s.processItem(ctx, item)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("post %s: %w", item.ID, err))
			if s.config.FailFast {
				break
			}
			continue
		}
		if outcome == itemSkipped {
			report.Skipped++
			continue
		}
		report.Published = append(report.Published, published)
	}

	if len(errs) > 0 {
		log.Error("error on processing posts", zap.Int("failed", report.Failed), zap.Errors("errors", errs))
		return errors.Join(errs...)
	}
	log.Info("success on getting posts", zap.Int("published", len(report.Published)))
	return nil
}

// processItem translates, persists and publishes one post, stopping at the first failing step.
func (s *Service) processItem(ctx context.Context, item models.Tweet) (itemOutcome, models.PublishResult, error) {
	log := s.log.With(zap.String("post_id", item.ID))

	createdAt, err := models.ParseCreatedAt(item.CreatedAt)
	if err != nil {
		return itemSkipped, models.PublishResult{}, err
	}

	log.Debug("getting translation", zap.String("text", item.Text))
	translated, err := s.translator.Translate(ctx, item.Text, s.config.SourceLang, s.config.TargetLang)
	if err != nil {
		return itemSkipped, models.PublishResult{}, fmt.Errorf("translate: %w", err)
	}
	if !translated.Present {
		log.Warn("translation returned no text, skipping post")
		return itemSkipped, models.PublishResult{}, nil
	}

	record, err := s.storage.AppendRecord(ctx, models.SyncRecord{
		SourceItemID:    item.ID,
		AuthorID:        item.AuthorID,
		TranslatedText:  translated.Value,
		OriginalText:    item.Text,
		SourceCreatedAt: createdAt,
		RecordCreatedAt: s.now(),
	})
	if errors.Is(err, storage.ErrDuplicateRecord) {
		log.Info("post already processed, skipping")
		return itemSkipped, models.PublishResult{}, nil
	}
	if err != nil {
		return itemSkipped, models.PublishResult{}, fmt.Errorf("persist: %w", err)
	}

	published, err := s.publish(ctx, record.TranslatedText)
	if err != nil {
		return itemSkipped, models.PublishResult{}, fmt.Errorf("publish: %w", err)
	}
	if !published.Present {
		log.Warn("publish returned no content", zap.String("record_id", record.RecordID))
		return itemSkipped, models.PublishResult{}, nil
	}
	return itemPublished, published.Value, nil
}

// PublishText posts text as is, outside of any run.
func (s *Service) PublishText(ctx context.Context, text string) (resilience.Result[models.PublishResult], error) {
	if strings.TrimSpace(text) == "" {
		return resilience.Result[models.PublishResult]{}, ErrEmptyText
	}
	return s.publish(ctx, text)
}

func (s *Service) publish(ctx context.Context, text string) (resilience.Result[models.PublishResult], error) {
	s.log.Debug("posting", zap.String("text", text))
	res, err := s.source.PublishItem(ctx, text)
	if err != nil {
		s.log.Error("error on posting", zap.String("text", text), zap.Error(err))
		return res, err
	}
	if res.Present {
		s.log.Info("success on posting", zap.String("id", res.Value.ID))
	}
	return res, nil
}

// Status returns the outcome of the latest run.
func (s *Service) Status() models.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) markRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = models.RunStateRunning
	s.status.LastAttempt = s.now()
}

func (s *Service) markDone(report RunReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Watermark = report.Watermark
	s.status.ItemsFetched = report.Fetched
	s.status.ItemsPublished = len(report.Published)
	if err != nil {
		s.status.State = models.RunStateFailure
		s.status.ErrorMessage = err.Error()
		return
	}
	s.status.State = models.RunStateSuccess
	s.status.ErrorMessage = ""
	s.status.LastSuccessfulRun = s.now()
}
