package service

import (
	"artsheets/internal/catalog"
	"artsheets/internal/entity"
	"artsheets/internal/llm"
	"artsheets/internal/metrics"
	"artsheets/internal/quota"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultGenerationTimeout = 3 * time.Minute
	defaultRollbackTimeout   = 10 * time.Second
	persistTimeout           = 30 * time.Second
)

// Generator 生成一整批图片，要么全部成功要么返回错误
type Generator interface {
	Name() string
	Generate(ctx context.Context, spec catalog.Spec, count int) ([]llm.GeneratedImage, error)
}

// CreditLedger 额度预留与回滚，确认随工作表一起落库
type CreditLedger interface {
	Reserve(ctx context.Context, userID uint, amount int) (*quota.Reservation, error)
	Rollback(ctx context.Context, reservationID string) error
}

// Options 生成服务的超时配置
type Options struct {
	Timeout         time.Duration
	RollbackTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultGenerationTimeout
	}
	if o.RollbackTimeout <= 0 {
		o.RollbackTimeout = defaultRollbackTimeout
	}
	return o
}

// ReservationWindow is the longest a reservation stays pending inside one
// Generate call: generation, persistence and a compensating rollback.
func (o Options) ReservationWindow() time.Duration {
	o = o.withDefaults()
	return o.Timeout + persistTimeout + o.RollbackTimeout
}

// CheckReservationTTL rejects a TTL that would let the sweeper release a
// reservation while its generation is still running.
func (o Options) CheckReservationTTL(ttl time.Duration) error {
	if window := o.ReservationWindow(); ttl <= window {
		return fmt.Errorf("reservation ttl %s must exceed %s (generation timeout + persistence + rollback)", ttl, window)
	}
	return nil
}

// Result 一次成功生成的结果
type Result struct {
	Images []llm.GeneratedImage
	Sheets []entity.DbSheet
	// RemainingCredits is nil for unlimited plans.
	RemainingCredits *int
	Unlimited        bool
}

// GenerationService 内容生成服务，串联校验、额度预留、生成、落库和确认
type GenerationService struct {
	validator       *catalog.Validator
	ledger          CreditLedger
	generator       Generator
	recorder        *Recorder
	timeout         time.Duration
	rollbackTimeout time.Duration
}

// NewGenerationService 创建生成服务
func NewGenerationService(validator *catalog.Validator, ledger CreditLedger, generator Generator, recorder *Recorder, opts Options) *GenerationService {
	opts = opts.withDefaults()
	return &GenerationService{
		validator:       validator,
		ledger:          ledger,
		generator:       generator,
		recorder:        recorder,
		timeout:         opts.Timeout,
		rollbackTimeout: opts.RollbackTimeout,
	}
}

// Generate validates the request, reserves Quantity credits, generates the
// batch and records it. Recording commits the reservation; any failure
// before that rolls it back, so the caller is only charged for sheets that
// were actually saved.
func (s *GenerationService) Generate(ctx context.Context, userID uint, in catalog.Input) (res *Result, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordGeneration(outcomeFor(err), time.Since(start).Seconds())
	}()

	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	spec, err := s.validator.Validate(in)
	if err != nil {
		return nil, err
	}

	reservation, err := s.ledger.Reserve(ctx, userID, spec.Quantity)
	if err != nil {
		return nil, err
	}
	if reservation.Metered {
		metrics.RecordReserved(reservation.Amount)
	}

	logger := logrus.WithFields(logrus.Fields{
		"user_id":        userID,
		"reservation_id": reservation.ID,
		"technique":      spec.Technique,
		"theme":          spec.Theme,
		"quantity":       spec.Quantity,
	})

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	images, err := s.generator.Generate(genCtx, spec, spec.Quantity)
	cancel()
	if err == nil && len(images) != spec.Quantity {
		err = fmt.Errorf("expected %d images, got %d", spec.Quantity, len(images))
	}
	if err != nil {
		var backendErr *llm.GenerationBackendError
		if !errors.As(err, &backendErr) {
			err = &llm.GenerationBackendError{Backend: s.generator.Name(), Cause: err}
		}
		logger.WithError(err).Warn("sheet_generation_failed")
		s.rollback(ctx, reservation, logger)
		return nil, err
	}

	// 图片已经生成，客户端断开也继续落库
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()

	sheets, err := s.recorder.Record(persistCtx, userID, reservation.ID, spec, images)
	if err != nil {
		logger.WithError(err).WithField("images", imagePaths(images)).Error("orphaned_sheet_images")
		refunded := s.rollback(ctx, reservation, logger)
		var persistErr *PersistenceError
		if errors.As(err, &persistErr) {
			persistErr.Refunded = refunded
		}
		return nil, err
	}
	metrics.RecordSheetsCreated(len(sheets))

	res = &Result{
		Images:    images,
		Sheets:    sheets,
		Unlimited: reservation.Unlimited,
	}
	if !reservation.Unlimited {
		remaining := reservation.Remaining
		res.RemainingCredits = &remaining
	}

	logger.WithField("sheets", len(sheets)).Info("sheets_generated")
	return res, nil
}

// rollback reports whether the reserved credits are back on the account.
func (s *GenerationService) rollback(ctx context.Context, reservation *quota.Reservation, logger *logrus.Entry) bool {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rollbackTimeout)
	defer cancel()

	if err := s.ledger.Rollback(rollbackCtx, reservation.ID); err != nil {
		logger.WithError(err).Error("reservation_rollback_failed")
		return false
	}
	if reservation.Metered {
		metrics.RecordRefunded(reservation.Amount)
	}
	return true
}

func imagePaths(images []llm.GeneratedImage) []string {
	paths := make([]string, 0, len(images)*2)
	for _, img := range images {
		paths = append(paths, img.ImagePath)
		if img.ThumbnailPath != "" && img.ThumbnailPath != img.ImagePath {
			paths = append(paths, img.ThumbnailPath)
		}
	}
	return paths
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var (
		invalid      *catalog.InvalidRequestError
		insufficient *quota.InsufficientCreditsError
		backendErr   *llm.GenerationBackendError
		persistErr   *PersistenceError
	)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return metrics.OutcomeUnauthenticated
	case errors.As(err, &invalid):
		return metrics.OutcomeInvalid
	case errors.As(err, &insufficient):
		return metrics.OutcomeInsufficientCredits
	case errors.As(err, &backendErr):
		return metrics.OutcomeBackendError
	case errors.As(err, &persistErr):
		return metrics.OutcomePersistenceError
	default:
		return metrics.OutcomeInternalError
	}
}
