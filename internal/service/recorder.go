package service

import (
	"artsheets/internal/catalog"
	"artsheets/internal/entity"
	"artsheets/internal/llm"
	"artsheets/internal/quota"
	"context"
	"errors"
	"fmt"
	"time"
)

// SheetStore persists a batch of sheets together with the commit of the
// reservation that paid for it.
type SheetStore interface {
	CommitSheets(ctx context.Context, reservationID string, sheets []entity.DbSheet, at time.Time) (bool, error)
}

// Recorder turns generated images into Sheet rows.
type Recorder struct {
	store SheetStore
	now   func() time.Time
}

func NewRecorder(store SheetStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record stores one sheet per image and commits the reservation in the same
// transaction. Each sheet is titled after the theme, the sub theme and its
// position in the batch. A reservation that was already resolved, for example
// released by the sweeper, stores nothing and yields a PersistenceError.
func (r *Recorder) Record(ctx context.Context, userID uint, reservationID string, spec catalog.Spec, images []llm.GeneratedImage) ([]entity.DbSheet, error) {
	if len(images) == 0 {
		return nil, &PersistenceError{Cause: errors.New("no generated images to record")}
	}

	sheets := make([]entity.DbSheet, 0, len(images))
	for _, img := range images {
		sheets = append(sheets, entity.DbSheet{
			UserID:              userID,
			BatchOrdinal:        img.Ordinal,
			Title:               catalog.SheetTitle(spec.Theme, spec.SubTheme, img.Ordinal),
			Technique:           string(spec.Technique),
			Theme:               string(spec.Theme),
			SubTheme:            spec.SubTheme,
			AgeGroup:            string(spec.AgeGroup),
			Prompt:              img.Prompt,
			ImagePath:           img.ImagePath,
			ThumbnailPath:       img.ThumbnailPath,
			Complexity:          spec.Complexity,
			Difficulty:          spec.Difficulty,
			PaperSize:           string(spec.PaperSize),
			Orientation:         string(spec.Orientation),
			IncludeInstructions: spec.IncludeInstructions,
			IncludeWatermark:    spec.IncludeWatermark,
		})
	}

	committed, err := r.store.CommitSheets(ctx, reservationID, sheets, r.now())
	if err != nil {
		return nil, &PersistenceError{Cause: err, GeneratedCount: len(images)}
	}
	if !committed {
		return nil, &PersistenceError{
			Cause:          fmt.Errorf("reservation %s: %w", reservationID, quota.ErrReservationResolved),
			GeneratedCount: len(images),
		}
	}
	return sheets, nil
}
