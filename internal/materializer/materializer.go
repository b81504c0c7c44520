// Package materializer turns a candidate snapshot into one that is ready for
// display. The pass either completes for every item or fails as a unit.
package materializer

import (
	"context"
	"fmt"
	"time"

	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/pkg/clock"
	"github.com/rs/zerolog"
)

// Modes selectable in configuration.
const (
	ModeValidate = "validate"
	ModePrefetch = "prefetch"
)

// ProgressFunc receives the number of processed items after each item.
type ProgressFunc func(completed, total int)

// Materializer prepares a candidate snapshot for display.
type Materializer interface {
	Materialize(ctx context.Context, candidate models.Snapshot, onProgress ProgressFunc) (models.Snapshot, error)
}

// Validator checks every item and paces the pass with an optional per-item delay.
// Invalid items are logged and kept; the renderer skips what it cannot play.
type Validator struct {
	clock     clock.Clock
	itemDelay time.Duration
	logger    zerolog.Logger
}

// NewValidator creates a Validator. itemDelay may be zero.
func NewValidator(clk clock.Clock, itemDelay time.Duration, logger zerolog.Logger) *Validator {
	if clk == nil {
		clk = clock.Real()
	}
	return &Validator{clock: clk, itemDelay: itemDelay, logger: logger}
}

// Materialize validates each item in order.
func (v *Validator) Materialize(ctx context.Context, candidate models.Snapshot, onProgress ProgressFunc) (models.Snapshot, error) {
	return v.run(ctx, candidate, onProgress, nil)
}

// run walks the candidate, calling step (if any) on each item after validation.
func (v *Validator) run(ctx context.Context, candidate models.Snapshot, onProgress ProgressFunc,
	step func(ctx context.Context, index int, item models.ContentItem) error) (models.Snapshot, error) {

	if len(candidate) == 0 {
		return nil, fmt.Errorf("%w: no content items to process", models.ErrMaterialization)
	}

	total := len(candidate)
	v.logger.Info().Int("items", total).Msg("Processing content items")

	for i, item := range candidate {
		if err := v.pause(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMaterialization, err)
		}

		if problems := ValidateItem(item); len(problems) > 0 {
			v.logger.Warn().Int("index", i).Strs("problems", problems).Str("media_url", item.MediaURL).
				Msg("Content item is missing required properties")
		}

		if step != nil {
			if err := step(ctx, i, item); err != nil {
				return nil, fmt.Errorf("%w: item %d: %v", models.ErrMaterialization, i, err)
			}
		}

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	v.logger.Info().Int("items", total).Msg("Content items processing complete")
	return candidate.Clone(), nil
}

func (v *Validator) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.itemDelay <= 0 {
		return nil
	}

	timer := v.clock.NewTimer(v.itemDelay)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

// ValidateItem returns the list of problems with item, empty if none.
func ValidateItem(item models.ContentItem) []string {
	var problems []string
	if item.MediaURL == "" {
		problems = append(problems, "media_url is missing")
	}
	if item.MediaType == "" {
		problems = append(problems, "media_type is missing")
	} else if item.Kind() == models.MediaKindUnknown {
		problems = append(problems, "media_type is neither video nor image")
	}
	if item.Length != nil && *item.Length <= 0 {
		problems = append(problems, "length must be positive")
	}
	return problems
}
