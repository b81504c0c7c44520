package materializer_test

import (
	"context"
	"testing"
	"time"

	"github.com/benmeehan/signage-agent/internal/materializer"
	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/pkg/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		{MediaType: "video/mp4", MediaURL: "https://x/a.mp4", Length: models.Float(10)},
		{MediaType: "image/jpeg", MediaURL: "https://x/b.jpg", Length: models.Float(5)},
	}
}

func TestValidator_ReportsProgressAfterEachItem(t *testing.T) {
	v := materializer.NewValidator(clock.Real(), 0, zerolog.Nop())

	var progress [][2]int
	out, err := v.Materialize(context.Background(), sampleSnapshot(), func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)

	assert.True(t, out.Equal(sampleSnapshot()))
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
}

func TestValidator_KeepsInvalidItems(t *testing.T) {
	v := materializer.NewValidator(nil, 0, zerolog.Nop())
	candidate := models.Snapshot{{MediaType: "text/html"}}

	out, err := v.Materialize(context.Background(), candidate, nil)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestValidator_EmptyCandidateFails(t *testing.T) {
	v := materializer.NewValidator(nil, 0, zerolog.Nop())

	_, err := v.Materialize(context.Background(), models.Snapshot{}, nil)
	assert.ErrorIs(t, err, models.ErrMaterialization)
}

func TestValidator_ItemDelayUsesClock(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	v := materializer.NewValidator(fake, 500*time.Millisecond, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := v.Materialize(context.Background(), sampleSnapshot(), nil)
		done <- err
	}()

	fake.WaitForWaiters(1)
	fake.Advance(500 * time.Millisecond)
	fake.WaitForWaiters(1)
	fake.Advance(500 * time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("materialization did not finish")
	}
}

func TestValidator_CancelAbortsPass(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	v := materializer.NewValidator(fake, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := v.Materialize(ctx, sampleSnapshot(), nil)
		done <- err
	}()

	fake.WaitForWaiters(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, models.ErrMaterialization)
	case <-time.After(2 * time.Second):
		t.Fatal("materialization did not abort")
	}
}

func TestValidateItem(t *testing.T) {
	assert.Empty(t, materializer.ValidateItem(models.ContentItem{MediaType: "image/png", MediaURL: "https://x/a.png"}))
	assert.Len(t, materializer.ValidateItem(models.ContentItem{}), 2)
	assert.Contains(t, materializer.ValidateItem(models.ContentItem{MediaType: "audio/mp3", MediaURL: "u"}),
		"media_type is neither video nor image")
	assert.Contains(t, materializer.ValidateItem(models.ContentItem{MediaType: "image/png", MediaURL: "u", Length: models.Float(0)}),
		"length must be positive")
}
