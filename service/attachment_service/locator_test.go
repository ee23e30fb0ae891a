package attachment_service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestContextLocator(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	locator := ContextLocator{Now: func() time.Time { return now }}
	options := LocationOptions{Timeout: DefaultLocationTimeout, MaxAge: DefaultLocationMaxAge}

	if _, err := locator.CurrentLocation(context.Background(), options); err == nil {
		t.Error("CurrentLocation() without a fix succeeded")
	}

	fresh := WithLocation(context.Background(), Location{Latitude: 1, Longitude: 2, Timestamp: now.Add(-5 * time.Second)})
	loc, err := locator.CurrentLocation(fresh, options)
	if err != nil || loc.Latitude != 1 || loc.Longitude != 2 {
		t.Errorf("CurrentLocation(fresh) = %+v, %v", loc, err)
	}

	stale := WithLocation(context.Background(), Location{Latitude: 1, Longitude: 2, Timestamp: now.Add(-11 * time.Second)})
	if _, err := locator.CurrentLocation(stale, options); err == nil {
		t.Error("CurrentLocation(stale) succeeded")
	}
}

func TestPipelineWithContextLocator(t *testing.T) {
	p := NewPipeline(nil, nil, nil, ContextLocator{})
	sender := &fakeSender{}

	err := p.ShareLocation(context.Background(), sender, group3, "", "")
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("ShareLocation() without fix error = %v", err)
	}

	ctx := WithLocation(context.Background(), Location{Latitude: 48.85, Longitude: 2.35, Timestamp: time.Now()})
	if err := p.ShareLocation(ctx, sender, group3, "", ""); err != nil {
		t.Fatalf("ShareLocation() failed: %v", err)
	}
	if len(sender.frames) != 1 {
		t.Errorf("sent %d frames", len(sender.frames))
	}
}

func TestFFmpegCompressorFailure(t *testing.T) {
	c := &FFmpegCompressor{Binary: "/nonexistent/ffmpeg", OutputDir: t.TempDir()}
	if _, err := c.Compress(context.Background(), PendingAttachment{LocalURI: "/tmp/in.mp4"}); err == nil {
		t.Error("Compress() with a missing binary succeeded")
	}
}
