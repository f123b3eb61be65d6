package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Asteroidea-tn/astrocarver/pkg/astrocapture"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrocarver"
	"github.com/Asteroidea-tn/astrocarver/pkg/astroenvelope"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrolog"
	"github.com/Asteroidea-tn/astrocarver/pkg/astronotify"
	"github.com/Asteroidea-tn/astrocarver/pkg/astroqueue"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrosend"
)

// pipeline owns the process-wide resources: the capture session, the
// transmitter's transport and the worker pool. It is built once and closed once.
type pipeline struct {
	orch     *astrocarver.Orchestrator
	tx       *astrosend.Transmitter
	notifier astronotify.Service
	log      zerolog.Logger

	// trigger schedules a capture; it is orch.TriggerCapture unless replaced in tests.
	trigger func() <-chan astrocarver.CaptureResult
}

func newPipeline(cfg *Config, url string, source astrocarver.Capturer) (*pipeline, error) {
	tx, err := astrosend.New(cfg.sendConfig(url))
	if err != nil {
		return nil, err
	}

	if source == nil {
		camCfg, err := cfg.captureConfig()
		if err != nil {
			tx.Close()
			return nil, err
		}
		source = astrocapture.OpenSource(camCfg)
	}

	p := &pipeline{
		tx:       tx,
		notifier: astronotify.NewService(cfg.notifyConfig()),
	}
	p.log = astrolog.GetLogger().With().
		Str("component", "pipeline").
		Str("camera", cfg.Capture.ID).
		Logger()

	p.orch = astrocarver.New(astrocarver.Options{
		CameraID:          cfg.Capture.ID,
		Workers:           cfg.Pipeline.Workers,
		Backlog:           cfg.Pipeline.Backlog,
		SnapshotDir:       cfg.Capture.SnapshotDir,
		OnCaptureResult:   p.onCaptureResult(cfg.Capture.ID),
		OnDeliveryFailure: p.onDeliveryFailure,
	}, source, cfg.encoder(), tx, astroqueue.New[astroenvelope.Envelope]())
	p.trigger = p.orch.TriggerCapture

	return p, nil
}

func (p *pipeline) onCaptureResult(cameraID string) func(astrocarver.CaptureResult) {
	return func(res astrocarver.CaptureResult) {
		if res.Err == nil || errors.Is(res.Err, astrocarver.ErrClosed) {
			return
		}
		if err := p.notifier.NotifyCaptureFailed(context.Background(), cameraID, res.Err); err != nil {
			p.log.Warn().Err(err).Msg("Failed to send capture failure notification")
		}
	}
}

func (p *pipeline) onDeliveryFailure(env astroenvelope.Envelope, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if nerr := p.notifier.NotifyDeliveryFailed(context.Background(), p.tx.URL(), env.TimestampMs(), err); nerr != nil {
		p.log.Warn().Err(nerr).Msg("Failed to send delivery failure notification")
	}
}

// runOnce triggers one capture and runs one delivery cycle. If the capture fails
// the delivery cycle is released instead of waiting for an envelope that will
// never arrive.
func (p *pipeline) runOnce(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	captured := make(chan astrocarver.CaptureResult, 1)
	results := p.trigger()
	go func() {
		res := <-results
		if res.Err != nil {
			cancel()
		}
		captured <- res
	}()

	ack, sendErr := p.orch.RunOneDeliveryCycle(ctx)
	res := <-captured

	if res.Err != nil {
		return fmt.Errorf("capture: %w", res.Err)
	}
	if sendErr != nil {
		return fmt.Errorf("delivery: %w", sendErr)
	}

	p.log.Info().
		Str("attempt_id", ack.AttemptID).
		Uint32("timestamp_ms", res.Envelope.TimestampMs()).
		Str("date_time", res.Envelope.DateTime()).
		Msg("Frame delivered")
	return nil
}

func (p *pipeline) Close() {
	p.orch.Close()
	p.tx.Close()
}
