package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Asteroidea-tn/astrocarver/pkg/astrosend"
)

type watchOptions struct {
	Interval     time.Duration
	RetryDelay   time.Duration
	DropRejected bool
}

// watch triggers a capture every interval and keeps delivering until ctx ends.
// A failed delivery is retried after RetryDelay; the envelope stays at the head
// of the queue meanwhile. Envelopes the collector rejects outright (4xx) are
// dropped only when DropRejected is set. watch returns after the trigger loop
// has stopped, so no capture is scheduled once it returns.
func (p *pipeline) watch(ctx context.Context, opts watchOptions) error {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.triggerLoop(ctx, opts.Interval)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		_, err := p.orch.RunOneDeliveryCycle(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		var terr *astrosend.TransmitError
		if errors.As(err, &terr) && !terr.Retryable() && opts.DropRejected {
			p.log.Error().Err(err).Msg("Collector rejected envelope, dropping it")
			if ackErr := p.orch.Queue().Acknowledge(); ackErr != nil {
				p.log.Warn().Err(ackErr).Msg("Failed to drop rejected envelope")
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.RetryDelay):
		}
	}
}

func (p *pipeline) triggerLoop(ctx context.Context, interval time.Duration) {
	if ctx.Err() != nil {
		return
	}
	p.trigger()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			p.trigger()
		}
	}
}
