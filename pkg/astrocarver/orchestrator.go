// Package astrocarver runs the capture-to-collector pipeline.
//
// Captures run on a small fixed pool of workers and push envelopes onto a
// hand-off queue. Delivery runs on the caller's goroutine, one attempt per
// RunOneDeliveryCycle, and removes the head of the queue only when the collector
// confirmed it. The two flows are independent: a delivery cycle waits for
// whatever capture finishes first.
package astrocarver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Asteroidea-tn/astrocarver/pkg/astrocapture"
	"github.com/Asteroidea-tn/astrocarver/pkg/astroenvelope"
	"github.com/Asteroidea-tn/astrocarver/pkg/astroqueue"
	"github.com/Asteroidea-tn/astrocarver/pkg/astrosend"
)

var (
	ErrBacklogFull = errors.New("capture backlog is full")
	ErrClosed      = errors.New("orchestrator is closed")
)

const (
	defaultWorkers = 2
	defaultBacklog = 16
)

// Capturer reads a frame from the camera.
type Capturer interface {
	Capture(ctx context.Context) (astrocapture.RawFrame, error)
}

// Encoder turns a frame into an envelope.
type Encoder interface {
	Encode(frame astrocapture.RawFrame) (astroenvelope.Envelope, error)
}

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, env astroenvelope.Envelope) (astrosend.Ack, error)
}

// CaptureResult is the outcome of one capture cycle.
type CaptureResult struct {
	ID       string
	Envelope astroenvelope.Envelope
	Snapshot string
	Err      error
}

type Options struct {
	CameraID    string
	Workers     int
	Backlog     int
	SnapshotDir string

	// OnCaptureResult sees every capture outcome, including ones nobody waits on.
	OnCaptureResult func(CaptureResult)
	// OnDeliveryFailure sees every failed delivery attempt.
	OnDeliveryFailure func(env astroenvelope.Envelope, err error)
}

type captureJob struct {
	id     string
	result chan CaptureResult
}

// Orchestrator connects a Capturer and Encoder to a Sender through a queue.
type Orchestrator struct {
	opts    Options
	source  Capturer
	encoder Encoder
	sender  Sender
	queue   *astroqueue.Queue[astroenvelope.Envelope]

	mu     sync.RWMutex
	closed bool
	jobs   chan captureJob
	wg     sync.WaitGroup
}

// New starts the capture workers.
func New(opts Options, source Capturer, encoder Encoder, sender Sender, queue *astroqueue.Queue[astroenvelope.Envelope]) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Backlog <= 0 {
		opts.Backlog = defaultBacklog
	}
	if queue == nil {
		queue = astroqueue.New[astroenvelope.Envelope]()
	}

	o := &Orchestrator{
		opts:    opts,
		source:  source,
		encoder: encoder,
		sender:  sender,
		queue:   queue,
		jobs:    make(chan captureJob, opts.Backlog),
	}
	for i := 0; i < opts.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	return o
}

// Queue exposes the hand-off queue.
func (o *Orchestrator) Queue() *astroqueue.Queue[astroenvelope.Envelope] {
	return o.queue
}

// TriggerCapture schedules one capture cycle and returns at once. The returned
// channel receives exactly one result.
func (o *Orchestrator) TriggerCapture() <-chan CaptureResult {
	job := captureJob{id: uuid.NewString(), result: make(chan CaptureResult, 1)}

	var err error
	o.mu.RLock()
	if o.closed {
		err = ErrClosed
	} else {
		select {
		case o.jobs <- job:
		default:
			err = ErrBacklogFull
		}
	}
	o.mu.RUnlock()

	if err != nil {
		o.finish(job, CaptureResult{ID: job.id, Err: err})
		return job.result
	}
	log.Debug().Str("capture_id", job.id).Msg("Capture scheduled")
	return job.result
}

// RunOneDeliveryCycle waits for an envelope, makes one delivery attempt, and
// acknowledges it on success. On failure the envelope stays at the head of the
// queue and the sender's error is returned as is.
func (o *Orchestrator) RunOneDeliveryCycle(ctx context.Context) (astrosend.Ack, error) {
	env, err := o.queue.PopBlockingContext(ctx)
	if err != nil {
		return astrosend.Ack{}, err
	}

	ack, err := o.sender.Send(ctx, env)
	if err != nil {
		log.Warn().
			Err(err).
			Uint32("timestamp_ms", env.TimestampMs()).
			Int("pending", o.queue.Len()).
			Msg("Delivery failed, envelope retained")
		if o.opts.OnDeliveryFailure != nil {
			o.opts.OnDeliveryFailure(env, err)
		}
		return astrosend.Ack{}, err
	}

	if err := o.queue.Acknowledge(); err != nil {
		return ack, fmt.Errorf("acknowledge delivered envelope: %w", err)
	}

	log.Info().
		Uint32("timestamp_ms", env.TimestampMs()).
		Str("attempt_id", ack.AttemptID).
		Int("status", ack.StatusCode).
		Int("pending", o.queue.Len()).
		Msg("Envelope delivered")
	return ack, nil
}

// Close stops accepting captures and waits for scheduled ones to finish.
// The queue is left open so pending envelopes can still be delivered.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.jobs)
	o.mu.Unlock()

	o.wg.Wait()
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for job := range o.jobs {
		o.finish(job, o.runCapture(job.id))
	}
}

// runCapture is one capture-encode-enqueue cycle.
func (o *Orchestrator) runCapture(id string) CaptureResult {
	res := CaptureResult{ID: id}

	frame, err := o.source.Capture(context.Background())
	if err != nil {
		res.Err = err
		return res
	}

	env, err := o.encoder.Encode(frame)
	if err != nil {
		res.Err = err
		return res
	}
	res.Envelope = env

	if o.opts.SnapshotDir != "" {
		res.Snapshot = o.saveSnapshot(env)
	}

	if err := o.queue.Push(env); err != nil {
		res.Err = fmt.Errorf("enqueue envelope: %w", err)
		return res
	}
	return res
}

func (o *Orchestrator) saveSnapshot(env astroenvelope.Envelope) string {
	data, err := env.Image()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to decode snapshot")
		return ""
	}
	stamp := fmt.Sprintf("%s_%d", strings.ReplaceAll(env.DateTime(), " ", "-"), env.TimestampMs())
	path, err := astrocapture.SaveSnapshot(o.opts.SnapshotDir, o.cameraID(), stamp, data)
	if err != nil {
		log.Warn().Err(err).Str("dir", o.opts.SnapshotDir).Msg("Failed to save snapshot")
		return ""
	}
	return path
}

func (o *Orchestrator) finish(job captureJob, res CaptureResult) {
	ev := log.Debug()
	if res.Err != nil {
		ev = log.Error().Err(res.Err)
	} else {
		ev = ev.Uint32("timestamp_ms", res.Envelope.TimestampMs())
	}
	ev.Str("capture_id", res.ID).Str("camera", o.cameraID()).Msg("Capture cycle finished")

	if o.opts.OnCaptureResult != nil {
		o.opts.OnCaptureResult(res)
	}
	job.result <- res
}

func (o *Orchestrator) cameraID() string {
	if o.opts.CameraID == "" {
		return "camera"
	}
	return o.opts.CameraID
}

// WaitCapture blocks for a capture result or until ctx ends.
func WaitCapture(ctx context.Context, results <-chan CaptureResult) (CaptureResult, error) {
	select {
	case res := <-results:
		return res, res.Err
	case <-ctx.Done():
		return CaptureResult{}, ctx.Err()
	}
}
