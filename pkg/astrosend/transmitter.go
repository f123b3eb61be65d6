package astrosend

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Asteroidea-tn/astrocarver/pkg/astroenvelope"
)

const (
	defaultTimeout = 30 * time.Second
	maxReasonBytes = 512
)

// HTTPDoer describes the HTTP client used to reach the collector.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	URL                string
	Token              string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Ack confirms that the collector accepted an envelope.
type Ack struct {
	StatusCode int
	AttemptID  string
	Elapsed    time.Duration
}

// Transmitter posts envelopes to a collector, one attempt per Send.
type Transmitter struct {
	url       string
	token     string
	client    HTTPDoer
	transport *http.Transport
}

// New builds a transmitter that owns its HTTP transport for the life of the
// process. Close releases it.
func New(cfg Config) (*Transmitter, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("collector url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("collector url %q must be http or https", url)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		log.Warn().Str("url", url).Msg("TLS certificate verification disabled for collector")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Transmitter{
		url:       url,
		token:     strings.TrimSpace(cfg.Token),
		client:    &http.Client{Transport: transport, Timeout: timeout},
		transport: transport,
	}, nil
}

// NewWithClient builds a transmitter around an existing client.
func NewWithClient(url, token string, client HTTPDoer) *Transmitter {
	return &Transmitter{
		url:    strings.TrimSpace(url),
		token:  strings.TrimSpace(token),
		client: client,
	}
}

// URL returns the collector endpoint.
func (t *Transmitter) URL() string { return t.url }

// Send performs exactly one delivery attempt. It never retries; a
// *TransmitError tells the caller why the attempt failed.
func (t *Transmitter) Send(ctx context.Context, env astroenvelope.Envelope) (Ack, error) {
	attemptID := uuid.NewString()

	body, err := env.Bytes()
	if err != nil {
		return Ack{}, &TransmitError{URL: t.url, AttemptID: attemptID, Reason: "serialize envelope", Err: err, permanent: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return Ack{}, &TransmitError{URL: t.url, AttemptID: attemptID, Reason: "build request", Err: err, permanent: true}
	}
	req.Header.Set("Content-Type", astroenvelope.ContentType)
	req.Header.Set("X-Attempt-ID", attemptID)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	started := time.Now()
	resp, err := t.client.Do(req)
	elapsed := time.Since(started)
	if err != nil {
		return Ack{}, &TransmitError{URL: t.url, AttemptID: attemptID, Reason: "post envelope", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
		reason := fmt.Sprintf("collector returned %s", resp.Status)
		if s := strings.TrimSpace(string(snippet)); s != "" {
			reason += ": " + s
		}
		return Ack{}, &TransmitError{URL: t.url, AttemptID: attemptID, StatusCode: resp.StatusCode, Reason: reason}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Debug().
		Str("attempt_id", attemptID).
		Uint32("timestamp_ms", env.TimestampMs()).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("Envelope delivered")

	return Ack{StatusCode: resp.StatusCode, AttemptID: attemptID, Elapsed: elapsed}, nil
}

// Close drops idle connections. Call it once at shutdown.
func (t *Transmitter) Close() {
	if t.transport != nil {
		t.transport.CloseIdleConnections()
	}
}
