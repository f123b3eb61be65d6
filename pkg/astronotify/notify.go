// Package astronotify e-mails pipeline failures to an operator.
//
// When no SMTP relay or recipient is configured NewService returns a no-op
// implementation, so callers never need to check whether mail is enabled.
package astronotify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

const defaultMinInterval = 15 * time.Minute

type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	To          []string
	MinInterval time.Duration // per event kind, 0 = 15m
}

// Service reports failures that no caller is waiting on.
type Service interface {
	NotifyCaptureFailed(ctx context.Context, cameraID string, err error) error
	NotifyDeliveryFailed(ctx context.Context, url string, timestampMs uint32, err error) error
}

// NewService returns a mail-backed service, or a no-op when mail is not configured.
func NewService(cfg Config) Service {
	if strings.TrimSpace(cfg.Host) == "" || len(cfg.To) == 0 {
		return noopService{}
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &mailService{
		cfg:  cfg,
		send: d.DialAndSend,
		now:  time.Now,
		last: make(map[string]time.Time),
	}
}

type noopService struct{}

func (noopService) NotifyCaptureFailed(context.Context, string, error) error { return nil }

func (noopService) NotifyDeliveryFailed(context.Context, string, uint32, error) error { return nil }

type mailService struct {
	cfg  Config
	send func(m ...*gomail.Message) error
	now  func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func (s *mailService) NotifyCaptureFailed(ctx context.Context, cameraID string, err error) error {
	subject := fmt.Sprintf("[astrocarver] capture failed on %s", cameraID)
	body := fmt.Sprintf("Camera: %s\nTime: %s\nError: %v\n", cameraID, s.now().Format(time.RFC3339), err)
	return s.deliver(ctx, "capture", subject, body)
}

func (s *mailService) NotifyDeliveryFailed(ctx context.Context, url string, timestampMs uint32, err error) error {
	subject := "[astrocarver] delivery to collector failed"
	body := fmt.Sprintf("Collector: %s\nFrame timestamp: %d ms\nTime: %s\nError: %v\n\nThe frame is kept for the next attempt.\n",
		url, timestampMs, s.now().Format(time.RFC3339), err)
	return s.deliver(ctx, "delivery", subject, body)
}

func (s *mailService) deliver(ctx context.Context, kind, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.allow(kind) {
		log.Debug().Str("kind", kind).Msg("Notification suppressed, sent one recently")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("send %s notification: %w", kind, err)
	}
	return nil
}

// allow rate limits each kind to one mail per MinInterval.
func (s *mailService) allow(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.last[kind]; ok && now.Sub(last) < s.cfg.MinInterval {
		return false
	}
	s.last[kind] = now
	return true
}
