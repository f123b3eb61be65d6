package astronotify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"gopkg.in/gomail.v2"
)

type sentMail struct {
	from string
	to   []string
	raw  string
}

func newTestService(t *testing.T) (*mailService, *[]sentMail, *time.Time) {
	t.Helper()
	svc, ok := NewService(Config{
		Host: "smtp.example.com",
		User: "alerts@example.com",
		To:   []string{"ops@example.com"},
	}).(*mailService)
	if !ok {
		t.Fatal("expected mail service when host and recipients are set")
	}

	var sent []sentMail
	sender := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		var buf bytes.Buffer
		if _, err := msg.WriteTo(&buf); err != nil {
			return err
		}
		sent = append(sent, sentMail{from: from, to: to, raw: buf.String()})
		return nil
	})
	svc.send = func(m ...*gomail.Message) error { return gomail.Send(sender, m...) }

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &sent, &now
}

func TestNewService_NoopWithoutConfig(t *testing.T) {
	if _, ok := NewService(Config{}).(noopService); !ok {
		t.Fatal("expected noop service without host")
	}
	if _, ok := NewService(Config{Host: "smtp.example.com"}).(noopService); !ok {
		t.Fatal("expected noop service without recipients")
	}
	svc := NewService(Config{})
	if err := svc.NotifyCaptureFailed(context.Background(), "cam1", errors.New("x")); err != nil {
		t.Fatalf("noop returned %v", err)
	}
}

func TestMailService_DeliveryFailure(t *testing.T) {
	svc, sent, _ := newTestService(t)

	err := svc.NotifyDeliveryFailed(context.Background(), "https://collector/upload", 1050, errors.New("503"))
	if err != nil {
		t.Fatalf("NotifyDeliveryFailed failed: %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(*sent))
	}
	mail := (*sent)[0]
	if mail.from != "alerts@example.com" {
		t.Fatalf("expected From to default to user, got %q", mail.from)
	}
	if len(mail.to) != 1 || mail.to[0] != "ops@example.com" {
		t.Fatalf("unexpected recipients %v", mail.to)
	}
	for _, want := range []string{"delivery to collector failed", "https://collector/upload", "1050 ms"} {
		if !strings.Contains(mail.raw, want) {
			t.Errorf("expected %q in mail:\n%s", want, mail.raw)
		}
	}
}

func TestMailService_RateLimitedPerKind(t *testing.T) {
	svc, sent, now := newTestService(t)
	ctx := context.Background()

	_ = svc.NotifyCaptureFailed(ctx, "cam1", errors.New("empty frame"))
	_ = svc.NotifyCaptureFailed(ctx, "cam1", errors.New("empty frame"))
	if len(*sent) != 1 {
		t.Fatalf("expected repeated capture failure to be suppressed, got %d mails", len(*sent))
	}

	_ = svc.NotifyDeliveryFailed(ctx, "http://c", 1, errors.New("refused"))
	if len(*sent) != 2 {
		t.Fatalf("expected delivery failure to use its own budget, got %d mails", len(*sent))
	}

	*now = now.Add(16 * time.Minute)
	_ = svc.NotifyCaptureFailed(ctx, "cam1", errors.New("empty frame"))
	if len(*sent) != 3 {
		t.Fatalf("expected capture failure mail after interval, got %d mails", len(*sent))
	}
}
