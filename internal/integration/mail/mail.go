// Package mail sends portal mail (test messages, exported workbooks) over SMTP.
//
// Three transport modes follow the system settings: implicit TLS (SSL),
// mandatory STARTTLS, or plain SMTP.
//
// Import Path: supportportal.io/portal/internal/integration/mail
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/pkg/secret"
)

// DefaultTimeout bounds connect and the whole SMTP conversation.
const DefaultTimeout = 10 * time.Second

// ErrNotConfigured is returned when a required SMTP setting is empty.
var ErrNotConfigured = errors.New("mail: smtp is not configured")

// Config is a resolved SMTP endpoint with the password already opened.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	UseSSL   bool
	UseTLS   bool
	Timeout  time.Duration
}

// ConfigFromSettings resolves the stored settings. The returned error wraps
// ErrNotConfigured and names the first missing setting.
func ConfigFromSettings(s domain.SystemSettings, box *secret.Box) (Config, error) {
	cfg := Config{
		Host:    strings.TrimSpace(s.SMTPHost),
		Port:    s.SMTPPort,
		User:    strings.TrimSpace(s.SMTPUser),
		From:    strings.TrimSpace(s.SMTPFrom),
		UseSSL:  s.SMTPUseSSL,
		UseTLS:  s.SMTPUseTLS,
		Timeout: DefaultTimeout,
	}
	switch {
	case cfg.Host == "":
		return cfg, fmt.Errorf("%w: smtp host is empty", ErrNotConfigured)
	case cfg.User == "":
		return cfg, fmt.Errorf("%w: smtp user is empty", ErrNotConfigured)
	case s.SMTPPasswordSealed == "":
		return cfg, fmt.Errorf("%w: smtp password is empty", ErrNotConfigured)
	case cfg.From == "":
		return cfg, fmt.Errorf("%w: sender address is empty", ErrNotConfigured)
	}
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	password, err := box.Open(s.SMTPPasswordSealed)
	if err != nil {
		return cfg, fmt.Errorf("open smtp password: %w", err)
	}
	cfg.Password = password
	return cfg, nil
}

// Attachment is a file carried by a Message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is an HTML mail with optional attachments.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// compose renders m as a go-mail message from the given sender.
func (m Message) compose(from string, now time.Time) (*gomail.Msg, error) {
	if len(m.To) == 0 {
		return nil, errors.New("mail: no recipients")
	}
	msg := gomail.NewMsg(gomail.WithEncoding(gomail.EncodingB64))
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetDateWithValue(now)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)

	for _, a := range m.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		err := msg.AttachReader(a.Name, bytes.NewReader(a.Data),
			gomail.WithFileContentType(gomail.ContentType(ct)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return msg, nil
}

// Sender delivers messages through one SMTP endpoint.
type Sender struct {
	cfg Config
	now func() time.Time
}

// NewSender creates a Sender. A zero timeout means DefaultTimeout.
func NewSender(cfg Config) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Sender{cfg: cfg, now: time.Now}
}

// Send delivers msg. The context deadline, when earlier than the configured
// timeout, bounds the conversation.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	m, err := msg.compose(s.cfg.From, s.now())
	if err != nil {
		return err
	}
	client, err := gomail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("connect %s:%d: %w", s.cfg.Host, s.cfg.Port, err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Send(m); err != nil {
		return fmt.Errorf("send to %s: %w", strings.Join(msg.To, ", "), err)
	}
	return nil
}

func (s *Sender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSConfig(&tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}),
	}
	switch {
	case s.cfg.UseSSL:
		opts = append(opts, gomail.WithSSL())
	case s.cfg.UseTLS:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if s.cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.User),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return append(opts, gomail.WithPort(s.cfg.Port))
}

// TestMessage is the body sent by the settings page "send test email" action.
func TestMessage(to string) Message {
	return Message{
		To:      []string{to},
		Subject: "Support portal: SMTP test",
		HTML: "<html><body><h3>SMTP settings work</h3>" +
			"<p>This message was sent from the support portal settings page.</p></body></html>",
	}
}
