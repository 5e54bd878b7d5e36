package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/pkg/secret"
)

func testBox() *secret.Box {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	return secret.NewBox(key)
}

func TestConfigFromSettings(t *testing.T) {
	box := testBox()
	sealed, err := box.Seal("hunter2")
	require.NoError(t, err)

	full := domain.SystemSettings{
		SMTPHost:           "smtp.example.com",
		SMTPPort:           587,
		SMTPUser:           "portal",
		SMTPPasswordSealed: sealed,
		SMTPFrom:           "Portal <portal@example.com>",
		SMTPUseTLS:         true,
	}

	cfg, err := ConfigFromSettings(full, box)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, 587, cfg.Port)
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)

	tests := []struct {
		name   string
		mutate func(*domain.SystemSettings)
		want   string
	}{
		{"no host", func(s *domain.SystemSettings) { s.SMTPHost = " " }, "host"},
		{"no user", func(s *domain.SystemSettings) { s.SMTPUser = "" }, "user"},
		{"no password", func(s *domain.SystemSettings) { s.SMTPPasswordSealed = "" }, "password"},
		{"no sender", func(s *domain.SystemSettings) { s.SMTPFrom = "" }, "sender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := full
			tt.mutate(&s)
			_, err := ConfigFromSettings(s, box)
			require.ErrorIs(t, err, ErrNotConfigured)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("default port", func(t *testing.T) {
		s := full
		s.SMTPPort = 0
		cfg, err := ConfigFromSettings(s, box)
		require.NoError(t, err)
		assert.Equal(t, 465, cfg.Port)
	})
}

func TestMessage_BuildWithAttachment(t *testing.T) {
	msg := Message{
		To:      []string{"ops@example.com"},
		Subject: "Выгрузка клиентов",
		HTML:    "<p>see attached</p>",
		Attachments: []Attachment{{
			Name:        "clients.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        []byte("PK\x03\x04fake"),
		}},
	}
	composed, err := msg.compose("Portal <portal@example.com>", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var raw bytes.Buffer
	_, err = composed.WriteTo(&raw)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(&raw)
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Выгрузка клиентов", subject)
	assert.Equal(t, "<ops@example.com>", parsed.Header.Get("To"))
	assert.Equal(t, `"Portal" <portal@example.com>`, parsed.Header.Get("From"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	htmlPart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Contains(t, decodePart(t, htmlPart), "see attached")

	filePart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "clients.xlsx", filePart.FileName())
	assert.Equal(t, "PK\x03\x04fake", decodePart(t, filePart))

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMessage_ComposeErrors(t *testing.T) {
	now := time.Now()
	_, err := Message{Subject: "x"}.compose("portal@example.com", now)
	assert.ErrorContains(t, err, "no recipients")

	_, err = TestMessage("a@example.com").compose("not an address", now)
	assert.ErrorContains(t, err, "sender")

	_, err = TestMessage("broken address").compose("portal@example.com", now)
	assert.ErrorContains(t, err, "recipients")
}

func decodePart(t *testing.T, p *multipart.Part) string {
	t.Helper()
	b, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, p))
	require.NoError(t, err)
	return string(b)
}

// fakeSMTP accepts one plain SMTP session and reports the DATA payload.
func fakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch strings.ToUpper(strings.Fields(line)[0]) {
			case "EHLO", "HELO":
				_ = tp.PrintfLine("250 localhost")
			case "MAIL", "RCPT", "NOOP", "RSET":
				_ = tp.PrintfLine("250 ok")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				got <- string(body)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unsupported")
			}
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port, got
}

func TestSender_SendPlain(t *testing.T) {
	host, port, got := fakeSMTP(t)
	s := NewSender(Config{
		Host:    host,
		Port:    port,
		From:    "Portal <portal@example.com>",
		Timeout: 5 * time.Second,
	})

	err := s.Send(context.Background(), TestMessage("admin@example.com"))
	require.NoError(t, err)

	select {
	case body := <-got:
		assert.Contains(t, body, "From: \"Portal\" <portal@example.com>")
		assert.Contains(t, body, "text/html")
		assert.Contains(t, body, "Subject: Support portal: SMTP test")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive the message")
	}
}

func TestSender_Errors(t *testing.T) {
	s := NewSender(Config{Host: "127.0.0.1", Port: 1, From: "portal@example.com", Timeout: time.Second})
	assert.Error(t, s.Send(context.Background(), Message{}))

	bad := NewSender(Config{Host: "127.0.0.1", Port: 1, From: "not an address", Timeout: time.Second})
	assert.Error(t, bad.Send(context.Background(), TestMessage("a@example.com")))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())
	closed := NewSender(Config{Host: "127.0.0.1", Port: addr.Port, From: "portal@example.com", Timeout: time.Second})
	err = closed.Send(context.Background(), TestMessage("a@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}
