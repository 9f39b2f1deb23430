package gateway

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/config"
	"bookings/entity"
)

func newCompletionCode() entity.SendCompletionCode {
	return entity.SendCompletionCode{
		BookingID:    "b-1",
		Email:        "alice@example.com",
		CustomerName: "Alice",
		ServiceName:  "Plumbing",
		Code:         "042917",
		ExpiresAt:    time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC),
	}
}

func renderMessage(t *testing.T, from string, cmd entity.SendCompletionCode) string {
	t.Helper()

	msg, err := completionCodeMessage(from, cmd)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	return buf.String()
}

func TestCompletionCodeMessage(t *testing.T) {
	cmd := newCompletionCode()

	msg := renderMessage(t, "no-reply@bookings.local", cmd)

	assert.Contains(t, msg, "From: <no-reply@bookings.local>\r\n")
	assert.Contains(t, msg, "To: <alice@example.com>\r\n")
	assert.Contains(t, msg, "Subject: Your completion code\r\n")
	assert.Contains(t, msg, "042917")
	assert.Contains(t, msg, "Mon, 02 Nov 2026 10:00:00 UTC")
	assert.Contains(t, msg, "b-1")

	cmd.ExpiresAt = time.Time{}
	assert.NotContains(t, renderMessage(t, "x@y.local", cmd), "valid until")
}

func TestCompletionCodeMessage_rejectsHeaderInjection(t *testing.T) {
	cmd := newCompletionCode()
	cmd.Email = "alice@example.com\r\nBcc: mallory@example.com"

	_, err := completionCodeMessage("no-reply@bookings.local", cmd)
	assert.Error(t, err)

	_, err = completionCodeMessage("no-reply@bookings.local\r\nBcc: mallory@example.com", newCompletionCode())
	assert.Error(t, err)
}

func TestNewMailer(t *testing.T) {
	assert.IsType(t, LogMailer{}, NewMailer(config.SMTP{}))
	assert.IsType(t, SMTPMailer{}, NewMailer(config.SMTP{Addr: "localhost:25", From: "x@y.local"}))
}

func TestNewSMTPMailer(t *testing.T) {
	m := NewSMTPMailer(config.SMTP{Addr: "mail.example.com:2525", From: "x@y.local"})
	assert.Equal(t, "mail.example.com", m.host)
	assert.Equal(t, 2525, m.port)
	assert.Equal(t, defaultSMTPTimeout, m.timeout)

	m = NewSMTPMailer(config.SMTP{Addr: "mail.example.com", From: "x@y.local", Timeout: time.Second})
	assert.Equal(t, 25, m.port)
	assert.Equal(t, time.Second, m.timeout)

	assert.Panics(t, func() { NewSMTPMailer(config.SMTP{Addr: "mail.example.com:smtp"}) })
}

func TestSMTPMailer_canceledContext(t *testing.T) {
	// nothing listens there, so the send can't finish before the context is canceled
	mailer := NewSMTPMailer(config.SMTP{Addr: "10.255.255.1:25", From: "x@y.local"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mailer.SendCompletionCode(ctx, newCompletionCode())
	require.ErrorIs(t, err, context.Canceled)
}

func TestSMTPMailer_silentServerTimesOut(t *testing.T) {
	// accepts connections but never sends the greeting
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = listener.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	mailer := NewSMTPMailer(config.SMTP{
		Addr:    listener.Addr().String(),
		From:    "no-reply@bookings.local",
		Timeout: 300 * time.Millisecond,
	})

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- mailer.SendCompletionCode(context.Background(), newCompletionCode())
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not give up on a silent server")
	}
}

func TestSMTPMailer_delivers(t *testing.T) {
	server := newFakeSMTPServer(t)

	mailer := NewSMTPMailer(config.SMTP{
		Addr:    server.addr,
		From:    "no-reply@bookings.local",
		Timeout: 5 * time.Second,
	})

	require.NoError(t, mailer.SendCompletionCode(context.Background(), newCompletionCode()))

	select {
	case data := <-server.messages:
		assert.Contains(t, data, "042917")
		assert.Contains(t, data, "Subject: Your completion code")
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	assert.Contains(t, strings.Join(server.recipients(), " "), "<alice@example.com>")
}

type fakeSMTPServer struct {
	addr     string
	messages chan string

	mu    sync.Mutex
	rcpts []string
}

func (s *fakeSMTPServer) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.rcpts...)
}

// newFakeSMTPServer speaks just enough SMTP to accept one plain text message per connection.
func newFakeSMTPServer(t *testing.T) *fakeSMTPServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = listener.Close()
	})

	server := &fakeSMTPServer{
		addr:     listener.Addr().String(),
		messages: make(chan string, 10),
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go server.serve(conn)
		}
	}()

	return server
}

func (s *fakeSMTPServer) serve(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	r := bufio.NewReader(conn)
	reply := func(line string) {
		_, _ = conn.Write([]byte(line + "\r\n"))
	}

	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		switch verb {
		case "EHLO", "HELO":
			reply("250 localhost")
		case "RCPT":
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.TrimPrefix(line, "RCPT TO:"))
			s.mu.Unlock()
			reply("250 OK")
		case "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(l)
			}
			s.messages <- data.String()
			reply("250 OK")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}
