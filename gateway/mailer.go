package gateway

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"bookings/config"
	"bookings/entity"
)

const defaultSMTPTimeout = 15 * time.Second

// NewMailer returns an SMTP mailer, or a mailer that only logs when no server is configured.
func NewMailer(cfg config.SMTP) Mailer {
	if cfg.Addr == "" {
		return LogMailer{}
	}

	return NewSMTPMailer(cfg)
}

type Mailer interface {
	SendCompletionCode(ctx context.Context, command entity.SendCompletionCode) error
}

type SMTPMailer struct {
	host     string
	port     int
	from     string
	username string
	password string
	timeout  time.Duration
}

func NewSMTPMailer(cfg config.SMTP) SMTPMailer {
	if cfg.Addr == "" {
		panic("missing smtp addr")
	}

	host, port := cfg.Addr, 25
	if h, p, err := net.SplitHostPort(cfg.Addr); err == nil {
		host = h
		port, err = strconv.Atoi(p)
		if err != nil {
			panic(fmt.Sprintf("invalid smtp port %q", p))
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	return SMTPMailer{
		host:     host,
		port:     port,
		from:     cfg.From,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  timeout,
	}
}

// SendCompletionCode delivers the code within the mailer timeout. The whole SMTP exchange
// shares one deadline, a server that stops answering can't hold the caller.
func (m SMTPMailer) SendCompletionCode(ctx context.Context, command entity.SendCompletionCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := completionCodeMessage(m.from, command)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(m.timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTimeout(m.timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(deadlineDialer(ctx, deadline)),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("could not create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("could not send mail to %s: %w", command.Email, ctxErr)
		}
		return fmt.Errorf("could not send mail to %s: %w", command.Email, err)
	}

	return nil
}

// deadlineDialer bounds every read and write of the connection by the deadline and cuts
// pending I/O short once sendCtx is done.
func deadlineDialer(sendCtx context.Context, deadline time.Time) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}

		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}

		go func() {
			<-sendCtx.Done()
			_ = conn.SetDeadline(time.Unix(1, 0))
		}()

		return conn, nil
	}
}

// LogMailer is used in development. It logs the code instead of delivering it.
type LogMailer struct{}

func (LogMailer) SendCompletionCode(ctx context.Context, command entity.SendCompletionCode) error {
	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": command.BookingID,
		"email":      command.Email,
		"code":       command.Code,
	}).Warn("SMTP is not configured, completion code only logged")

	return nil
}

func completionCodeMessage(from string, command entity.SendCompletionCode) (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithEncoding(mail.NoEncoding))

	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(command.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject("Your completion code")
	msg.SetDate()

	body := fmt.Sprintf("Hello %s,\r\n\r\n", command.CustomerName)
	body += fmt.Sprintf("your provider marked %q as done. Share this code with them to complete the booking:\r\n\r\n", command.ServiceName)
	body += fmt.Sprintf("    %s\r\n\r\n", command.Code)
	if !command.ExpiresAt.IsZero() {
		body += fmt.Sprintf("The code is valid until %s.\r\n", command.ExpiresAt.UTC().Format(time.RFC1123))
	}
	body += fmt.Sprintf("Booking reference: %s\r\n", command.BookingID)

	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}
