package media

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// MailSender is the outbound transport primitive every mail-backed medium
// sends through. Implementations must be safe for concurrent use.
type MailSender interface {
	SendMail(ctx context.Context, subject, body string, recipients []string) error
}

// SMTPConfig holds SMTP transport configuration.
type SMTPConfig struct {
	Host     string        // SMTP server host
	Port     int           // SMTP server port (465 for implicit TLS, 587 for STARTTLS)
	Username string        // SMTP username (optional)
	Password string        // SMTP password (optional)
	From     string        // From address
	Timeout  time.Duration // per-call timeout (default 30s)
	RateRPS  float64       // outbound calls per second (0 disables limiting)
}

// Validate validates the transport configuration.
func (c *SMTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if c.From == "" {
		return fmt.Errorf("from address is required")
	}
	return nil
}

// SMTPSender sends mail via SMTP. A hanging server is bounded by the
// per-call timeout so one stuck recipient cannot stall a whole dispatch.
type SMTPSender struct {
	config  SMTPConfig
	limiter *rate.Limiter
}

// NewSMTPSender creates an SMTP transport.
func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SMTP config: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if config.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateRPS), 1)
	}

	return &SMTPSender{config: config, limiter: limiter}, nil
}

// SendMail sends one plain-text message to the given recipients.
func (s *SMTPSender) SendMail(ctx context.Context, subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	msg := s.buildMessage(subject, body, recipients)
	return s.send(ctx, msg, recipients)
}

// buildMessage builds a plain-text RFC 5322 message.
func (s *SMTPSender) buildMessage(subject, body string, recipients []string) []byte {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	return []byte(msg.String())
}

// send delivers the message via SMTP.
func (s *SMTPSender) send(ctx context.Context, msg []byte, recipients []string) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	tlsConfig := &tls.Config{
		ServerName: s.config.Host,
	}

	var client *smtp.Client
	var err error

	if s.config.Port == 465 {
		// Implicit TLS (SMTPS)
		client, err = s.connectImplicitTLS(ctx, addr, tlsConfig)
	} else {
		// STARTTLS (port 587 or 25)
		client, err = s.connectSTARTTLS(ctx, addr, tlsConfig)
	}
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer client.Close()

	if s.config.Username != "" && s.config.Password != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(extractEmail(s.config.From)); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}

	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("add recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

// connectImplicitTLS connects using implicit TLS (port 465).
func (s *SMTPSender) connectImplicitTLS(ctx context.Context, addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
	dialer := &tls.Dialer{Config: tlsConfig}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	return smtp.NewClient(conn, s.config.Host)
}

// connectSTARTTLS connects using STARTTLS (port 587 or 25).
func (s *SMTPSender) connectSTARTTLS(ctx context.Context, addr string, tlsConfig *tls.Config) (*smtp.Client, error) {
	dialer := &net.Dialer{}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	return client, nil
}

// extractEmail extracts the address from a "Name <email>" format.
func extractEmail(addr string) string {
	if start := strings.Index(addr, "<"); start != -1 {
		if end := strings.Index(addr, ">"); end != -1 {
			return addr[start+1 : end]
		}
	}
	return addr
}
