// Package mailx delivers out-of-band notifications over SMTP. The only
// caller today is the decryption-code exchange, which emails a 6-digit code
// to a file recipient.
package mailx

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
)

// Transport sends a plain-text message to a single recipient.
type Transport interface {
	Send(to, subject, body string) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
}

// SMTPMailer implements Transport over net/smtp. The connection mode follows
// the port convention: 465 uses implicit TLS, 587 and 25 use STARTTLS,
// anything else connects in the clear (local relays, test servers).
type SMTPMailer struct {
	cfg Config
}

// NewSMTPMailer constructs a mailer from config. The from address and host
// are required.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, fmt.Errorf("smtp host/port not configured")
	}
	if cfg.FromAddr == "" {
		cfg.FromAddr = cfg.Username
	}
	if cfg.FromAddr == "" {
		return nil, fmt.Errorf("smtp from address not configured")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send composes an RFC 5322 message and dispatches it.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := BuildMessage(m.cfg, to, subject, body)
	addr := m.cfg.Host + ":" + m.cfg.Port

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	switch m.cfg.Port {
	case "465":
		return m.sendWithTLS(addr, auth, to, msg)
	case "587", "25":
		return m.sendWithStartTLS(addr, auth, to, msg)
	default:
		return smtp.SendMail(addr, auth, m.cfg.FromAddr, []string{to}, msg)
	}
}

// BuildMessage renders the message headers and body. Exposed so tests can
// verify composition without a live SMTP server.
func BuildMessage(cfg Config, to, subject, body string) []byte {
	from := cfg.FromAddr
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddr)
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", from, to, subject, body)

	return []byte(msg)
}

func (m *SMTPMailer) sendWithTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	return m.deliver(client, auth, to, msg)
}

func (m *SMTPMailer) sendWithStartTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	return m.deliver(client, auth, to, msg)
}

func (m *SMTPMailer) deliver(client *smtp.Client, auth smtp.Auth, to string, msg []byte) error {
	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(m.cfg.FromAddr); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}
