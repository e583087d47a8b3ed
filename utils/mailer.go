package utils

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/webdevhub/config"
)

// ErrMailNotConfigured is returned when no SMTP host or sender is set.
var ErrMailNotConfigured = errors.New("smtp not configured")

// Mail is one outbound HTML message.
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// SMTPMailer sends HTML mail through the configured SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	startTLS bool
}

// NewSMTPMailer reads SMTP settings from cfg.
func NewSMTPMailer(cfg config.AppConfig) *SMTPMailer {
	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = cfg.SiteName
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		fromName: fromName,
		startTLS: cfg.SMTPTLS,
	}
}

func (m *SMTPMailer) compose(mail Mail) []byte {
	var msg strings.Builder
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", m.fromName), m.from)},
		{"To", mail.To},
		{"Subject", mime.BEncoding.Encode("UTF-8", mail.Subject)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	for _, h := range headers {
		msg.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(mail.HTML)
	return []byte(msg.String())
}

// Send delivers mail, honoring the context deadline (15s when none).
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if m.host == "" || m.from == "" {
		return ErrMailNotConfigured
	}
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	body := m.compose(mail)

	if !m.startTLS {
		// Plain SMTP without TLS (not recommended)
		return smtp.SendMail(addr, auth, m.from, []string{mail.To}, body)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(15 * time.Second)
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if m.username != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(mail.To); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(body); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}
