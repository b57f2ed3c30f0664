package delivery

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"daily-digest/internal/config"
	"daily-digest/internal/model"
)

//go:embed email.tmpl
var emailTmpl string

var emailTemplate = template.Must(template.New("email").Parse(emailTmpl))

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends the digest as an HTML message over SMTP.
type Email struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func NewEmail(cfg config.SMTPConfig) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail}
}

func (e *Email) Name() string { return "email" }

// Subject returns the message subject for a digest date.
func Subject(date string) string {
	if t, err := time.Parse(model.DateLayout, date); err == nil {
		date = t.Format("Jan 2, 2006")
	}
	return "Your Daily Digest - " + date
}

// HTMLBody renders the digest into the email template.
func HTMLBody(d model.Digest) (string, error) {
	data := struct {
		Lines []string
		Stats *model.DigestStats
	}{Lines: strings.Split(strings.TrimRight(d.FullText, "\n"), "\n")}
	if d.Stats != (model.DigestStats{}) {
		data.Stats = &d.Stats
	}
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Email) message(to string, d model.Digest) ([]byte, error) {
	body, err := HTMLBody(d)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(d.Date)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}

func (e *Email) Send(ctx context.Context, to string, d model.Digest) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: no recipient for user %s", model.ErrConfiguration, d.UserID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := e.message(to, d)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	if err := e.send(addr, auth, e.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
