// Package mailer delivers contact-form enquiries by SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// DefaultPort is the SMTP submission port used when none is configured.
const DefaultPort = 587

// ErrNotConfigured is returned when no SMTP host is configured.
var ErrNotConfigured = errors.New("contact mail is not configured")

// ErrDelivery wraps SMTP failures.
var ErrDelivery = errors.New("contact mail delivery failed")

// Config holds the SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Mailer sends contact enquiries to the site owner.
type Mailer struct {
	cfg    Config
	send   func(msgs ...*gomail.Message) error
	logger *zap.Logger
}

// New creates a Mailer. With an empty host every send reports
// ErrNotConfigured.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	m := &Mailer{cfg: cfg, logger: logger}
	if cfg.Host != "" {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		m.send = d.DialAndSend
	}
	return m
}

// NewWithSender creates a Mailer that hands messages to sender instead of
// dialing an SMTP server.
func NewWithSender(cfg Config, sender gomail.Sender, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg: cfg,
		send: func(msgs ...*gomail.Message) error {
			return gomail.Send(sender, msgs...)
		},
		logger: logger,
	}
}

// Enabled reports whether the mailer can deliver messages.
func (m *Mailer) Enabled() bool {
	return m.send != nil
}

// SendContact validates msg and mails it to the configured recipient.
func (m *Mailer) SendContact(ctx context.Context, msg model.ContactMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if !m.Enabled() {
		m.logger.Warn("contact message dropped, SMTP host not set",
			zap.String("email", msg.Email),
		)
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.send(m.compose(msg)); err != nil {
		m.logger.Error("failed to send contact message", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	m.logger.Info("contact message sent", zap.String("email", msg.Email))
	return nil
}

func (m *Mailer) compose(msg model.ContactMessage) *gomail.Message {
	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	to := m.cfg.To
	if to == "" {
		to = from
	}

	g := gomail.NewMessage()
	g.SetHeader("From", from)
	g.SetHeader("To", to)
	g.SetAddressHeader("Reply-To", msg.Email, msg.Name)
	g.SetHeader("Subject", "Nuevo mensaje de contacto: "+msg.Name)
	g.SetBody("text/plain", fmt.Sprintf("Nombre: %s\nEmail: %s\n\n%s\n", msg.Name, msg.Email, msg.Message))
	return g
}
