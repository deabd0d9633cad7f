package notify

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/wneessen/go-mail"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

const (
	DefaultSubjectTemplate = "Neues One Piece Kapitel {number}: {title}"
	DefaultBodyTemplate    = "Ein neues One Piece Kapitel ist verfügbar!\n\nKapitel {number}: {title}\n\nJetzt auf One Piece Offline herunterladen!"
)

// SMTPSettings is the full credential set needed to send email.
type SMTPSettings struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Sender          string
	Recipient       string
	SSL             bool
	Timeout         time.Duration
	SubjectTemplate string
	BodyTemplate    string
}

// Configured reports whether any SMTP setting was provided.
func (s SMTPSettings) Configured() bool {
	return s.Host != "" || s.Username != "" || s.Sender != "" || s.Recipient != ""
}

// Validate fails with data.ErrConfiguration naming every missing setting.
func (s SMTPSettings) Validate() error {
	var missing []string
	if s.Host == "" {
		missing = append(missing, "host")
	}
	if s.Port <= 0 {
		missing = append(missing, "port")
	}
	if s.Username == "" {
		missing = append(missing, "username")
	}
	if s.Password == "" {
		missing = append(missing, "password")
	}
	if s.Sender == "" {
		missing = append(missing, "sender")
	}
	if s.Recipient == "" {
		missing = append(missing, "recipient")
	}
	if len(missing) > 0 {
		return errors.Wrapf(data.ErrConfiguration, "missing smtp settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Mailer sends prepared messages over one connection.
type Mailer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailChannel sends one plain-text message per chapter.
type EmailChannel struct {
	settings  SMTPSettings
	newMailer func(SMTPSettings) (Mailer, error)
	log       logger.Logger
}

func NewEmailChannel(settings SMTPSettings, log logger.Logger) *EmailChannel {
	if settings.SubjectTemplate == "" {
		settings.SubjectTemplate = DefaultSubjectTemplate
	}
	if settings.BodyTemplate == "" {
		settings.BodyTemplate = DefaultBodyTemplate
	}
	return &EmailChannel{settings: settings, newMailer: newSMTPClient, log: log}
}

// WithMailer replaces the SMTP client factory.
func (c *EmailChannel) WithMailer(fn func(SMTPSettings) (Mailer, error)) *EmailChannel {
	c.newMailer = fn
	return c
}

// WithRecipient returns a copy of the channel that mails recipient instead.
func (c *EmailChannel) WithRecipient(recipient string) *EmailChannel {
	clone := *c
	clone.settings.Recipient = recipient
	return &clone
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Enabled() bool {
	return c.settings.Configured()
}

// Notify validates the settings and builds every message before a connection
// is opened, so incomplete configuration never results in a partial send.
func (c *EmailChannel) Notify(ctx context.Context, entries []data.ChapterEntry) (int, error) {
	if err := c.settings.Validate(); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	messages := make([]*mail.Msg, 0, len(entries))
	for _, entry := range entries {
		m, err := c.message(entry)
		if err != nil {
			return 0, err
		}
		messages = append(messages, m)
	}

	mailer, err := c.newMailer(c.settings)
	if err != nil {
		return 0, errors.Wrapf(data.ErrConfiguration, "smtp client: %v", err)
	}
	if err := mailer.DialAndSendWithContext(ctx, messages...); err != nil {
		return 0, errors.Wrap(err, "send email notifications")
	}

	c.log.Info("email notifications sent", logger.Data{"count": len(messages), "recipient": c.settings.Recipient})
	return len(messages), nil
}

func (c *EmailChannel) message(entry data.ChapterEntry) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.settings.Sender); err != nil {
		return nil, errors.Wrapf(data.ErrConfiguration, "invalid sender %q: %v", c.settings.Sender, err)
	}
	if err := m.To(c.settings.Recipient); err != nil {
		return nil, errors.Wrapf(data.ErrConfiguration, "invalid recipient %q: %v", c.settings.Recipient, err)
	}
	m.Subject(render(c.settings.SubjectTemplate, entry))
	m.SetBodyString(mail.TypeTextPlain, render(c.settings.BodyTemplate, entry))
	return m, nil
}

func newSMTPClient(s SMTPSettings) (Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.Username),
		mail.WithPassword(s.Password),
	}
	if s.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.Timeout))
	}
	if s.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(s.Host, opts...)
}
