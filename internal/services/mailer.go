package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
	"github.com/sirupsen/logrus"
)

// EmailAttachment is a file sent with an email. Inline attachments are
// referenced from the HTML body as cid:<ContentID>.
type EmailAttachment struct {
	Filename  string
	Content   []byte
	Inline    bool
	ContentID string
}

// EmailMessage is a single outgoing email
type EmailMessage struct {
	To          string
	ToName      string
	Subject     string
	HTML        string
	Text        string
	Attachments []EmailAttachment
}

// Mailer delivers email messages
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// MailerSendConfig represents MailerSend service configuration
type MailerSendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// MailerSendMailer delivers email through the MailerSend API
type MailerSendMailer struct {
	client *mailersend.Mailersend
	config MailerSendConfig
	logger *logrus.Logger
}

// NewMailerSendMailer creates a new MailerSend mailer
func NewMailerSendMailer(cfg MailerSendConfig, logger *logrus.Logger) *MailerSendMailer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &MailerSendMailer{
		client: mailersend.NewMailersend(cfg.APIKey),
		config: cfg,
		logger: logger,
	}
}

// Send sends the message through MailerSend
func (m *MailerSendMailer) Send(ctx context.Context, msg EmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{
		Name:  m.config.FromName,
		Email: m.config.FromEmail,
	})
	message.SetRecipients([]mailersend.Recipient{
		{Name: msg.ToName, Email: msg.To},
	})
	message.SetSubject(msg.Subject)
	message.SetHTML(msg.HTML)
	message.SetText(msg.Text)

	for _, att := range msg.Attachments {
		attachment := mailersend.Attachment{
			Content:  base64.StdEncoding.EncodeToString(att.Content),
			Filename: att.Filename,
		}
		if att.Inline {
			attachment.Disposition = mailersend.DispositionInline
			attachment.ID = att.ContentID
		}
		message.AddAttachment(attachment)
	}

	res, err := m.client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.WithContext(ctx).WithFields(logrus.Fields{
		"to":         msg.To,
		"message_id": res.Header.Get("X-Message-Id"),
	}).Info("email sent")

	return nil
}

// LogMailer only logs outgoing messages. It is used when no MailerSend
// API key is configured.
type LogMailer struct {
	logger *logrus.Logger
}

func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg EmailMessage) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		names = append(names, att.Filename)
	}

	m.logger.WithContext(ctx).WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": names,
	}).Info("mock email: message not delivered, no MailerSend API key configured")

	return nil
}

// NewMailer returns a MailerSend mailer when an API key is configured and a
// log-only mailer otherwise.
func NewMailer(cfg MailerSendConfig, logger *logrus.Logger) Mailer {
	if cfg.APIKey == "" {
		logger.Warn("Email service: using log mailer (no MailerSend API key provided)")
		return NewLogMailer(logger)
	}

	logger.Info("Email service: using MailerSend API")
	return NewMailerSendMailer(cfg, logger)
}
