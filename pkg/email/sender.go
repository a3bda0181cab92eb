package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	log "github.com/go-pkgz/lgr"

	"github.com/genewire/genewire/pkg/config"
	"github.com/genewire/genewire/pkg/repository"
)

// RecipientsLister provides the subscriber list
type RecipientsLister interface {
	GetRecipients(ctx context.Context, activeOnly bool) ([]repository.Recipient, error)
}

// Sender delivers digest emails over SMTP, one personalized message per
// recipient so feedback links can carry the recipient's identity
type Sender struct {
	cfg        config.EmailConfig
	recipients RecipientsLister

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error // overridable in tests
}

// NewSender creates an SMTP digest sender
func NewSender(cfg config.EmailConfig, recipients RecipientsLister) *Sender {
	return &Sender{
		cfg:        cfg,
		recipients: recipients,
		sendMail:   smtp.SendMail,
	}
}

// SendDigest mails the digest to every active recipient. A failed delivery is
// isolated to that recipient, the returned count is how many went out.
func (s *Sender) SendDigest(ctx context.Context, summary *repository.DailySummary, articles []repository.Article) (int, error) {
	recipients, err := s.recipients.GetRecipients(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("load recipients: %w", err)
	}
	if len(recipients) == 0 {
		log.Printf("[INFO] no active recipients, skipping digest delivery")
		return 0, nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	sent := 0
	var failures []error
	for _, recipient := range recipients {
		msg := s.buildMessage(recipient, summary, articles)
		if err := s.sendMail(addr, auth, s.cfg.From, []string{recipient.Email}, msg); err != nil {
			log.Printf("[WARN] digest delivery to %s failed: %v", recipient.Email, err)
			failures = append(failures, fmt.Errorf("send to %s: %w", recipient.Email, err))
			continue
		}
		sent++
	}

	log.Printf("[INFO] digest %d delivered to %d/%d recipients", summary.ID, sent, len(recipients))
	return sent, errors.Join(failures...)
}

// buildMessage assembles the full multipart message for one recipient, with a
// plain-text alternative ahead of the HTML body
func (s *Sender) buildMessage(recipient repository.Recipient, summary *repository.DailySummary, articles []repository.Article) []byte {
	subject := fmt.Sprintf("Synthetic Biology Daily Digest - %s", summary.Date)
	htmlBody := buildDigestHTML(summary, articles, recipient, s.cfg.BaseURL)
	textBody := buildDigestText(summary, articles, recipient)

	const boundary = "genewire-digest-boundary"

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", s.cfg.From))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", recipient.Email))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary))

	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	sb.WriteString(textBody)
	sb.WriteString("\r\n")

	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	sb.WriteString(htmlBody)
	sb.WriteString("\r\n")

	sb.WriteString("--" + boundary + "--\r\n")
	return []byte(sb.String())
}
