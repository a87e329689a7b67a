// Package handoff notifies operators by email when a conversation leaves bot
// ownership and a human needs to take over.
package handoff

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"zapleads_backend/platform/logger"
)

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromEmail  string
	FromName   string
	Recipients []string
}

// Notifier sends handoff emails over the tenant's SMTP server. A nil
// Notifier means notifications are disabled.
type Notifier struct {
	cfg SMTPConfig
	log *logger.Logger
}

func NewNotifier(cfg SMTPConfig, log *logger.Logger) *Notifier {
	if cfg.Host == "" || len(cfg.Recipients) == 0 {
		return nil
	}
	return &Notifier{cfg: cfg, log: log}
}

// Notification carries what an operator needs to pick up the conversation.
type Notification struct {
	LeadName  string
	LeadPhone string
	Stage     string
	Score     int
	Reason    string
	Message   string
}

func (n *Notifier) Notify(ctx context.Context, note Notification) error {
	if n == nil {
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(n.cfg.FromName, n.cfg.FromEmail); err != nil {
		return fmt.Errorf("handoff from: %w", err)
	}
	if err := msg.To(n.cfg.Recipients...); err != nil {
		return fmt.Errorf("handoff to: %w", err)
	}

	name := note.LeadName
	if name == "" {
		name = note.LeadPhone
	}
	msg.Subject(fmt.Sprintf("Handoff requested: %s", name))
	msg.SetBodyString(gomail.TypeTextPlain, renderBody(note))

	client, err := gomail.NewClient(n.cfg.Host,
		gomail.WithPort(n.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.cfg.Username),
		gomail.WithPassword(n.cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("handoff smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("handoff smtp send: %w", err)
	}

	n.log.Info("handoff notification sent", "phone", note.LeadPhone, "recipients", len(n.cfg.Recipients))
	return nil
}

func renderBody(note Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A lead asked to talk to a person.\n\n")
	fmt.Fprintf(&b, "Name:  %s\n", note.LeadName)
	fmt.Fprintf(&b, "Phone: %s\n", note.LeadPhone)
	fmt.Fprintf(&b, "Stage: %s\n", note.Stage)
	fmt.Fprintf(&b, "Score: %d\n", note.Score)
	if note.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", note.Reason)
	}
	if note.Message != "" {
		fmt.Fprintf(&b, "\nLast message:\n%s\n", note.Message)
	}
	return b.String()
}
