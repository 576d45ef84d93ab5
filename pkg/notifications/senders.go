package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Sender delivers a notification over one channel
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the log. Used in development and as a
// safe default when no channel is configured.
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger *logrus.Logger) *LogSender {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	s.logger.WithFields(logrus.Fields{
		"kind":       n.Kind,
		"permit_id":  n.PermitID,
		"recipients": n.Recipients,
		"actor":      n.ActorName,
	}).Info("notification")
	return nil
}

// EmailConfig configures SMTP delivery
type EmailConfig struct {
	Host        string
	Port        int
	From        string
	Username    string
	Password    string
	AddressFunc func(userID int64) (string, bool)
}

// EmailSender delivers notifications over SMTP. Recipient addresses come
// from AddressFunc; recipients it cannot resolve are skipped.
type EmailSender struct {
	config EmailConfig
	logger *logrus.Logger
}

// NewEmailSender creates an SMTP-backed sender
func NewEmailSender(config EmailConfig, logger *logrus.Logger) *EmailSender {
	if logger == nil {
		logger = logrus.New()
	}
	return &EmailSender{config: config, logger: logger}
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, n Notification) error {
	if s.config.AddressFunc == nil {
		return fmt.Errorf("email sender has no address resolver")
	}

	addresses := make([]string, 0, len(n.Recipients))
	for _, userID := range n.Recipients {
		addr, ok := s.config.AddressFunc(userID)
		if !ok {
			s.logger.WithField("user_id", userID).Warn("no email address for recipient, skipping")
			continue
		}
		addresses = append(addresses, addr)
	}
	if len(addresses) == 0 {
		return nil
	}

	subject := subjectFor(n)
	body := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		strings.Join(addresses, ", "), subject, n.Message)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := smtp.SendMail(addr, auth, s.config.From, addresses, []byte(body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func subjectFor(n Notification) string {
	switch n.Kind {
	case KindPartyAdded:
		return fmt.Sprintf("%s added you to a permit", n.ActorName)
	case KindPartyRemoved:
		return "You were removed from a permit"
	case KindMilestoneCompleted:
		return fmt.Sprintf("%s completed a milestone", n.ActorName)
	case KindMilestoneDue:
		return "A permit milestone is coming due"
	case KindPhotoShared:
		return fmt.Sprintf("%s shared a photo with you", n.ActorName)
	case KindMessageSent:
		return fmt.Sprintf("New message from %s", n.ActorName)
	case KindInspectionChanged:
		return "A permit inspection was updated"
	default:
		return "Permit activity"
	}
}
