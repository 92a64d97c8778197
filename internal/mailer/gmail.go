package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"smart-task-ingest-go/internal/config"
)

// GmailProvider sends mail through the Gmail API on behalf of the service
// mailbox.
type GmailProvider struct {
	service   *gmail.Service
	userEmail string
}

// NewGmailProvider creates a Gmail-backed mail provider.
func NewGmailProvider(cfg *config.GmailConfig) (*GmailProvider, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailProvider{
		service:   service,
		userEmail: cfg.UserEmail,
	}, nil
}

// Send delivers one HTML email to the recipient.
func (p *GmailProvider) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	raw := buildMessage(p.userEmail, recipient, subject, htmlBody)

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	if _, err := p.service.Users.Messages.Send(p.userEmail, message).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", recipient, err)
	}
	return nil
}

// buildMessage assembles an RFC 2822 message with an HTML body.
func buildMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)

	return b.String()
}
