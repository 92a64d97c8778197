package fetcher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/config"
	"smart-task-ingest-go/internal/model"
)

// IMAPSource polls an IMAP mailbox for new messages. Used where Gmail push
// notifications are unavailable.
type IMAPSource struct {
	client    *client.Client
	lastCheck time.Time
}

// NewIMAPSource connects and logs in to the IMAP server.
func NewIMAPSource(cfg *config.GmailConfig) (*IMAPSource, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &IMAPSource{
		client:    c,
		lastCheck: time.Now().Add(-24 * time.Hour),
	}, nil
}

// FetchNew returns messages received since the last poll.
func (s *IMAPSource) FetchNew(ctx context.Context) ([]model.InboundEmail, error) {
	_, err := s.client.Select("INBOX", false)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = s.lastCheck

	uids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	if len(uids) == 0 {
		s.lastCheck = time.Now()
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchBody, imap.FetchUid}, messages)
	}()

	var emails []model.InboundEmail

	for msg := range messages {
		email, err := parseIMAPMessage(msg)
		if err != nil {
			logrus.Warnf("Failed to parse IMAP message: %v", err)
			continue
		}
		emails = append(emails, email)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	s.lastCheck = time.Now()
	return emails, nil
}

func parseIMAPMessage(msg *imap.Message) (model.InboundEmail, error) {
	var email model.InboundEmail

	if msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
		email.MessageID = msg.Envelope.MessageId
		if len(msg.Envelope.From) > 0 {
			email.Sender = msg.Envelope.From[0].Address()
		}
	}

	if err := parseIMAPBody(msg, &email); err != nil {
		return email, err
	}
	return email, nil
}

func parseIMAPBody(msg *imap.Message, email *model.InboundEmail) error {
	if msg.Body == nil {
		return nil
	}

	section := &imap.BodySectionName{}
	r := msg.GetBody(section)
	if r == nil {
		return fmt.Errorf("failed to get message body")
	}

	entity, err := message.Read(r)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("failed to read part: %w", err)
			}

			content, err := io.ReadAll(p.Body)
			if err != nil {
				return fmt.Errorf("failed to read part body: %w", err)
			}

			contentType := p.Header.Get("Content-Type")
			if strings.Contains(contentType, "text/plain") {
				email.Body = string(content)
			} else if strings.Contains(contentType, "text/html") {
				email.HTMLBody = string(content)
			}
		}
		return nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}

	contentType := entity.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		email.HTMLBody = string(content)
	} else {
		email.Body = string(content)
	}

	return nil
}

// Close logs out of the IMAP session.
func (s *IMAPSource) Close() error {
	return s.client.Logout()
}
