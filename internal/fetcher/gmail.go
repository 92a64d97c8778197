package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/config"
	"smart-task-ingest-go/internal/model"
)

// StateStore persists the history cursor and watch expiry across restarts
// and instances.
type StateStore interface {
	GetWatchState(email string) (*model.WatchState, error)
	UpsertWatchState(state *model.WatchState) error
}

// GmailSource fetches messages through the Gmail API using the history
// cursor advanced by push notifications.
type GmailSource struct {
	service     *gmail.Service
	userEmail   string
	pubsubTopic string
	state       StateStore
}

// NewGmailSource creates a Gmail API message source.
func NewGmailSource(cfg *config.GmailConfig, state StateStore) (*GmailSource, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
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

	return &GmailSource{
		service:     service,
		userEmail:   cfg.UserEmail,
		pubsubTopic: cfg.PubSubTopic,
		state:       state,
	}, nil
}

// FetchNew returns messages added since the persisted history cursor and
// advances the cursor. With no cursor yet, it falls back to listing the last
// 24 hours of mail.
func (s *GmailSource) FetchNew(ctx context.Context) ([]model.InboundEmail, error) {
	state, err := s.state.GetWatchState(s.userEmail)
	if err != nil {
		return nil, err
	}

	if state == nil || state.LastHistoryID == 0 {
		return s.fetchRecent(ctx)
	}

	var emails []model.InboundEmail
	var latest uint64
	seen := make(map[string]bool)
	pageToken := ""

	// Walk every history page before touching the cursor. Advancing the
	// cursor with pages still unread would skip those messages forever.
	for {
		call := s.service.Users.History.List(s.userEmail).
			StartHistoryId(state.LastHistoryID).
			HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}

		for _, h := range response.History {
			for _, added := range h.MessagesAdded {
				if added.Message == nil || seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true

				email, err := s.fetchMessage(ctx, added.Message.Id)
				if err != nil {
					logrus.Warnf("Failed to fetch message %s: %v", added.Message.Id, err)
					continue
				}
				emails = append(emails, email)
			}
		}

		if response.HistoryId > latest {
			latest = response.HistoryId
		}
		if response.NextPageToken == "" {
			break
		}
		pageToken = response.NextPageToken
	}

	if latest > state.LastHistoryID {
		state.LastHistoryID = latest
		state.UpdatedAt = time.Now()
		if err := s.state.UpsertWatchState(state); err != nil {
			logrus.Errorf("Failed to advance history cursor: %v", err)
		}
	}

	return emails, nil
}

// fetchRecent lists messages from the last 24 hours, used before any history
// cursor exists.
func (s *GmailSource) fetchRecent(ctx context.Context) ([]model.InboundEmail, error) {
	query := fmt.Sprintf("after:%d", time.Now().Add(-24*time.Hour).Unix())

	var emails []model.InboundEmail
	pageToken := ""

	for {
		call := s.service.Users.Messages.List(s.userEmail).Q(query)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, msg := range response.Messages {
			email, err := s.fetchMessage(ctx, msg.Id)
			if err != nil {
				logrus.Warnf("Failed to fetch message %s: %v", msg.Id, err)
				continue
			}
			emails = append(emails, email)
		}

		if response.NextPageToken == "" {
			break
		}
		pageToken = response.NextPageToken
	}

	return emails, nil
}

func (s *GmailSource) fetchMessage(ctx context.Context, id string) (model.InboundEmail, error) {
	msg, err := s.service.Users.Messages.Get(s.userEmail, id).Format("full").Context(ctx).Do()
	if err != nil {
		return model.InboundEmail{}, fmt.Errorf("failed to get message: %w", err)
	}
	return parseGmailMessage(msg), nil
}

// parseGmailMessage maps a Gmail API message to the pipeline's inbound shape.
func parseGmailMessage(msg *gmail.Message) model.InboundEmail {
	email := model.InboundEmail{MessageID: msg.Id}

	if msg.Payload == nil {
		return email
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			email.Subject = header.Value
		case "From":
			email.Sender = header.Value
		}
	}

	collectGmailBody(msg.Payload, &email)
	return email
}

// collectGmailBody recursively walks message parts for text content.
func collectGmailBody(part *gmail.MessagePart, email *model.InboundEmail) {
	if part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				email.Body = string(data)
			case "text/html":
				email.HTMLBody = string(data)
			}
		}
	}

	for _, subPart := range part.Parts {
		collectGmailBody(subPart, email)
	}
}

// RenewWatch (re)registers the Gmail push watch on the mailbox and persists
// the returned expiry. Watches lapse after about seven days, so this runs on
// a schedule well inside that.
func (s *GmailSource) RenewWatch(ctx context.Context) error {
	req := &gmail.WatchRequest{
		TopicName: s.pubsubTopic,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := s.service.Users.Watch(s.userEmail, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to renew Gmail watch: %w", err)
	}

	state, err := s.state.GetWatchState(s.userEmail)
	if err != nil {
		return err
	}
	if state == nil {
		state = &model.WatchState{EmailAddress: s.userEmail}
	}
	if resp.HistoryId > state.LastHistoryID {
		state.LastHistoryID = resp.HistoryId
	}
	state.ExpiresAt = time.UnixMilli(resp.Expiration)
	state.UpdatedAt = time.Now()

	if err := s.state.UpsertWatchState(state); err != nil {
		return err
	}

	logrus.Infof("Gmail watch renewed, expires %s", state.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Close is a no-op for the Gmail API.
func (s *GmailSource) Close() error {
	return nil
}
