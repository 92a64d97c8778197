// Package verify implements the out-of-band identity verification for
// external sender addresses: magic-link token issuance, redemption, and the
// persisted delete-confirmation flow.
package verify

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smart-task-ingest-go/internal/apperrors"
	"smart-task-ingest-go/internal/mailer"
	"smart-task-ingest-go/internal/model"
)

// Store is the persistence surface the verification service needs.
type Store interface {
	FindSender(ownerID uint, email string) (*model.AuthorizedSender, error)
	FindSenderByID(id uint) (*model.AuthorizedSender, error)
	CreateSender(sender *model.AuthorizedSender) error
	MarkSenderVerified(ownerID uint, email string) error
	DeleteSenderCascade(id uint) error

	CreateToken(token *model.VerificationToken) error
	FindActiveTokenByHash(hash string, now time.Time) (*model.VerificationToken, error)
	MarkTokenUsed(id uint, now time.Time) error

	CreateConfirmation(c *model.PendingConfirmation) error
	RedeemConfirmation(id string, ownerID uint, now time.Time) (*model.PendingConfirmation, error)
}

// MailSender delivers verification mail, enforcing the daily quota.
type MailSender interface {
	Send(ctx context.Context, recipient, subject, htmlBody, purpose string) error
}

// Service manages authorized senders and their verification lifecycle.
type Service struct {
	store           Store
	mail            MailSender
	tokenTTL        time.Duration
	confirmationTTL time.Duration
	baseURL         string
	now             func() time.Time
}

// NewService creates a verification service.
func NewService(store Store, mail MailSender, tokenTTL, confirmationTTL time.Duration, baseURL string) *Service {
	return &Service{
		store:           store,
		mail:            mail,
		tokenTTL:        tokenTTL,
		confirmationTTL: confirmationTTL,
		baseURL:         baseURL,
		now:             time.Now,
	}
}

// Register registers an external address for an owner and sends the first
// verification mail. Registering an address twice for the same owner fails.
func (s *Service) Register(ctx context.Context, ownerID uint, email string) (*model.AuthorizedSender, error) {
	email = normalizeEmail(email)

	existing, err := s.store.FindSender(ownerID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.ErrSenderAlreadyRegistered
	}

	sender := &model.AuthorizedSender{
		OwnerID:      ownerID,
		EmailAddress: email,
	}
	if err := s.store.CreateSender(sender); err != nil {
		return nil, err
	}

	if err := s.issueAndSend(ctx, ownerID, email); err != nil {
		return nil, err
	}
	return sender, nil
}

// RequestVerification issues a fresh token for an already-registered address
// and sends the magic link. Already-verified addresses succeed without a new
// token.
func (s *Service) RequestVerification(ctx context.Context, ownerID uint, email string) error {
	email = normalizeEmail(email)

	sender, err := s.store.FindSender(ownerID, email)
	if err != nil {
		return err
	}
	if sender == nil {
		return apperrors.ErrSenderNotFound
	}
	if sender.IsVerified {
		return nil
	}
	return s.issueAndSend(ctx, ownerID, email)
}

// ResendVerification reissues a token for the sender row with the given id,
// scoped to the owner.
func (s *Service) ResendVerification(ctx context.Context, ownerID, senderID uint) error {
	sender, err := s.store.FindSenderByID(senderID)
	if err != nil {
		return err
	}
	if sender == nil || sender.OwnerID != ownerID {
		return apperrors.ErrSenderNotFound
	}
	if sender.IsVerified {
		return nil
	}
	return s.issueAndSend(ctx, ownerID, sender.EmailAddress)
}

func (s *Service) issueAndSend(ctx context.Context, ownerID uint, email string) error {
	plaintext, hash, err := generateToken()
	if err != nil {
		return err
	}

	token := &model.VerificationToken{
		OwnerID:     ownerID,
		TargetEmail: email,
		TokenHash:   hash,
		ExpiresAt:   s.now().Add(s.tokenTTL),
	}
	if err := s.store.CreateToken(token); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify-magic-link?token=%s", s.baseURL, plaintext)
	body := fmt.Sprintf(
		`<p>An account on this service wants to accept tasks sent from <b>%s</b>.</p>
<p><a href="%s">Confirm this email address</a></p>
<p>The link expires in %s. If you did not expect this, ignore this message.</p>`,
		email, link, s.tokenTTL)

	if err := s.mail.Send(ctx, email, "Confirm your email address", body, mailer.PurposeVerification); err != nil {
		return err
	}

	logrus.Infof("Verification mail queued for owner %d", ownerID)
	return nil
}

// Redeem consumes a presented magic-link token. The presented plaintext is
// hashed and looked up; not-found, expired and already-used all collapse into
// the same generic error so callers cannot enumerate token state. The second
// redemption of a token fails closed rather than re-verifying.
func (s *Service) Redeem(token string) error {
	candidate := sha256.Sum256([]byte(token))
	now := s.now()

	record, err := s.store.FindActiveTokenByHash(hex.EncodeToString(candidate[:]), now)
	if err != nil {
		return err
	}
	if record == nil {
		return apperrors.ErrInvalidToken
	}

	// Compare fixed-length hash byte arrays in constant time. The indexed
	// lookup above narrows the row; this comparison is the one that decides.
	stored, err := hex.DecodeString(record.TokenHash)
	if err != nil || subtle.ConstantTimeCompare(candidate[:], stored) != 1 {
		return apperrors.ErrInvalidToken
	}

	if err := s.store.MarkTokenUsed(record.ID, now); err != nil {
		return err
	}
	if err := s.store.MarkSenderVerified(record.OwnerID, record.TargetEmail); err != nil {
		return err
	}

	logrus.Infof("Sender verified for owner %d", record.OwnerID)
	return nil
}

// RequestDelete creates a persisted, TTL-bearing confirmation for deleting a
// sender. Any service instance can later redeem it.
func (s *Service) RequestDelete(ownerID, senderID uint) (*model.PendingConfirmation, error) {
	sender, err := s.store.FindSenderByID(senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil || sender.OwnerID != ownerID {
		return nil, apperrors.ErrSenderNotFound
	}

	c := &model.PendingConfirmation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		SenderID:  senderID,
		ExpiresAt: s.now().Add(s.confirmationTTL),
	}
	if err := s.store.CreateConfirmation(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ConfirmDelete redeems a confirmation and hard-deletes the sender with its
// tokens. Expired, unknown and already-used confirmations are
// indistinguishable to the caller.
func (s *Service) ConfirmDelete(ownerID, senderID uint, confirmationID string) error {
	c, err := s.store.RedeemConfirmation(confirmationID, ownerID, s.now())
	if err != nil {
		return err
	}
	if c == nil || c.SenderID != senderID {
		return apperrors.ErrConfirmationInvalid
	}
	return s.store.DeleteSenderCascade(senderID)
}

// normalizeEmail reduces an address to the canonical stored form. Ingestion
// looks up verified senders by lowercased address, so registration must
// persist exactly that form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateToken returns a fresh 256-bit token and the hex SHA-256 hash that
// gets persisted in its place.
func generateToken() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	plaintext = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(plaintext))
	return plaintext, hex.EncodeToString(sum[:]), nil
}
