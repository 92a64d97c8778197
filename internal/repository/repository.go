package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smart-task-ingest-go/internal/model"
)

// Repository wraps all persistence for the ingestion service. Uniqueness
// constraints on the tables act as the concurrency guard; there are no
// application-level locks here.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// --- authorized senders ---

func (r *Repository) FindSender(ownerID uint, email string) (*model.AuthorizedSender, error) {
	var sender model.AuthorizedSender
	result := r.db.Where("owner_id = ? AND email_address = ?", ownerID, email).First(&sender)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error finding sender: %w", result.Error)
	}
	return &sender, nil
}

func (r *Repository) FindSenderByID(id uint) (*model.AuthorizedSender, error) {
	var sender model.AuthorizedSender
	result := r.db.First(&sender, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error finding sender: %w", result.Error)
	}
	return &sender, nil
}

func (r *Repository) CreateSender(sender *model.AuthorizedSender) error {
	if err := r.db.Create(sender).Error; err != nil {
		return fmt.Errorf("failed to create sender: %w", err)
	}
	return nil
}

// MarkSenderVerified upserts the (owner, email) row to verified. The unique
// index on the pair makes concurrent upserts converge on one row.
func (r *Repository) MarkSenderVerified(ownerID uint, email string) error {
	sender := model.AuthorizedSender{
		OwnerID:      ownerID,
		EmailAddress: email,
		IsVerified:   true,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "email_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"is_verified": true}),
	}).Create(&sender).Error
	if err != nil {
		return fmt.Errorf("failed to mark sender verified: %w", err)
	}
	return nil
}

// VerifiedOwnerIDs returns every owner for whom the given address is a
// verified task source.
func (r *Repository) VerifiedOwnerIDs(email string) ([]uint, error) {
	var ownerIDs []uint
	result := r.db.Model(&model.AuthorizedSender{}).
		Where("email_address = ? AND is_verified = ?", email, true).
		Pluck("owner_id", &ownerIDs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list verified owners: %w", result.Error)
	}
	return ownerIDs, nil
}

// DeleteSenderCascade hard-deletes a sender and its verification tokens.
func (r *Repository) DeleteSenderCascade(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var sender model.AuthorizedSender
		if err := tx.First(&sender, id).Error; err != nil {
			return fmt.Errorf("failed to load sender: %w", err)
		}
		if err := tx.Where("owner_id = ? AND target_email = ?", sender.OwnerID, sender.EmailAddress).
			Delete(&model.VerificationToken{}).Error; err != nil {
			return fmt.Errorf("failed to delete sender tokens: %w", err)
		}
		if err := tx.Delete(&model.AuthorizedSender{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete sender: %w", err)
		}
		return nil
	})
}

// --- verification tokens ---

func (r *Repository) CreateToken(token *model.VerificationToken) error {
	if err := r.db.Create(token).Error; err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}
	return nil
}

// FindActiveTokenByHash returns the unused, unexpired token with the given
// hash, or nil when no such token exists.
func (r *Repository) FindActiveTokenByHash(hash string, now time.Time) (*model.VerificationToken, error) {
	var token model.VerificationToken
	result := r.db.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hash, now).First(&token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error finding token: %w", result.Error)
	}
	return &token, nil
}

func (r *Repository) MarkTokenUsed(id uint, now time.Time) error {
	if err := r.db.Model(&model.VerificationToken{}).Where("id = ?", id).Update("used_at", now).Error; err != nil {
		return fmt.Errorf("failed to mark token used: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredTokens(cutoff time.Time) error {
	if err := r.db.Where("expires_at < ?", cutoff).Delete(&model.VerificationToken{}).Error; err != nil {
		return fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return nil
}

// --- processed message locks ---

// IsLocked reports whether the message id was processed after the given
// cutoff. Locks older than the window no longer block reprocessing.
func (r *Repository) IsLocked(messageID string, cutoff time.Time) (bool, error) {
	var lock model.ProcessedMessageLock
	result := r.db.Where("message_id = ? AND processed_at > ?", messageID, cutoff).First(&lock)
	if result.Error == nil {
		return true, nil
	}
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("database error checking message lock: %w", result.Error)
}

// AcquireLock records that processing for the message id completed. A stale
// row from a previous window may exist; refresh its timestamp instead of
// failing on the unique index.
func (r *Repository) AcquireLock(messageID string, now time.Time) error {
	lock := model.ProcessedMessageLock{
		MessageID:   messageID,
		ProcessedAt: now,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"processed_at": now}),
	}).Create(&lock).Error
	if err != nil {
		return fmt.Errorf("failed to acquire message lock: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredLocks(cutoff time.Time) error {
	if err := r.db.Where("processed_at < ?", cutoff).Delete(&model.ProcessedMessageLock{}).Error; err != nil {
		return fmt.Errorf("failed to delete expired locks: %w", err)
	}
	return nil
}

// --- tasks ---

func (r *Repository) CreateTask(task *model.Task) error {
	if err := r.db.Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTaskForOwner applies updates to a task only if it belongs to the
// owner. Returns false when no owned row matched.
func (r *Repository) UpdateTaskForOwner(ownerID, taskID uint, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&model.Task{}).
		Where("id = ? AND owner_id = ?", taskID, ownerID).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update task: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// --- outbound mail ledger ---

// CountMailBetween counts ledger rows with sent_at inside [start, end).
func (r *Repository) CountMailBetween(start, end time.Time) (int64, error) {
	var count int64
	result := r.db.Model(&model.OutboundMailRecord{}).
		Where("sent_at >= ? AND sent_at < ?", start, end).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count mail records: %w", result.Error)
	}
	return count, nil
}

func (r *Repository) RecordMail(record *model.OutboundMailRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record mail attempt: %w", err)
	}
	return nil
}

// --- pending confirmations ---

func (r *Repository) CreateConfirmation(c *model.PendingConfirmation) error {
	if err := r.db.Create(c).Error; err != nil {
		return fmt.Errorf("failed to create confirmation: %w", err)
	}
	return nil
}

// RedeemConfirmation marks an unexpired, unused confirmation as used and
// returns it. The guarded single UPDATE keeps redemption single-use across
// concurrent service instances.
func (r *Repository) RedeemConfirmation(id string, ownerID uint, now time.Time) (*model.PendingConfirmation, error) {
	result := r.db.Model(&model.PendingConfirmation{}).
		Where("id = ? AND owner_id = ? AND used_at IS NULL AND expires_at > ?", id, ownerID, now).
		Update("used_at", now)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to redeem confirmation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var c model.PendingConfirmation
	if err := r.db.First(&c, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load confirmation: %w", err)
	}
	return &c, nil
}

func (r *Repository) DeleteExpiredConfirmations(cutoff time.Time) error {
	if err := r.db.Where("expires_at < ?", cutoff).Delete(&model.PendingConfirmation{}).Error; err != nil {
		return fmt.Errorf("failed to delete expired confirmations: %w", err)
	}
	return nil
}

// --- watch state ---

func (r *Repository) GetWatchState(email string) (*model.WatchState, error) {
	var state model.WatchState
	result := r.db.Where("email_address = ?", email).First(&state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error loading watch state: %w", result.Error)
	}
	return &state, nil
}

func (r *Repository) UpsertWatchState(state *model.WatchState) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_history_id", "expires_at", "updated_at"}),
	}).Create(state).Error
	if err != nil {
		return fmt.Errorf("failed to upsert watch state: %w", err)
	}
	return nil
}
