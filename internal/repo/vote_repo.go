package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peerq/peerq-api/internal/domain"
)

// CurrentVote returns the user's vote value on a target, 0 when none.
func CurrentVote(ctx context.Context, db *gorm.DB, tt domain.TargetType, targetID, userID string) (int, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND user_id = ?", tt, targetID, userID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.Value, nil
}

// SetVote stores value for the user on a target; 0 deletes the row.
func SetVote(ctx context.Context, db *gorm.DB, tt domain.TargetType, targetID, userID string, value int) error {
	tx := db.WithContext(ctx)
	where := tx.Where("target_type = ? AND target_id = ? AND user_id = ?", tt, targetID, userID)
	if value == 0 {
		return where.Delete(&domain.Vote{}).Error
	}
	res := tx.Model(&domain.Vote{}).
		Where("target_type = ? AND target_id = ? AND user_id = ?", tt, targetID, userID).
		Updates(map[string]any{"value": value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	v := domain.Vote{ID: uuid.NewString(), TargetType: tt, TargetID: targetID, UserID: userID, Value: value}
	if err := tx.Create(&v).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// VotesFor returns the vote rows of each target id.
func VotesFor(ctx context.Context, db *gorm.DB, tt domain.TargetType, ids []string) (map[string][]domain.Vote, error) {
	out := make(map[string][]domain.Vote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Vote
	err := db.WithContext(ctx).
		Where("target_type = ? AND target_id IN ?", tt, uniq(ids)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, v := range rows {
		out[v.TargetID] = append(out[v.TargetID], v)
	}
	return out, nil
}

// DeleteVotesFor removes every vote on the given targets.
func DeleteVotesFor(ctx context.Context, db *gorm.DB, tt domain.TargetType, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Where("target_type = ? AND target_id IN ?", tt, ids).Delete(&domain.Vote{}).Error
}

// DeleteVotesByUser removes every vote cast by a user and returns the
// targets touched so cached counts can be recomputed.
func DeleteVotesByUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Vote, error) {
	var rows []domain.Vote
	if err := db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	err := db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Vote{}).Error
	return rows, err
}
