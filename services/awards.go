package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"stone-progression-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loreAttachTimeout bounds the inline, best-effort lore call made right
// after an award commits. The backfill worker retries anything it misses.
const loreAttachTimeout = 3 * time.Second

// AwardService is the append-only award ledger. The unique index on
// (external_user_id, stone_slug) plus insert-or-detect-conflict makes a
// grant atomic: two concurrent TryAward calls for the same pair produce
// exactly one row.
type AwardService struct {
	DB   *gorm.DB
	Lore *LoreServiceClient // nil = lore disabled
}

func NewAwardService(db *gorm.DB, lore *LoreServiceClient) *AwardService {
	return &AwardService{DB: db, Lore: lore}
}

// TryAwardTx attempts to grant a stone inside the caller's transaction.
// Returns the inserted award, or nil when the user already owns the stone
// (no side effects in that case). Lore is NOT attached here — the caller
// must invoke AttachLore after its transaction commits, or leave the row
// for the backfill worker.
func (s *AwardService) TryAwardTx(tx *gorm.DB, externalUserID, stoneSlug string, source models.AwardSource, relatedIDs []string) (*models.StoneAward, error) {
	if models.StoneBySlug(stoneSlug) == nil {
		return nil, fmt.Errorf("unknown stone slug %q", stoneSlug)
	}

	award := models.StoneAward{
		ExternalUserID:   externalUserID,
		StoneSlug:        stoneSlug,
		Source:           source,
		RelatedEntityIDs: relatedIDs,
		GrantedAt:        time.Now().UTC(),
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "stone_slug"}},
		DoNothing: true,
	}).Create(&award)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Already owned; stones are non-repeatable.
		return nil, nil
	}

	log.Printf("🪨 Stone awarded: %s → %s (source: %s)", stoneSlug, externalUserID, source)
	return &award, nil
}

// TryAward grants a stone outside any caller transaction and immediately
// attempts lore enrichment (best-effort, bounded).
func (s *AwardService) TryAward(externalUserID, stoneSlug string, source models.AwardSource, relatedIDs []string) (*models.StoneAward, error) {
	award, err := s.TryAwardTx(s.DB, externalUserID, stoneSlug, source, relatedIDs)
	if err != nil || award == nil {
		return award, err
	}
	s.AttachLore(award)
	return award, nil
}

// AttachLore asks the lore collaborator for flavor text and stores it on
// the committed award. Any failure is logged and swallowed: the award
// stands with empty lore and the backfill worker retries later.
func (s *AwardService) AttachLore(award *models.StoneAward) {
	if s.Lore == nil {
		return
	}
	stone := models.StoneBySlug(award.StoneSlug)
	if stone == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), loreAttachTimeout)
	defer cancel()

	text, err := s.Lore.GenerateLore(ctx, stone)
	if err != nil {
		log.Printf("⚠️  Lore generation failed for award %s (%s): %v — award stands without lore", award.ID, award.StoneSlug, err)
		return
	}

	if err := s.DB.Model(&models.StoneAward{}).
		Where("id = ? AND lore_text = ''", award.ID).
		Update("lore_text", text).Error; err != nil {
		log.Printf("⚠️  Failed to store lore for award %s: %v", award.ID, err)
		return
	}
	award.LoreText = text
}

// HasAward reports current ownership of a stone.
func (s *AwardService) HasAward(externalUserID, stoneSlug string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.StoneAward{}).
		Where("external_user_id = ? AND stone_slug = ?", externalUserID, stoneSlug).
		Count(&count).Error
	return count > 0, err
}

// CountAwards returns the user's total award count (the first-task special
// case keys off this being zero).
func (s *AwardService) CountAwards(externalUserID string) (int64, error) {
	var count int64
	err := s.DB.Model(&models.StoneAward{}).
		Where("external_user_id = ?", externalUserID).
		Count(&count).Error
	return count, err
}

// GetUserAwards returns the user's collection, newest first.
func (s *AwardService) GetUserAwards(externalUserID string) ([]models.StoneAward, error) {
	var awards []models.StoneAward
	err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("granted_at DESC").
		Find(&awards).Error
	return awards, err
}
