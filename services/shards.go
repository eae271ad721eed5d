package services

import (
	"fmt"
	"log"

	"stone-progression-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShardResult reports what one contribution did.
type ShardResult struct {
	Leveled  bool               `json:"leveled"`
	Overflow int64              `json:"overflow"`
	Award    *models.StoneAward `json:"award,omitempty"` // set when the threshold award was freshly granted
}

// ShardService is the progress ledger: per (user, stone) shard counters
// with a fixed target copied from the catalog.
type ShardService struct {
	DB     *gorm.DB
	Awards *AwardService
}

func NewShardService(db *gorm.DB, awards *AwardService) *ShardService {
	return &ShardService{DB: db, Awards: awards}
}

// AddShards contributes shards toward a stone as one atomic unit: the row
// is created on first contribution, locked, incremented, and — when the
// target is reached — reset to the overflow with exactly one threshold
// award emitted in the same transaction. Two concurrent contributions
// serialize on the row lock, so neither a double award nor a lost
// increment is possible.
//
// Callers should pass the returned Award to AwardService.AttachLore after
// this returns; lore is never fetched inside the transaction.
func (s *ShardService) AddShards(externalUserID, stoneSlug string, amount int64, relatedIDs []string) (*ShardResult, error) {
	if amount <= 0 {
		return &ShardResult{}, nil
	}
	def := models.StoneBySlug(stoneSlug)
	if def == nil {
		return nil, fmt.Errorf("unknown stone slug %q", stoneSlug)
	}

	result := &ShardResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Lazy create; a concurrent first contribution loses the insert race
		// harmlessly and falls through to the locked read.
		seed := models.StoneProgress{
			ExternalUserID: externalUserID,
			StoneSlug:      stoneSlug,
			CurrentShards:  0,
			ShardTarget:    def.ShardTarget,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "stone_slug"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}

		var entry models.StoneProgress
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ? AND stone_slug = ?", externalUserID, stoneSlug).
			First(&entry).Error; err != nil {
			return err
		}

		entry.CurrentShards += amount
		if entry.CurrentShards >= entry.ShardTarget {
			// overflow = (before + amount) - target; carried forward, not discarded
			result.Overflow = entry.CurrentShards - entry.ShardTarget
			result.Leveled = true
			entry.CurrentShards = result.Overflow
		}

		if err := tx.Model(&models.StoneProgress{}).
			Where("id = ?", entry.ID).
			Update("current_shards", entry.CurrentShards).Error; err != nil {
			return err
		}

		if result.Leveled {
			award, err := s.Awards.TryAwardTx(tx, externalUserID, stoneSlug, models.SourceShardThreshold, relatedIDs)
			if err != nil {
				return err
			}
			result.Award = award
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Leveled {
		log.Printf("💠 Shard threshold crossed: %s → %s (overflow %d)", stoneSlug, externalUserID, result.Overflow)
	}
	return result, nil
}

// GetProgress returns all shard counters for a user.
func (s *ShardService) GetProgress(externalUserID string) ([]models.StoneProgress, error) {
	var entries []models.StoneProgress
	err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("stone_slug ASC").
		Find(&entries).Error
	return entries, err
}
