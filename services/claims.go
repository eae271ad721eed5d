package services

import (
	"fmt"
	"log"

	"stone-progression-system/models"

	"gorm.io/gorm"
)

// ClaimableStone is the read-only projection the client renders as the
// "ready to claim" shelf.
type ClaimableStone struct {
	Slug          string             `json:"slug"`
	Name          string             `json:"name"`
	Rarity        models.StoneRarity `json:"rarity"`
	IconURL       string             `json:"icon_url"`
	ShardsCurrent int64              `json:"shards_current"`
	ShardsTarget  int64              `json:"shards_target"`
	Ready         bool               `json:"ready"` // false once the stone is already owned
}

const (
	ClaimReasonNotEnoughShards = "NOT_ENOUGH_SHARDS"
)

// ClaimResult is a typed outcome: "not enough shards" is expected, not
// exceptional, so it never surfaces as an error.
type ClaimResult struct {
	OK     bool               `json:"ok"`
	Reason string             `json:"reason,omitempty"`
	Award  *models.StoneAward `json:"award,omitempty"`
}

type ClaimService struct {
	DB     *gorm.DB
	Awards *AwardService
}

func NewClaimService(db *gorm.DB, awards *AwardService) *ClaimService {
	return &ClaimService{DB: db, Awards: awards}
}

// GetClaimable lists progress entries at or past their threshold, joined
// with award ownership so the client knows which are still grantable.
func (s *ClaimService) GetClaimable(externalUserID string) ([]ClaimableStone, error) {
	var out []ClaimableStone
	err := s.DB.Raw(`
		SELECT sp.stone_slug AS slug,
		       st.name,
		       st.rarity,
		       st.icon_url,
		       sp.current_shards AS shards_current,
		       sp.shard_target  AS shards_target,
		       (sa.id IS NULL)  AS ready
		FROM stone_progresses sp
		INNER JOIN stone_types st ON st.slug = sp.stone_slug
		LEFT JOIN stone_awards sa
		       ON sa.external_user_id = sp.external_user_id
		      AND sa.stone_slug = sp.stone_slug
		WHERE sp.external_user_id = ?
		  AND sp.current_shards >= sp.shard_target
		ORDER BY sp.stone_slug ASC
	`, externalUserID).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []ClaimableStone{}
	}
	return out, nil
}

// Claim is the manual claim path: re-checks the threshold atomically,
// subtracts the target (preserving overflow — not a reset to zero) and
// issues a manual_claim award in the same transaction.
func (s *ClaimService) Claim(externalUserID, stoneSlug string) (*ClaimResult, error) {
	if models.StoneBySlug(stoneSlug) == nil {
		return nil, fmt.Errorf("unknown stone slug %q", stoneSlug)
	}

	result := &ClaimResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Conditional subtract: the WHERE clause is the atomic re-check, so
		// two concurrent claims cannot both spend the same shards.
		res := tx.Model(&models.StoneProgress{}).
			Where("external_user_id = ? AND stone_slug = ? AND current_shards >= shard_target", externalUserID, stoneSlug).
			Update("current_shards", gorm.Expr("current_shards - shard_target"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result.Reason = ClaimReasonNotEnoughShards
			return nil
		}

		award, err := s.Awards.TryAwardTx(tx, externalUserID, stoneSlug, models.SourceManualClaim, nil)
		if err != nil {
			return err
		}
		result.OK = true
		result.Award = award // nil when already owned; shards still spent
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.OK && result.Award != nil {
		s.Awards.AttachLore(result.Award)
		log.Printf("🪨 Stone claimed: %s → %s", stoneSlug, externalUserID)
	}
	return result, nil
}
