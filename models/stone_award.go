package models

import "time"

// AwardSource records which path issued a stone.
type AwardSource string

const (
	SourceFirstTime      AwardSource = "first_time"
	SourceShardThreshold AwardSource = "shard_threshold"
	SourceRule           AwardSource = "rule"
	SourceManualClaim    AwardSource = "manual_claim"
)

// StoneAward is the append-only award ledger: the source of truth for
// "does this user already own this stone". The unique index on
// (external_user_id, stone_slug) is what makes TryAward's
// insert-or-detect-conflict atomic; no stone in the current catalog is
// repeatable. Rows are never updated except to attach lore text, and
// never deleted.
type StoneAward struct {
	ID               string      `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID   string      `gorm:"not null;uniqueIndex:idx_stone_award_user_slug" json:"external_user_id"`
	StoneSlug        string      `gorm:"not null;uniqueIndex:idx_stone_award_user_slug" json:"stone_slug"`
	Source           AwardSource `gorm:"type:varchar(32);not null" json:"source"`
	RelatedEntityIDs []string    `gorm:"type:jsonb;serializer:json" json:"related_entity_ids,omitempty"` // task/session ids that led to the grant
	LoreText         string      `gorm:"type:text" json:"lore_text"`                                     // empty until the lore collaborator responds
	GrantedAt        time.Time   `gorm:"autoCreateTime;index" json:"granted_at"`
}
