package models

import (
	"time"
)

// StoneRarity follows the catalog's four tiers
type StoneRarity string

const (
	RarityCommon    StoneRarity = "common"
	RarityRare      StoneRarity = "rare"
	RarityEpic      StoneRarity = "epic"
	RarityLegendary StoneRarity = "legendary"
)

// StoneType: static catalog definition of a collectible stone.
// Identity is the slug; descriptive fields may be edited by admins,
// the slug never changes and rows are never deleted at runtime.
type StoneType struct {
	ID          string      `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Slug        string      `gorm:"uniqueIndex;not null" json:"slug"` // e.g., "deep-focus"
	Name        string      `gorm:"not null" json:"name"`             // "Stone of Deep Focus"
	Theme       string      `json:"theme"`                            // short motif used by the lore generator
	Description string      `json:"description"`
	IconURL     string      `gorm:"type:text" json:"icon_url"` // R2/CDN URL to the stone art
	Rarity      StoneRarity `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	ShardTarget int64       `gorm:"not null;default:10" json:"shard_target"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Stone slugs referenced by the engine (shard contributions, rules,
// the first-task grant). Must match StoneCatalog entries.
const (
	StoneClarity     = "clarity"
	StoneConsistency = "consistency"
	StoneLearning    = "learning"
	StoneDeepFocus   = "deep-focus"
	StoneRecovery    = "recovery"
	StoneCourage     = "courage"
	StoneMastery     = "mastery"
)

// StoneCatalog is the statically-known reward set, upserted by slug at
// startup (see services.CatalogService.EnsureCatalog).
var StoneCatalog = []StoneType{
	{
		Slug:        StoneClarity,
		Name:        "Stone of Clarity",
		Theme:       "a first step out of the fog",
		Description: "Complete your very first task",
		Rarity:      RarityCommon,
		ShardTarget: 5,
	},
	{
		Slug:        StoneConsistency,
		Name:        "Stone of Consistency",
		Theme:       "water wearing down rock",
		Description: "Stay active five days in a row",
		Rarity:      RarityRare,
		ShardTarget: 7,
	},
	{
		Slug:        StoneLearning,
		Name:        "Scholar's Stone",
		Theme:       "curiosity rewarded",
		Description: "Review flashcards and pass a quiz in a single day",
		Rarity:      RarityRare,
		ShardTarget: 10,
	},
	{
		Slug:        StoneDeepFocus,
		Name:        "Stone of Deep Focus",
		Theme:       "stillness at the center of effort",
		Description: "Log six deep-work pomodoros within a week",
		Rarity:      RarityEpic,
		ShardTarget: 10,
	},
	{
		Slug:        StoneRecovery,
		Name:        "Stone of Recovery",
		Theme:       "rest as part of the work",
		Description: "Write a reflection three days running",
		Rarity:      RarityRare,
		ShardTarget: 10,
	},
	{
		Slug:        StoneCourage,
		Name:        "Stone of Courage",
		Theme:       "shipping the thing you dreaded",
		Description: "Finish a big high-priority task you'd been putting off",
		Rarity:      RarityEpic,
		ShardTarget: 10,
	},
	{
		Slug:        StoneMastery,
		Name:        "Stone of Mastery",
		Theme:       "a long road walked without hurry",
		Description: "100 deep-work blocks and a 28-day streak",
		Rarity:      RarityLegendary,
		ShardTarget: 30,
	},
}

var stoneBySlug = func() map[string]*StoneType {
	m := make(map[string]*StoneType, len(StoneCatalog))
	for i := range StoneCatalog {
		m[StoneCatalog[i].Slug] = &StoneCatalog[i]
	}
	return m
}()

// StoneBySlug returns the static catalog definition, or nil for an
// unknown slug (a configuration error for callers — see services).
func StoneBySlug(slug string) *StoneType {
	return stoneBySlug[slug]
}
