package models

// StoneProgress is the shard counter for one (user, stone) pair.
// Created lazily on the first shard contribution, never deleted.
// CurrentShards may exceed ShardTarget only inside the AddShards
// transaction, between the increment and the overflow reset.
type StoneProgress struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"not null;uniqueIndex:idx_stone_progress_user_slug" json:"external_user_id"`
	StoneSlug      string `gorm:"not null;uniqueIndex:idx_stone_progress_user_slug" json:"stone_slug"`

	CurrentShards int64 `gorm:"not null;default:0" json:"current_shards"`
	ShardTarget   int64 `gorm:"not null" json:"shard_target"` // copied from the catalog at creation

	Timestamps
}
