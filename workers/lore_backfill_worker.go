// workers/lore_backfill_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"stone-progression-system/models"
	"stone-progression-system/services"

	"gorm.io/gorm"
)

// LoreBackfillWorker retries lore generation for awards that committed
// without flavor text (collaborator down, timed out, or disabled at grant
// time). The award itself is already durable; this only decorates it.
type LoreBackfillWorker struct {
	DB        *gorm.DB
	Lore      *services.LoreServiceClient
	BatchSize int
}

func NewLoreBackfillWorker(db *gorm.DB, lore *services.LoreServiceClient) *LoreBackfillWorker {
	return &LoreBackfillWorker{
		DB:        db,
		Lore:      lore,
		BatchSize: 20,
	}
}

// PollLorelessAwards runs until ctx is cancelled. On a failed poll the
// interval backs off (doubling up to 8×) so an extended lore-service
// outage doesn't hammer it; a clean poll resets the cadence.
func PollLorelessAwards(ctx context.Context, w *LoreBackfillWorker, pollInterval time.Duration) {
	if w.Lore == nil {
		log.Println("Lore backfill disabled (no LORE_SERVICE_URL configured)")
		return
	}
	log.Println("Starting lore backfill polling...")

	interval := pollInterval
	maxInterval := pollInterval * 8
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Lore backfill polling stopped.")
			return
		case <-timer.C:
			ok := w.backfillBatch(ctx)
			if ok {
				interval = pollInterval
			} else if interval < maxInterval {
				interval *= 2
			}
			timer.Reset(interval)
		}
	}
}

// backfillBatch enriches up to BatchSize loreless awards; reports whether
// every generation attempt succeeded.
func (w *LoreBackfillWorker) backfillBatch(ctx context.Context) bool {
	var awards []models.StoneAward
	if err := w.DB.
		Where("lore_text = ''").
		Order("granted_at ASC").
		Limit(w.BatchSize).
		Find(&awards).Error; err != nil {
		log.Printf("❌ Lore backfill query failed: %v", err)
		return false
	}
	if len(awards) == 0 {
		return true
	}

	log.Printf("📜 Backfilling lore for %d award(s)...", len(awards))
	allOK := true
	for _, award := range awards {
		stone := models.StoneBySlug(award.StoneSlug)
		if stone == nil {
			// Orphaned slug (catalog edited by hand); skip rather than retry forever.
			log.Printf("⚠️ Award %s references unknown stone %q, skipping", award.ID, award.StoneSlug)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		text, err := w.Lore.GenerateLore(callCtx, stone)
		cancel()
		if err != nil {
			log.Printf("⚠️ Lore generation still failing for award %s (%s): %v", award.ID, award.StoneSlug, err)
			allOK = false
			continue
		}

		if err := w.DB.Model(&models.StoneAward{}).
			Where("id = ? AND lore_text = ''", award.ID).
			Update("lore_text", text).Error; err != nil {
			log.Printf("❌ Failed to store backfilled lore for award %s: %v", award.ID, err)
			allOK = false
		}
	}
	return allOK
}
