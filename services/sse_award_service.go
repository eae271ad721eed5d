package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"stone-progression-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamUserAwardsSSE streams freshly granted stones for the authenticated
// user so the client can pop the celebration modal in real time.
func (s *AwardService) StreamUserAwardsSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastGrantedAt time.Time

		// Initialize cursor at the user's latest award
		var latest models.StoneAward
		if err := s.DB.
			Where("external_user_id = ?", userID).
			Order("granted_at DESC").
			First(&latest).Error; err == nil {
			lastGrantedAt = latest.GrantedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var newAwards []models.StoneAward

				err := s.DB.
					Where("external_user_id = ? AND granted_at > ?", userID, lastGrantedAt).
					Order("granted_at ASC").
					Find(&newAwards).Error

				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}

				if len(newAwards) == 0 {
					continue
				}

				lastGrantedAt = newAwards[len(newAwards)-1].GrantedAt

				for _, a := range newAwards {
					payload, _ := json.Marshal(a)
					fmt.Fprintf(w,
						"event: stone_award\ndata: %s\n\n",
						payload,
					)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
