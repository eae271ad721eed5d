package services

import (
	"fmt"
	"log"

	"stone-progression-system/models"
	"stone-progression-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// EnsureCatalog idempotently upserts every statically-known stone by slug.
// Safe to call on every process start; existing rows only get their
// descriptive fields refreshed, identity (slug) and award history are
// untouched. Only connectivity failures propagate.
func (s *CatalogService) EnsureCatalog() error {
	stones := make([]models.StoneType, len(models.StoneCatalog))
	copy(stones, models.StoneCatalog)

	if err := s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"theme",
			"description",
			"rarity",
			"shard_target",
			"updated_at",
		}),
	}).Create(&stones).Error; err != nil {
		return fmt.Errorf("failed to seed stone catalog: %w", err)
	}

	log.Printf("✅ Stone catalog ensured (%d definitions)", len(stones))
	return nil
}

// GetStone loads a catalog row by slug. An unknown slug is a configuration
// error for engine callers, so it is surfaced immediately, never retried.
func (s *CatalogService) GetStone(stoneSlug string) (*models.StoneType, error) {
	var st models.StoneType
	if err := s.DB.Where("slug = ?", stoneSlug).First(&st).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("unknown stone slug %q", stoneSlug)
		}
		return nil, err
	}
	return &st, nil
}

// --- Admin Handlers ---

var titleCaser = cases.Title(language.English)

// CreateStone registers a new stone definition (Admin only). The slug is
// derived from the name; a collision with an existing slug is rejected so
// catalog identity stays immutable.
func (s *CatalogService) CreateStone(c *fiber.Ctx) error {
	var req struct {
		Name        string             `json:"name" validate:"required"`
		Theme       string             `json:"theme"`
		Description string             `json:"description"`
		Rarity      models.StoneRarity `json:"rarity" validate:"omitempty,oneof=common rare epic legendary"`
		ShardTarget int64              `json:"shard_target" validate:"omitempty,min=1"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}
	if req.Rarity == "" {
		req.Rarity = models.RarityCommon
	}
	if req.ShardTarget <= 0 {
		req.ShardTarget = 10
	}

	stone := models.StoneType{
		Slug:        slug.Make(req.Name),
		Name:        titleCaser.String(req.Name),
		Theme:       req.Theme,
		Description: req.Description,
		Rarity:      req.Rarity,
		ShardTarget: req.ShardTarget,
	}

	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&stone)
	if res.Error != nil {
		log.Printf("DB Error creating stone: %v", res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create stone"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Stone with this slug already exists", "slug": stone.Slug})
	}

	return c.Status(fiber.StatusCreated).JSON(stone)
}

// UploadStoneIcon uploads stone art to R2 and stores the CDN URL (Admin only).
func (s *CatalogService) UploadStoneIcon(c *fiber.Ctx) error {
	stoneSlug := c.Params("slug")

	var stone models.StoneType
	if err := s.DB.Where("slug = ?", stoneSlug).First(&stone).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Stone not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	fileHeader, err := c.FormFile("icon")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
	}

	key := fmt.Sprintf("stones/%s%s", stone.Slug, utils.FileExt(fileHeader.Filename))
	url, err := utils.UploadIcon(fileHeader, key)
	if err != nil {
		log.Printf("❌ Icon upload failed for stone %s: %v", stone.Slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload icon"})
	}

	if err := s.DB.Model(&stone).Update("icon_url", url).Error; err != nil {
		log.Printf("DB Error saving icon URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save icon URL"})
	}

	return c.JSON(fiber.Map{"slug": stone.Slug, "icon_url": url})
}

// ListStones returns the full catalog (public, read-only).
func (s *CatalogService) ListStones(c *fiber.Ctx) error {
	var stones []models.StoneType
	if err := s.DB.Order("rarity, slug").Find(&stones).Error; err != nil {
		log.Printf("DB Error fetching catalog: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch catalog"})
	}
	return c.JSON(stones)
}
