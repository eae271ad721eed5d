// services/lore_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"stone-progression-system/models"
)

// LoreServiceClient talks to the hosted text-generation service that writes
// flavor text for freshly granted stones. It is strictly decorative: every
// caller treats failures as non-fatal and the award never depends on it.
type LoreServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type loreResponse struct {
	Lore string `json:"lore"`
}

// NewLoreServiceClient returns nil when LORE_SERVICE_URL is unset —
// the service then runs with lore generation disabled.
func NewLoreServiceClient(baseURL, token string) *LoreServiceClient {
	if baseURL == "" {
		return nil
	}
	return &LoreServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GenerateLore calls the text-generation service for one stone.
func (c *LoreServiceClient) GenerateLore(ctx context.Context, stone *models.StoneType) (string, error) {
	url := fmt.Sprintf("%s/v1/lore", c.BaseURL)

	reqBody := map[string]interface{}{
		"stone_name": stone.Name,
		"theme":      stone.Theme,
		"rarity":     stone.Rarity,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		log.Printf("LoreService /v1/lore returned %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("lore generation failed: %d", resp.StatusCode)
	}

	var out loreResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.Lore, nil
}
