package application

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
)

// Event fingerprints are SHA-256 hex digests over a canonical JSON payload.
// Key order is fixed by struct field order so a given event always serializes
// to the same bytes. Each digest covers only its own event's fields; there is
// no chaining and no verification path that recomputes them.

type plantEventPayload struct {
	Type      string `json:"type"`
	ID        uint   `json:"id"`
	Strain    string `json:"strain"`
	Location  string `json:"location"`
	PlantedAt string `json:"plantedAt"`
	By        string `json:"by"`
}

type harvestEventPayload struct {
	Type        string  `json:"type"`
	ID          uint    `json:"id"`
	PlantID     uint    `json:"plantId"`
	YieldGrams  float64 `json:"yieldGrams"`
	Status      string  `json:"status"`
	HarvestedAt string  `json:"harvestedAt"`
	By          string  `json:"by"`
}

func fingerprintPlant(p domain.Plant, by string) string {
	return fingerprint(plantEventPayload{
		Type:      "plant",
		ID:        p.ID,
		Strain:    p.Strain,
		Location:  p.Location,
		PlantedAt: p.PlantedAt.Format(time.RFC3339),
		By:        defaultString(by, defaultActor),
	})
}

func fingerprintHarvest(h domain.Harvest, by string) string {
	return fingerprint(harvestEventPayload{
		Type:        "harvest",
		ID:          h.ID,
		PlantID:     h.PlantID,
		YieldGrams:  h.YieldGrams,
		Status:      h.Status,
		HarvestedAt: h.HarvestedAt.Format(time.RFC3339),
		By:          defaultString(by, defaultActor),
	})
}

func fingerprint(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
