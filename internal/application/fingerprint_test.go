package application

import (
	"testing"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
)

func TestFingerprintPlantDeterministic(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p := domain.Plant{ID: 7, Strain: "Blue Dream", Location: "Room 1", PlantedAt: at}

	first := fingerprintPlant(p, "operator")
	second := fingerprintPlant(p, "operator")
	if first != second {
		t.Fatalf("same payload produced different hashes: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("hash length = %d, want 64", len(first))
	}
	for _, c := range first {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("hash not lowercase hex: %s", first)
		}
	}
}

func TestFingerprintPlantDefaultsActor(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	p := domain.Plant{ID: 7, Strain: "Blue Dream", Location: "Room 1", PlantedAt: at}

	if fingerprintPlant(p, "") != fingerprintPlant(p, "operator") {
		t.Error("empty actor must hash the same as the default actor")
	}
	if fingerprintPlant(p, "alice") == fingerprintPlant(p, "operator") {
		t.Error("different actors must produce different hashes")
	}
}

func TestFingerprintHarvestSensitiveToFields(t *testing.T) {
	at := time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)
	h := domain.Harvest{ID: 3, PlantID: 7, YieldGrams: 500, Status: domain.HarvestStatusDrying, HarvestedAt: at}

	base := fingerprintHarvest(h, "operator")

	h2 := h
	h2.YieldGrams = 501
	if fingerprintHarvest(h2, "operator") == base {
		t.Error("yield change must change the hash")
	}

	h3 := h
	h3.HarvestedAt = at.Add(time.Second)
	if fingerprintHarvest(h3, "operator") == base {
		t.Error("timestamp change must change the hash")
	}
}
