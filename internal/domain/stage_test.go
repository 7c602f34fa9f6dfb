package domain

import (
	"testing"
	"time"
)

func TestCanTransitionFollowsLinearOrder(t *testing.T) {
	order := Stages()
	for i, from := range order {
		for j, target := range order {
			got := CanTransition(from, target)
			want := j == i+1
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, target, got, want)
			}
		}
	}
}

func TestCanTransitionRejectsUnknownStages(t *testing.T) {
	if CanTransition("sprouting", StageSeedling) {
		t.Fatal("unknown source stage must not transition")
	}
	if CanTransition(StageSeed, "sprouting") {
		t.Fatal("unknown target stage must not be reachable")
	}
}

func TestCuredIsTerminal(t *testing.T) {
	for _, target := range Stages() {
		if CanTransition(StageCured, target) {
			t.Fatalf("cured must not transition to %s", target)
		}
	}
}

func TestStageValid(t *testing.T) {
	for _, s := range Stages() {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Stage("").Valid() || Stage("budding").Valid() {
		t.Error("non-lifecycle values must be invalid")
	}
}

func TestDaysInStage(t *testing.T) {
	planted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	changed := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)

	p := Plant{PlantedAt: planted}
	if got := DaysInStage(p, now); got != 14 {
		t.Errorf("without stage change: got %d, want 14", got)
	}

	p.StageChangedAt = &changed
	if got := DaysInStage(p, now); got != 5 {
		t.Errorf("with stage change: got %d, want 5", got)
	}

	if got := DaysInStage(p, changed.Add(-time.Hour)); got != 0 {
		t.Errorf("clock behind stamp: got %d, want 0", got)
	}
}

func TestEstimatedDaysToFlip(t *testing.T) {
	changed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := Plant{Stage: StageVegetative, PlantedAt: changed, StageChangedAt: &changed}

	got, ok := EstimatedDaysToFlip(p, changed.AddDate(0, 0, 10))
	if !ok || got != 32 {
		t.Errorf("day 10: got %d/%v, want 32/true", got, ok)
	}

	got, ok = EstimatedDaysToFlip(p, changed.AddDate(0, 0, 60))
	if !ok || got != 0 {
		t.Errorf("overdue: got %d/%v, want 0/true", got, ok)
	}

	p.Stage = StageFlowering
	if _, ok := EstimatedDaysToFlip(p, changed); ok {
		t.Error("estimate must be undefined outside vegetative")
	}
}
