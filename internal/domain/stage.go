package domain

import "time"

// Stage is a plant's position in the cultivation lifecycle. Stages form a
// strict linear progression; the only allowed move from any stage is to its
// immediate successor, and Cured is terminal.
type Stage string

const (
	StageSeed        Stage = "seed"
	StageGermination Stage = "germination"
	StageSeedling    Stage = "seedling"
	StageVegetative  Stage = "vegetative"
	StageFlowering   Stage = "flowering"
	StageHarvest     Stage = "harvest"
	StageDrying      Stage = "drying"
	StageDried       Stage = "dried"
	StageCured       Stage = "cured"
)

// nominalVegetativeDays is the advisory vegetative period used by
// EstimatedDaysToFlip. It is not enforced anywhere.
const nominalVegetativeDays = 42

// stageTransitions is the full transition table. Anything absent is invalid;
// Cured maps to an empty set on purpose.
var stageTransitions = map[Stage][]Stage{
	StageSeed:        {StageGermination},
	StageGermination: {StageSeedling},
	StageSeedling:    {StageVegetative},
	StageVegetative:  {StageFlowering},
	StageFlowering:   {StageHarvest},
	StageHarvest:     {StageDrying},
	StageDrying:      {StageDried},
	StageDried:       {StageCured},
	StageCured:       {},
}

func (s Stage) String() string { return string(s) }

// Valid reports whether s is one of the nine lifecycle stages.
func (s Stage) Valid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// Stages returns every lifecycle stage in progression order.
func Stages() []Stage {
	return []Stage{
		StageSeed, StageGermination, StageSeedling, StageVegetative,
		StageFlowering, StageHarvest, StageDrying, StageDried, StageCured,
	}
}

// CanTransition reports whether a plant currently at from may move to target.
// It is a pure predicate over the transition table and has no side effects.
func CanTransition(from, target Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == target {
			return true
		}
	}
	return false
}

// DaysInStage returns whole days elapsed since the plant's last stage change,
// falling back to the planting time when no change has been recorded.
func DaysInStage(p Plant, now time.Time) int {
	since := p.PlantedAt
	if p.StageChangedAt != nil {
		since = *p.StageChangedAt
	}
	d := int(now.Sub(since).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// EstimatedDaysToFlip returns the advisory number of days left in the nominal
// vegetative period. It is only meaningful while the plant is vegetative; for
// every other stage it returns 0 and false.
func EstimatedDaysToFlip(p Plant, now time.Time) (int, bool) {
	if p.Stage != StageVegetative {
		return 0, false
	}
	remaining := nominalVegetativeDays - DaysInStage(p, now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
