package application

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
	"github.com/google/uuid"
)

// defaultActor is baked into event fingerprints when the caller does not
// identify itself. It must stay stable; changing it changes every hash.
const defaultActor = "operator"

type FarmService struct {
	repo  domain.FarmRepository
	clock domain.Clock
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewFarmService(repo domain.FarmRepository, clock domain.Clock) *FarmService {
	if clock == nil {
		clock = systemClock{}
	}
	return &FarmService{repo: repo, clock: clock}
}

func (s *FarmService) CreatePlant(ctx context.Context, strain, location, by string) (domain.Plant, string, error) {
	if strings.TrimSpace(strain) == "" || strings.TrimSpace(location) == "" {
		return domain.Plant{}, "", errors.New("strain and location are required")
	}

	now := s.clock.Now()
	p, err := s.repo.CreatePlant(ctx, domain.Plant{
		Tag:            uuid.NewString(),
		Strain:         strings.TrimSpace(strain),
		Location:       strings.TrimSpace(location),
		Stage:          domain.StageSeed,
		PlantedAt:      now,
		StageChangedAt: &now,
	})
	if err != nil {
		return domain.Plant{}, "", err
	}
	return p, fingerprintPlant(p, by), nil
}

// GerminateFromSeed consumes one unit of the named seed item before creating
// the plant, so a short stock fails the whole operation with nothing written.
// The plant enters the lifecycle at germination rather than seed.
func (s *FarmService) GerminateFromSeed(ctx context.Context, seedItemID uint, strain, location, by string) (domain.Plant, string, error) {
	if seedItemID == 0 {
		return domain.Plant{}, "", errors.New("seed_item_id is required")
	}
	if strings.TrimSpace(strain) == "" || strings.TrimSpace(location) == "" {
		return domain.Plant{}, "", errors.New("strain and location are required")
	}

	if _, err := s.repo.ReduceInventoryQuantity(ctx, seedItemID, 1); err != nil {
		return domain.Plant{}, "", err
	}

	now := s.clock.Now()
	p, err := s.repo.CreatePlant(ctx, domain.Plant{
		Tag:            uuid.NewString(),
		Strain:         strings.TrimSpace(strain),
		Location:       strings.TrimSpace(location),
		Stage:          domain.StageGermination,
		PlantedAt:      now,
		StageChangedAt: &now,
	})
	if err != nil {
		return domain.Plant{}, "", err
	}
	return p, fingerprintPlant(p, by), nil
}

func (s *FarmService) GetPlant(ctx context.Context, id uint) (domain.Plant, error) {
	if id == 0 {
		return domain.Plant{}, errors.New("plant_id is required")
	}
	return s.repo.GetPlantByID(ctx, id)
}

func (s *FarmService) ListPlants(ctx context.Context, stage *domain.Stage, query string, limit int) ([]domain.Plant, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListPlants(ctx, stage, query, limit)
}

// RelocatePlant overwrites the free-text location. Stage fields are not
// touched.
func (s *FarmService) RelocatePlant(ctx context.Context, id uint, newLocation string) (domain.Plant, error) {
	if id == 0 || strings.TrimSpace(newLocation) == "" {
		return domain.Plant{}, errors.New("plant_id and location are required")
	}
	return s.repo.UpdatePlantLocation(ctx, id, strings.TrimSpace(newLocation))
}

// FlipPlant moves a vegetative plant to flowering and stamps flipped_at. The
// exact-stage check and the table lookup are both documented contracts; the
// wrapper rejects anything that is not exactly vegetative.
func (s *FarmService) FlipPlant(ctx context.Context, id uint) (domain.Plant, error) {
	return s.transition(ctx, id, stagePtr(domain.StageVegetative), domain.StageFlowering)
}

// HarvestPlant moves a flowering plant to harvest, stamps harvested_at and
// latches the one-way harvested flag.
func (s *FarmService) HarvestPlant(ctx context.Context, id uint) (domain.Plant, error) {
	return s.transition(ctx, id, stagePtr(domain.StageFlowering), domain.StageHarvest)
}

func (s *FarmService) DryPlant(ctx context.Context, id uint) (domain.Plant, error) {
	return s.transition(ctx, id, stagePtr(domain.StageHarvest), domain.StageDrying)
}

func (s *FarmService) MarkPlantDried(ctx context.Context, id uint) (domain.Plant, error) {
	return s.transition(ctx, id, stagePtr(domain.StageDrying), domain.StageDried)
}

// ChangePlantStage is the generic table-guarded transition. The specific
// wrappers above add an exact source-stage check on top of the same table.
func (s *FarmService) ChangePlantStage(ctx context.Context, id uint, target domain.Stage) (domain.Plant, error) {
	return s.transition(ctx, id, nil, target)
}

func (s *FarmService) transition(ctx context.Context, id uint, exact *domain.Stage, target domain.Stage) (domain.Plant, error) {
	if id == 0 {
		return domain.Plant{}, errors.New("plant_id is required")
	}
	p, err := s.repo.GetPlantByID(ctx, id)
	if err != nil {
		return domain.Plant{}, err
	}
	if exact != nil && p.Stage != *exact {
		return domain.Plant{}, domain.ErrInvalidTransition
	}
	if !domain.CanTransition(p.Stage, target) {
		return domain.Plant{}, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	change := domain.StageChange{To: target, At: now}
	switch target {
	case domain.StageFlowering:
		change.FlippedAt = &now
	case domain.StageHarvest:
		change.HarvestedAt = &now
		change.Harvested = true
	case domain.StageDried:
		change.DriedAt = &now
	}
	return s.repo.TransitionPlant(ctx, id, p.Stage, change)
}

// DeletePlant hard-deletes the plant after recording a deletion log entry in
// the audit trail. The audit write is fire-and-forget.
func (s *FarmService) DeletePlant(ctx context.Context, id uint, reason, by string) (domain.DeletionLog, error) {
	if id == 0 {
		return domain.DeletionLog{}, errors.New("plant_id is required")
	}
	if strings.TrimSpace(reason) == "" {
		return domain.DeletionLog{}, errors.New("reason is required")
	}

	p, err := s.repo.GetPlantByID(ctx, id)
	if err != nil {
		return domain.DeletionLog{}, err
	}

	record := domain.DeletionLog{
		Type:      "plant_deletion",
		PlantID:   p.ID,
		Strain:    p.Strain,
		Stage:     p.Stage,
		Location:  p.Location,
		Reason:    strings.TrimSpace(reason),
		DeletedBy: defaultString(by, defaultActor),
		DeletedAt: s.clock.Now(),
	}
	metadata, _ := json.Marshal(record)
	_ = s.repo.CreateAuditLog(ctx, domain.AuditLog{Action: "plants.delete", TargetType: "plant", TargetID: &p.ID, Metadata: string(metadata)})

	if err := s.repo.DeletePlant(ctx, id); err != nil {
		return domain.DeletionLog{}, err
	}
	return record, nil
}

// CreateHarvest records a harvest event for a flowering plant and transitions
// the plant to harvest. The stage guard runs before the harvest row is
// written, so a rejected transition leaves no orphaned record behind.
func (s *FarmService) CreateHarvest(ctx context.Context, plantID uint, yieldGrams float64, status, by string) (domain.Harvest, string, error) {
	if plantID == 0 {
		return domain.Harvest{}, "", errors.New("plant_id is required")
	}
	if yieldGrams < 0 {
		return domain.Harvest{}, "", errors.New("yield_grams must not be negative")
	}
	status = defaultString(status, domain.HarvestStatusDrying)
	if status != domain.HarvestStatusDrying && status != domain.HarvestStatusDried {
		return domain.Harvest{}, "", errors.New(`status must be "drying" or "dried"`)
	}

	p, err := s.repo.GetPlantByID(ctx, plantID)
	if err != nil {
		return domain.Harvest{}, "", err
	}
	if p.Stage != domain.StageFlowering || !domain.CanTransition(p.Stage, domain.StageHarvest) {
		return domain.Harvest{}, "", domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	h, err := s.repo.CreateHarvest(ctx, domain.Harvest{
		PlantID:     p.ID,
		YieldGrams:  yieldGrams,
		Status:      status,
		HarvestedAt: now,
	})
	if err != nil {
		return domain.Harvest{}, "", err
	}

	change := domain.StageChange{To: domain.StageHarvest, At: now, HarvestedAt: &now, Harvested: true}
	if _, err := s.repo.TransitionPlant(ctx, p.ID, domain.StageFlowering, change); err != nil {
		return domain.Harvest{}, "", err
	}
	return h, fingerprintHarvest(h, by), nil
}

func (s *FarmService) ListHarvests(ctx context.Context, limit int) ([]domain.Harvest, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListHarvests(ctx, limit)
}

func (s *FarmService) CreateInventoryItem(ctx context.Context, name, category string, quantity int, unit string) (domain.InventoryItem, error) {
	if strings.TrimSpace(name) == "" {
		return domain.InventoryItem{}, errors.New("name is required")
	}
	if quantity < 0 {
		return domain.InventoryItem{}, errors.New("quantity must not be negative")
	}
	return s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
		Name:     strings.TrimSpace(name),
		Category: strings.TrimSpace(category),
		Quantity: quantity,
		Unit:     defaultString(unit, "unit"),
	})
}

func (s *FarmService) ListInventoryItems(ctx context.Context, query string, limit int) ([]domain.InventoryItem, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListInventoryItems(ctx, query, limit)
}

// ReduceQuantity is all-or-nothing: short stock fails the call and leaves the
// item untouched.
func (s *FarmService) ReduceQuantity(ctx context.Context, itemID uint, amount int) (domain.InventoryItem, error) {
	if itemID == 0 {
		return domain.InventoryItem{}, errors.New("item_id is required")
	}
	if amount <= 0 {
		return domain.InventoryItem{}, errors.New("amount must be positive")
	}
	return s.repo.ReduceInventoryQuantity(ctx, itemID, amount)
}

// Occupancy groups live plants by the room segment of their location label.
// Harvested plants no longer occupy grow space and are excluded.
func (s *FarmService) Occupancy(ctx context.Context) ([]domain.RoomOccupancy, error) {
	plants, err := s.repo.ListPlants(ctx, nil, "", 2000)
	if err != nil {
		return nil, err
	}

	byRoom := make(map[string]*domain.RoomOccupancy)
	for _, p := range plants {
		if p.Harvested {
			continue
		}
		room := roomFromLocation(p.Location)
		agg, ok := byRoom[room]
		if !ok {
			agg = &domain.RoomOccupancy{Room: room, Stages: make(map[domain.Stage]int)}
			byRoom[room] = agg
		}
		agg.Plants++
		agg.Stages[p.Stage]++
	}

	result := make([]domain.RoomOccupancy, 0, len(byRoom))
	for _, agg := range byRoom {
		result = append(result, *agg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Room < result[j].Room })
	return result, nil
}

func roomFromLocation(location string) string {
	room := strings.TrimSpace(strings.SplitN(location, "/", 2)[0])
	if room == "" {
		return "unassigned"
	}
	return room
}

func stagePtr(s domain.Stage) *domain.Stage { return &s }

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
