package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
)

func newTestRepo(t *testing.T) *FarmRepository {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "seedtrace_test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewFarmRepository(db)
}

func seedPlant(t *testing.T, repo *FarmRepository, tag string, stage domain.Stage) domain.Plant {
	t.Helper()
	now := time.Now().UTC()
	p, err := repo.CreatePlant(context.Background(), domain.Plant{
		Tag:            tag,
		Strain:         "Blue Dream",
		Location:       "Room 1 / Bench 1",
		Stage:          stage,
		PlantedAt:      now,
		StageChangedAt: &now,
	})
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	return p
}

func TestTransitionPlantGuardsExpectedStage(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := seedPlant(t, repo, "PLT-001", domain.StageVegetative)

	at := time.Now().UTC()
	moved, err := repo.TransitionPlant(ctx, p.ID, domain.StageVegetative, domain.StageChange{
		To:        domain.StageFlowering,
		At:        at,
		FlippedAt: &at,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if moved.Stage != domain.StageFlowering {
		t.Fatalf("stage = %s, want flowering", moved.Stage)
	}
	if moved.FlippedAt == nil {
		t.Fatal("flippedAt not stamped")
	}

	// The row is no longer vegetative, so a second writer holding a stale
	// expectation must lose.
	_, err = repo.TransitionPlant(ctx, p.ID, domain.StageVegetative, domain.StageChange{
		To: domain.StageFlowering,
		At: at,
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("stale transition: err = %v, want ErrInvalidTransition", err)
	}

	got, err := repo.GetPlantByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get plant: %v", err)
	}
	if got.Stage != domain.StageFlowering {
		t.Fatalf("stage after stale write = %s", got.Stage)
	}
}

func TestTransitionPlantMissingRow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.TransitionPlant(ctx, 999, domain.StageSeed, domain.StageChange{
		To: domain.StageGermination,
		At: time.Now().UTC(),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTransitionPlantStampsHarvestFlags(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := seedPlant(t, repo, "PLT-002", domain.StageFlowering)

	at := time.Now().UTC()
	moved, err := repo.TransitionPlant(ctx, p.ID, domain.StageFlowering, domain.StageChange{
		To:          domain.StageHarvest,
		At:          at,
		HarvestedAt: &at,
		Harvested:   true,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !moved.Harvested || moved.HarvestedAt == nil {
		t.Fatalf("harvest flags not stamped: %+v", moved)
	}
}

func TestReduceInventoryQuantity(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	item, err := repo.CreateInventoryItem(ctx, domain.InventoryItem{Name: "Blue Dream Seeds", Category: "seeds", Quantity: 2, Unit: "seed"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	got, err := repo.ReduceInventoryQuantity(ctx, item.ID, 1)
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if got.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", got.Quantity)
	}

	if _, err := repo.ReduceInventoryQuantity(ctx, item.ID, 5); !errors.Is(err, domain.ErrInsufficientQuantity) {
		t.Fatalf("short stock: err = %v, want ErrInsufficientQuantity", err)
	}
	got, _ = repo.GetInventoryItemByID(ctx, item.ID)
	if got.Quantity != 1 {
		t.Fatalf("quantity after rejected reduce = %d, want 1", got.Quantity)
	}

	if _, err := repo.ReduceInventoryQuantity(ctx, 999, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing item: err = %v, want ErrNotFound", err)
	}
}

func TestListPlantsFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedPlant(t, repo, "PLT-010", domain.StageVegetative)
	seedPlant(t, repo, "PLT-011", domain.StageVegetative)
	seedPlant(t, repo, "PLT-012", domain.StageFlowering)

	veg := domain.StageVegetative
	got, err := repo.ListPlants(ctx, &veg, "", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("vegetative plants = %d, want 2", len(got))
	}

	byTag, err := repo.ListPlants(ctx, nil, "PLT-012", 50)
	if err != nil {
		t.Fatalf("list by tag: %v", err)
	}
	if len(byTag) != 1 || byTag[0].Tag != "PLT-012" {
		t.Fatalf("tag search = %+v", byTag)
	}
}

func TestDeletePlant(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := seedPlant(t, repo, "PLT-020", domain.StageSeedling)

	if err := repo.DeletePlant(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetPlantByID(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get deleted: err = %v, want ErrNotFound", err)
	}
	if err := repo.DeletePlant(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestHarvestsOrderedNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := seedPlant(t, repo, "PLT-030", domain.StageFlowering)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		_, err := repo.CreateHarvest(ctx, domain.Harvest{
			PlantID:     p.ID,
			YieldGrams:  float64(100 * (i + 1)),
			Status:      domain.HarvestStatusDrying,
			HarvestedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create harvest: %v", err)
		}
	}

	got, err := repo.ListHarvests(ctx, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("harvests = %d, want 3", len(got))
	}
	if got[0].YieldGrams != 300 || got[2].YieldGrams != 100 {
		t.Fatalf("order = %+v", got)
	}
}
