package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

// memRepo is an in-memory FarmRepository for service tests.
type memRepo struct {
	plants      map[uint]domain.Plant
	harvests    map[uint]domain.Harvest
	items       map[uint]domain.InventoryItem
	users       map[uint]domain.User
	sessions    map[string]domain.AuthSession
	tokens      map[string]domain.APIToken
	roles       map[string]domain.Role
	perms       map[string]uint
	rolePerms   map[uint][]uint
	userRoles   map[uint][]uint
	audits      []domain.AuditLog
	nextID      uint
	failCreates bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		plants:    make(map[uint]domain.Plant),
		harvests:  make(map[uint]domain.Harvest),
		items:     make(map[uint]domain.InventoryItem),
		users:     make(map[uint]domain.User),
		sessions:  make(map[string]domain.AuthSession),
		tokens:    make(map[string]domain.APIToken),
		roles:     make(map[string]domain.Role),
		perms:     make(map[string]uint),
		rolePerms: make(map[uint][]uint),
		userRoles: make(map[uint][]uint),
	}
}

func (r *memRepo) id() uint {
	r.nextID++
	return r.nextID
}

func (r *memRepo) CreatePlant(_ context.Context, value domain.Plant) (domain.Plant, error) {
	if r.failCreates {
		return domain.Plant{}, errors.New("create failed")
	}
	value.ID = r.id()
	r.plants[value.ID] = value
	return value, nil
}

func (r *memRepo) GetPlantByID(_ context.Context, id uint) (domain.Plant, error) {
	p, ok := r.plants[id]
	if !ok {
		return domain.Plant{}, domain.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) ListPlants(_ context.Context, stage *domain.Stage, query string, limit int) ([]domain.Plant, error) {
	result := make([]domain.Plant, 0, len(r.plants))
	for _, p := range r.plants {
		if stage != nil && p.Stage != *stage {
			continue
		}
		if query != "" && !strings.Contains(p.Strain, query) {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRepo) UpdatePlantLocation(_ context.Context, id uint, location string) (domain.Plant, error) {
	p, ok := r.plants[id]
	if !ok {
		return domain.Plant{}, domain.ErrNotFound
	}
	p.Location = location
	r.plants[id] = p
	return p, nil
}

func (r *memRepo) TransitionPlant(_ context.Context, id uint, from domain.Stage, change domain.StageChange) (domain.Plant, error) {
	p, ok := r.plants[id]
	if !ok {
		return domain.Plant{}, domain.ErrNotFound
	}
	if p.Stage != from {
		return domain.Plant{}, domain.ErrInvalidTransition
	}
	p.Stage = change.To
	at := change.At
	p.StageChangedAt = &at
	if change.FlippedAt != nil {
		p.FlippedAt = change.FlippedAt
	}
	if change.HarvestedAt != nil {
		p.HarvestedAt = change.HarvestedAt
	}
	if change.DriedAt != nil {
		p.DriedAt = change.DriedAt
	}
	if change.Harvested {
		p.Harvested = true
	}
	r.plants[id] = p
	return p, nil
}

func (r *memRepo) DeletePlant(_ context.Context, id uint) error {
	if _, ok := r.plants[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.plants, id)
	return nil
}

func (r *memRepo) CreateHarvest(_ context.Context, value domain.Harvest) (domain.Harvest, error) {
	value.ID = r.id()
	r.harvests[value.ID] = value
	return value, nil
}

func (r *memRepo) ListHarvests(_ context.Context, limit int) ([]domain.Harvest, error) {
	result := make([]domain.Harvest, 0, len(r.harvests))
	for _, h := range r.harvests {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].HarvestedAt.After(result[j].HarvestedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRepo) CreateInventoryItem(_ context.Context, value domain.InventoryItem) (domain.InventoryItem, error) {
	value.ID = r.id()
	r.items[value.ID] = value
	return value, nil
}

func (r *memRepo) GetInventoryItemByID(_ context.Context, id uint) (domain.InventoryItem, error) {
	item, ok := r.items[id]
	if !ok {
		return domain.InventoryItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (r *memRepo) ListInventoryItems(_ context.Context, _ string, limit int) ([]domain.InventoryItem, error) {
	result := make([]domain.InventoryItem, 0, len(r.items))
	for _, item := range r.items {
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRepo) ReduceInventoryQuantity(_ context.Context, id uint, amount int) (domain.InventoryItem, error) {
	item, ok := r.items[id]
	if !ok {
		return domain.InventoryItem{}, domain.ErrNotFound
	}
	if item.Quantity < amount {
		return domain.InventoryItem{}, domain.ErrInsufficientQuantity
	}
	item.Quantity -= amount
	r.items[id] = item
	return item, nil
}

func (r *memRepo) CreateUser(_ context.Context, value domain.User) (domain.User, error) {
	value.ID = r.id()
	r.users[value.ID] = value
	return value, nil
}

func (r *memRepo) CountUsers(_ context.Context) (int64, error) { return int64(len(r.users)), nil }

func (r *memRepo) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *memRepo) GetUserByID(_ context.Context, id uint) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *memRepo) CreateSession(_ context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	value.ID = r.id()
	r.sessions[value.TokenHash] = value
	return value, nil
}

func (r *memRepo) GetSessionByTokenHash(_ context.Context, tokenHash string) (domain.AuthSession, error) {
	sess, ok := r.sessions[tokenHash]
	if !ok {
		return domain.AuthSession{}, domain.ErrNotFound
	}
	return sess, nil
}

func (r *memRepo) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	delete(r.sessions, tokenHash)
	return nil
}

func (r *memRepo) CreateAPIToken(_ context.Context, value domain.APIToken) (domain.APIToken, error) {
	value.ID = r.id()
	r.tokens[value.TokenHash] = value
	return value, nil
}

func (r *memRepo) GetAPITokenByTokenHash(_ context.Context, tokenHash string) (domain.APIToken, error) {
	t, ok := r.tokens[tokenHash]
	if !ok {
		return domain.APIToken{}, domain.ErrNotFound
	}
	return t, nil
}

func (r *memRepo) CreateRoleIfMissing(_ context.Context, key, name string) (uint, error) {
	if role, ok := r.roles[key]; ok {
		return role.ID, nil
	}
	role := domain.Role{ID: r.id(), Key: key, Name: name}
	r.roles[key] = role
	return role.ID, nil
}

func (r *memRepo) ListRoles(_ context.Context) ([]domain.Role, error) {
	result := make([]domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		result = append(result, role)
	}
	return result, nil
}

func (r *memRepo) CreatePermissionIfMissing(_ context.Context, key string) (uint, error) {
	if id, ok := r.perms[key]; ok {
		return id, nil
	}
	id := r.id()
	r.perms[key] = id
	return id, nil
}

func (r *memRepo) GrantPermissionToRole(_ context.Context, roleID, permissionID uint) error {
	r.rolePerms[roleID] = append(r.rolePerms[roleID], permissionID)
	return nil
}

func (r *memRepo) AssignRoleToUser(_ context.Context, userID, roleID uint) error {
	r.userRoles[userID] = append(r.userRoles[userID], roleID)
	return nil
}

func (r *memRepo) ListUsers(_ context.Context, _ string, limit int) ([]domain.User, error) {
	result := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		result = append(result, u)
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memRepo) GetPermissionsByUserID(_ context.Context, userID uint) ([]string, error) {
	keyByID := make(map[uint]string, len(r.perms))
	for key, id := range r.perms {
		keyByID[id] = key
	}
	var result []string
	for _, roleID := range r.userRoles[userID] {
		for _, permID := range r.rolePerms[roleID] {
			result = append(result, keyByID[permID])
		}
	}
	return result, nil
}

func (r *memRepo) CreateAuditLog(_ context.Context, value domain.AuditLog) error {
	value.ID = r.id()
	r.audits = append(r.audits, value)
	return nil
}

func (r *memRepo) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditRecord, error) {
	result := make([]domain.AuditRecord, 0, len(r.audits))
	for _, a := range r.audits {
		result = append(result, domain.AuditRecord{ID: a.ID, ActorUserID: a.ActorUserID, Action: a.Action, TargetType: a.TargetType, TargetID: a.TargetID, Metadata: a.Metadata, CreatedAt: a.CreatedAt})
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func newTestService(at time.Time) (*FarmService, *memRepo) {
	repo := newMemRepo()
	return NewFarmService(repo, fixedClock{at: at}), repo
}

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestCreatePlantStartsAtSeed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(testNow)

	p, hash, err := svc.CreatePlant(ctx, "Blue Dream", "Room 1", "")
	if err != nil {
		t.Fatalf("create plant: %v", err)
	}
	if p.Stage != domain.StageSeed {
		t.Errorf("stage = %s, want seed", p.Stage)
	}
	if p.Harvested {
		t.Error("new plant must not be harvested")
	}
	if !p.PlantedAt.Equal(testNow) {
		t.Errorf("plantedAt = %v, want %v", p.PlantedAt, testNow)
	}
	if p.StageChangedAt == nil || !p.StageChangedAt.Equal(testNow) {
		t.Errorf("stageChangedAt = %v, want %v", p.StageChangedAt, testNow)
	}
	if p.Tag == "" {
		t.Error("plant tag must be assigned")
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
}

func TestGerminateConsumesSeedStock(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)

	item, err := svc.CreateInventoryItem(ctx, "Blue Dream Seeds", "seeds", 3, "seed")
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	p, _, err := svc.GerminateFromSeed(ctx, item.ID, "Blue Dream", "Room 2", "")
	if err != nil {
		t.Fatalf("germinate: %v", err)
	}
	if p.Stage != domain.StageGermination {
		t.Errorf("stage = %s, want germination", p.Stage)
	}
	got, _ := repo.GetInventoryItemByID(ctx, item.ID)
	if got.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", got.Quantity)
	}
}

func TestGerminateFailsOnEmptyStock(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)

	item, _ := svc.CreateInventoryItem(ctx, "OG Kush Seeds", "seeds", 0, "seed")

	_, _, err := svc.GerminateFromSeed(ctx, item.ID, "OG Kush", "Room 2", "")
	if !errors.Is(err, domain.ErrInsufficientQuantity) {
		t.Fatalf("err = %v, want ErrInsufficientQuantity", err)
	}
	got, _ := repo.GetInventoryItemByID(ctx, item.ID)
	if got.Quantity != 0 {
		t.Errorf("quantity changed on failed germination: %d", got.Quantity)
	}
	if len(repo.plants) != 0 {
		t.Error("no plant may be created when stock is short")
	}
}

func seedPlantAt(t *testing.T, svc *FarmService, repo *memRepo, stage domain.Stage) domain.Plant {
	t.Helper()
	p, _, err := svc.CreatePlant(context.Background(), "Test Strain", "Room 1 / Bench 1", "")
	if err != nil {
		t.Fatalf("seed plant: %v", err)
	}
	p.Stage = stage
	repo.plants[p.ID] = p
	return p
}

func TestFlipThenHarvestThenRecord(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageVegetative)

	flipped, err := svc.FlipPlant(ctx, p.ID)
	if err != nil {
		t.Fatalf("flip: %v", err)
	}
	if flipped.Stage != domain.StageFlowering || flipped.FlippedAt == nil {
		t.Fatalf("flip result: stage=%s flippedAt=%v", flipped.Stage, flipped.FlippedAt)
	}

	harvested, err := svc.HarvestPlant(ctx, p.ID)
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if harvested.Stage != domain.StageHarvest || !harvested.Harvested || harvested.HarvestedAt == nil {
		t.Fatalf("harvest result: %+v", harvested)
	}

	dried, err := svc.DryPlant(ctx, p.ID)
	if err != nil {
		t.Fatalf("dry: %v", err)
	}
	if dried.Stage != domain.StageDrying {
		t.Fatalf("dry result: stage=%s", dried.Stage)
	}
	marked, err := svc.MarkPlantDried(ctx, p.ID)
	if err != nil {
		t.Fatalf("mark dried: %v", err)
	}
	if marked.Stage != domain.StageDried || marked.DriedAt == nil {
		t.Fatalf("mark dried result: %+v", marked)
	}
}

func TestCreateHarvestRecordsAndTransitions(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageFlowering)

	h, hash, err := svc.CreateHarvest(ctx, p.ID, 500, "drying", "")
	if err != nil {
		t.Fatalf("create harvest: %v", err)
	}
	if h.YieldGrams != 500 || h.Status != domain.HarvestStatusDrying {
		t.Fatalf("harvest = %+v", h)
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	got, _ := repo.GetPlantByID(ctx, p.ID)
	if got.Stage != domain.StageHarvest || !got.Harvested {
		t.Fatalf("plant after harvest: stage=%s harvested=%v", got.Stage, got.Harvested)
	}
}

func TestCreateHarvestGuardRunsBeforePersist(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageSeedling)

	_, _, err := svc.CreateHarvest(ctx, p.ID, 120, "drying", "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if len(repo.harvests) != 0 {
		t.Error("a rejected harvest must leave no record behind")
	}
	got, _ := repo.GetPlantByID(ctx, p.ID)
	if got.Stage != domain.StageSeedling {
		t.Errorf("stage changed on rejected harvest: %s", got.Stage)
	}
}

func TestCreateHarvestMissingPlant(t *testing.T) {
	svc, _ := newTestService(testNow)
	_, _, err := svc.CreateHarvest(context.Background(), 999, 100, "drying", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHarvestDirectlyFromSeedlingFails(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageSeedling)
	before, _ := repo.GetPlantByID(ctx, p.ID)

	_, err := svc.HarvestPlant(ctx, p.ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	after, _ := repo.GetPlantByID(ctx, p.ID)
	if after.Stage != before.Stage {
		t.Errorf("stage changed: %s -> %s", before.Stage, after.Stage)
	}
	if (after.StageChangedAt == nil) != (before.StageChangedAt == nil) {
		t.Error("stageChangedAt changed on rejected transition")
	}
}

func TestChangeStageHonorsTable(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageSeed)

	moved, err := svc.ChangePlantStage(ctx, p.ID, domain.StageGermination)
	if err != nil {
		t.Fatalf("change stage: %v", err)
	}
	if moved.Stage != domain.StageGermination {
		t.Fatalf("stage = %s", moved.Stage)
	}

	if _, err := svc.ChangePlantStage(ctx, p.ID, domain.StageFlowering); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("skipping stages: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.ChangePlantStage(ctx, p.ID, domain.StageSeed); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("going back: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.ChangePlantStage(ctx, p.ID, "budding"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("unknown stage: err = %v, want ErrInvalidTransition", err)
	}
}

func TestFlipRequiresExactVegetative(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageFlowering)

	if _, err := svc.FlipPlant(ctx, p.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestRelocateDoesNotTouchStage(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageVegetative)

	moved, err := svc.RelocatePlant(ctx, p.ID, "Room 3 / Bench 2")
	if err != nil {
		t.Fatalf("relocate: %v", err)
	}
	if moved.Location != "Room 3 / Bench 2" {
		t.Errorf("location = %q", moved.Location)
	}
	if moved.Stage != domain.StageVegetative {
		t.Errorf("stage changed by relocation: %s", moved.Stage)
	}

	if _, err := svc.RelocatePlant(ctx, 999, "Room 1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing plant: err = %v, want ErrNotFound", err)
	}
}

func TestDeletePlantEmitsDeletionLog(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)
	p := seedPlantAt(t, svc, repo, domain.StageVegetative)

	record, err := svc.DeletePlant(ctx, p.ID, "Pest Infestation", "operator")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if record.Type != "plant_deletion" || record.Reason != "Pest Infestation" || record.DeletedBy != "operator" {
		t.Fatalf("deletion log = %+v", record)
	}
	if record.Stage != domain.StageVegetative || record.Strain != p.Strain {
		t.Fatalf("deletion log snapshot = %+v", record)
	}

	if _, err := svc.GetPlant(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("plant still found after delete: %v", err)
	}
	if len(repo.audits) == 0 {
		t.Fatal("deletion must write an audit entry")
	}
	last := repo.audits[len(repo.audits)-1]
	if last.Action != "plants.delete" || !strings.Contains(last.Metadata, "Pest Infestation") {
		t.Fatalf("audit entry = %+v", last)
	}
}

func TestReduceQuantityRejectsShortStock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(testNow)
	item, _ := svc.CreateInventoryItem(ctx, "Nutrient A", "nutrients", 2, "bottle")

	if _, err := svc.ReduceQuantity(ctx, item.ID, 5); !errors.Is(err, domain.ErrInsufficientQuantity) {
		t.Fatalf("err = %v, want ErrInsufficientQuantity", err)
	}
	got, _ := svc.ListInventoryItems(ctx, "", 10)
	if got[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", got[0].Quantity)
	}

	if _, err := svc.ReduceQuantity(ctx, 999, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing item: err = %v, want ErrNotFound", err)
	}
}

func TestOccupancyGroupsByRoom(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)

	seedPlantAt(t, svc, repo, domain.StageVegetative)
	seedPlantAt(t, svc, repo, domain.StageVegetative)
	p3 := seedPlantAt(t, svc, repo, domain.StageFlowering)
	p3.Location = "Room 2 / Bench 4"
	repo.plants[p3.ID] = p3
	p4 := seedPlantAt(t, svc, repo, domain.StageHarvest)
	p4.Harvested = true
	repo.plants[p4.ID] = p4

	rooms, err := svc.Occupancy(ctx)
	if err != nil {
		t.Fatalf("occupancy: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(rooms))
	}
	if rooms[0].Room != "Room 1" || rooms[0].Plants != 2 {
		t.Errorf("room 1 = %+v", rooms[0])
	}
	if rooms[1].Room != "Room 2" || rooms[1].Plants != 1 {
		t.Errorf("room 2 = %+v", rooms[1])
	}
	if rooms[0].Stages[domain.StageVegetative] != 2 {
		t.Errorf("room 1 stage counts = %+v", rooms[0].Stages)
	}
}

func TestListHarvestsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	clock := &steppingClock{at: testNow}
	svc := NewFarmService(repo, clock)

	for i := 0; i < 3; i++ {
		p, _, err := svc.CreatePlant(ctx, "Strain", "Room 1", "")
		if err != nil {
			t.Fatalf("create plant: %v", err)
		}
		p.Stage = domain.StageFlowering
		repo.plants[p.ID] = p
		if _, _, err := svc.CreateHarvest(ctx, p.ID, float64(100*(i+1)), "drying", ""); err != nil {
			t.Fatalf("create harvest: %v", err)
		}
	}

	list, err := svc.ListHarvests(ctx, 0)
	if err != nil {
		t.Fatalf("list harvests: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("harvests = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].HarvestedAt.After(list[i-1].HarvestedAt) {
			t.Fatalf("harvests not ordered newest first: %v", list)
		}
	}
}

type steppingClock struct{ at time.Time }

func (c *steppingClock) Now() time.Time {
	c.at = c.at.Add(time.Minute)
	return c.at
}

func TestBootstrapAdminAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(testNow)

	if err := svc.BootstrapAdmin(ctx, "admin@seedtrace.local", "admin"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := svc.BootstrapAdmin(ctx, "other@seedtrace.local", "other"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("users = %d, want 1", len(repo.users))
	}

	u, token, err := svc.LoginWithAPIToken(ctx, "admin@seedtrace.local", "admin", "test", nil)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	identity, err := svc.AuthenticateBearerToken(ctx, token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.User.ID != u.ID {
		t.Fatalf("identity user = %d, want %d", identity.User.ID, u.ID)
	}
	if !svc.Can(identity, PermWrite) {
		t.Error("admin must hold every permission")
	}

	if _, _, err := svc.LoginWithAPIToken(ctx, "admin@seedtrace.local", "wrong", "test", nil); err == nil {
		t.Error("wrong password must fail")
	}
}
