package domain

import (
	"context"
	"time"
)

// Clock abstracts the ambient time source so stage stamps are deterministic
// under test.
type Clock interface {
	Now() time.Time
}

// StageChange carries everything a guarded transition writes: the target
// stage, the stamp for stage_changed_at, and the per-stage timestamp fields
// that only some transitions touch. Harvested is one-way; repositories must
// never write it back to false.
type StageChange struct {
	To          Stage
	At          time.Time
	FlippedAt   *time.Time
	HarvestedAt *time.Time
	DriedAt     *time.Time
	Harvested   bool
}

type FarmRepository interface {
	CreatePlant(ctx context.Context, value Plant) (Plant, error)
	GetPlantByID(ctx context.Context, id uint) (Plant, error)
	ListPlants(ctx context.Context, stage *Stage, query string, limit int) ([]Plant, error)
	UpdatePlantLocation(ctx context.Context, id uint, location string) (Plant, error)
	// TransitionPlant applies change only if the plant is still at from,
	// returning ErrInvalidTransition when a concurrent writer won the race and
	// ErrNotFound when the plant does not exist.
	TransitionPlant(ctx context.Context, id uint, from Stage, change StageChange) (Plant, error)
	DeletePlant(ctx context.Context, id uint) error

	CreateHarvest(ctx context.Context, value Harvest) (Harvest, error)
	ListHarvests(ctx context.Context, limit int) ([]Harvest, error)

	CreateInventoryItem(ctx context.Context, value InventoryItem) (InventoryItem, error)
	GetInventoryItemByID(ctx context.Context, id uint) (InventoryItem, error)
	ListInventoryItems(ctx context.Context, query string, limit int) ([]InventoryItem, error)
	// ReduceInventoryQuantity decrements atomically; it fails with
	// ErrInsufficientQuantity without touching the row when stock is short.
	ReduceInventoryQuantity(ctx context.Context, id uint, amount int) (InventoryItem, error)

	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uint) (User, error)
	CreateSession(ctx context.Context, value AuthSession) (AuthSession, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (AuthSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	CreateAPIToken(ctx context.Context, value APIToken) (APIToken, error)
	GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (APIToken, error)
	CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreatePermissionIfMissing(ctx context.Context, key string) (uint, error)
	GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error
	AssignRoleToUser(ctx context.Context, userID, roleID uint) error
	ListUsers(ctx context.Context, query string, limit int) ([]User, error)
	GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error)
	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditRecord, error)
}
