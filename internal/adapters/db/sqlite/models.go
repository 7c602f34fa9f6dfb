package sqlite

import "time"

type PlantModel struct {
	ID             uint   `gorm:"primaryKey"`
	Tag            string `gorm:"not null;uniqueIndex"`
	Strain         string `gorm:"not null;index"`
	Location       string `gorm:"not null;default:''"`
	Stage          string `gorm:"not null;index;default:'seed'"`
	Harvested      bool   `gorm:"not null;default:false"`
	PlantedAt      time.Time
	StageChangedAt *time.Time
	FlippedAt      *time.Time
	HarvestedAt    *time.Time
	DriedAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PlantModel) TableName() string { return "plants" }

type HarvestModel struct {
	ID          uint    `gorm:"primaryKey"`
	PlantID     uint    `gorm:"not null;index"`
	YieldGrams  float64 `gorm:"not null"`
	Status      string  `gorm:"not null;default:'drying'"`
	HarvestedAt time.Time `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (HarvestModel) TableName() string { return "harvests" }

type InventoryItemModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;index"`
	Category  string `gorm:"not null;index"`
	Quantity  int    `gorm:"not null;default:0"`
	Unit      string `gorm:"not null;default:'unit'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (InventoryItemModel) TableName() string { return "inventory_items" }

type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type SessionModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (SessionModel) TableName() string { return "sessions" }

type APITokenModel struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Name      string `gorm:"not null"`
	TokenHash string `gorm:"not null;uniqueIndex"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (APITokenModel) TableName() string { return "api_tokens" }

type RoleModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

func (RoleModel) TableName() string { return "roles" }

type PermissionModel struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

func (PermissionModel) TableName() string { return "permissions" }

type UserRoleModel struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index:idx_user_role,unique"`
	RoleID    uint `gorm:"not null;index:idx_user_role,unique"`
	CreatedAt time.Time
}

func (UserRoleModel) TableName() string { return "user_roles" }

type RolePermissionModel struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"not null;index:idx_role_perm,unique"`
	PermissionID uint `gorm:"not null;index:idx_role_perm,unique"`
	CreatedAt    time.Time
}

func (RolePermissionModel) TableName() string { return "role_permissions" }

type AuditLogModel struct {
	ID          uint `gorm:"primaryKey"`
	ActorUserID *uint
	Action      string `gorm:"not null;index"`
	TargetType  string `gorm:"not null;index"`
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
