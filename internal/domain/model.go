package domain

import "time"

type Plant struct {
	ID             uint
	Tag            string
	Strain         string
	Location       string
	Stage          Stage
	Harvested      bool
	PlantedAt      time.Time
	StageChangedAt *time.Time
	FlippedAt      *time.Time
	HarvestedAt    *time.Time
	DriedAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Harvest struct {
	ID          uint
	PlantID     uint
	YieldGrams  float64
	Status      string
	HarvestedAt time.Time
	CreatedAt   time.Time
}

// Harvest drying statuses. Status is set once at creation and never updated.
const (
	HarvestStatusDrying = "drying"
	HarvestStatusDried  = "dried"
)

type InventoryItem struct {
	ID        uint
	Name      string
	Category  string
	Quantity  int
	Unit      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeletionLog is the structured record returned (and audited) when a plant is
// hard-deleted. There is no tombstone; this record is the only trace left.
type DeletionLog struct {
	Type      string    `json:"type"`
	PlantID   uint      `json:"plantId"`
	Strain    string    `json:"strain"`
	Stage     Stage     `json:"stage"`
	Location  string    `json:"location"`
	Reason    string    `json:"reason"`
	DeletedBy string    `json:"deletedBy"`
	DeletedAt time.Time `json:"deletedAt"`
}

// RoomOccupancy is a read-only aggregate of live plants per room. The room is
// the first segment of the plant's free-text location label.
type RoomOccupancy struct {
	Room   string
	Plants int
	Stages map[Stage]int
}

type User struct {
	ID           uint
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AuthSession struct {
	ID        uint
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type AuditLog struct {
	ID          uint
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    *uint
	Metadata    string
	CreatedAt   time.Time
}

type Identity struct {
	User        User
	Permissions map[string]struct{}
}

type Role struct {
	ID        uint
	Key       string
	Name      string
	CreatedAt time.Time
}

type AuditRecord struct {
	ID             uint
	ActorUserID    *uint
	ActorUserEmail string
	Action         string
	TargetType     string
	TargetID       *uint
	Metadata       string
	CreatedAt      time.Time
}
