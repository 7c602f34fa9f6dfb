package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/seedtrace/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type FarmRepository struct {
	db *gorm.DB
}

func Open(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
}

func NewFarmRepository(db *gorm.DB) *FarmRepository {
	return &FarmRepository{db: db}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func plantFromModel(m PlantModel) domain.Plant {
	return domain.Plant{
		ID:             m.ID,
		Tag:            m.Tag,
		Strain:         m.Strain,
		Location:       m.Location,
		Stage:          domain.Stage(m.Stage),
		Harvested:      m.Harvested,
		PlantedAt:      m.PlantedAt,
		StageChangedAt: m.StageChangedAt,
		FlippedAt:      m.FlippedAt,
		HarvestedAt:    m.HarvestedAt,
		DriedAt:        m.DriedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (r *FarmRepository) CreatePlant(ctx context.Context, value domain.Plant) (domain.Plant, error) {
	m := PlantModel{
		Tag:            value.Tag,
		Strain:         value.Strain,
		Location:       value.Location,
		Stage:          string(value.Stage),
		Harvested:      value.Harvested,
		PlantedAt:      value.PlantedAt,
		StageChangedAt: value.StageChangedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Plant{}, err
	}
	return plantFromModel(m), nil
}

func (r *FarmRepository) GetPlantByID(ctx context.Context, id uint) (domain.Plant, error) {
	var m PlantModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.Plant{}, mapNotFound(err)
	}
	return plantFromModel(m), nil
}

func (r *FarmRepository) ListPlants(ctx context.Context, stage *domain.Stage, query string, limit int) ([]domain.Plant, error) {
	q := r.db.WithContext(ctx).Model(&PlantModel{})
	if stage != nil {
		q = q.Where("stage = ?", string(*stage))
	}
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("strain LIKE ? OR tag LIKE ? OR location LIKE ?", like, like, like)
	}
	rows := make([]PlantModel, 0)
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Plant, 0, len(rows))
	for _, m := range rows {
		result = append(result, plantFromModel(m))
	}
	return result, nil
}

func (r *FarmRepository) UpdatePlantLocation(ctx context.Context, id uint, location string) (domain.Plant, error) {
	res := r.db.WithContext(ctx).Model(&PlantModel{}).Where("id = ?", id).Update("location", location)
	if res.Error != nil {
		return domain.Plant{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Plant{}, domain.ErrNotFound
	}
	return r.GetPlantByID(ctx, id)
}

// TransitionPlant applies a stage change only when the row still holds the
// expected stage. A lost race surfaces as ErrInvalidTransition.
func (r *FarmRepository) TransitionPlant(ctx context.Context, id uint, from domain.Stage, change domain.StageChange) (domain.Plant, error) {
	updates := map[string]any{
		"stage":            string(change.To),
		"stage_changed_at": change.At,
	}
	if change.FlippedAt != nil {
		updates["flipped_at"] = *change.FlippedAt
	}
	if change.HarvestedAt != nil {
		updates["harvested_at"] = *change.HarvestedAt
	}
	if change.DriedAt != nil {
		updates["dried_at"] = *change.DriedAt
	}
	if change.Harvested {
		updates["harvested"] = true
	}

	res := r.db.WithContext(ctx).Model(&PlantModel{}).
		Where("id = ? AND stage = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return domain.Plant{}, res.Error
	}
	if res.RowsAffected == 0 {
		var m PlantModel
		if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
			return domain.Plant{}, mapNotFound(err)
		}
		return domain.Plant{}, domain.ErrInvalidTransition
	}
	return r.GetPlantByID(ctx, id)
}

func (r *FarmRepository) DeletePlant(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&PlantModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *FarmRepository) CreateHarvest(ctx context.Context, value domain.Harvest) (domain.Harvest, error) {
	m := HarvestModel{
		PlantID:     value.PlantID,
		YieldGrams:  value.YieldGrams,
		Status:      value.Status,
		HarvestedAt: value.HarvestedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Harvest{}, err
	}
	return domain.Harvest{
		ID:          m.ID,
		PlantID:     m.PlantID,
		YieldGrams:  m.YieldGrams,
		Status:      m.Status,
		HarvestedAt: m.HarvestedAt,
		CreatedAt:   m.CreatedAt,
	}, nil
}

func (r *FarmRepository) ListHarvests(ctx context.Context, limit int) ([]domain.Harvest, error) {
	rows := make([]HarvestModel, 0)
	if err := r.db.WithContext(ctx).Order("harvested_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Harvest, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Harvest{
			ID:          m.ID,
			PlantID:     m.PlantID,
			YieldGrams:  m.YieldGrams,
			Status:      m.Status,
			HarvestedAt: m.HarvestedAt,
			CreatedAt:   m.CreatedAt,
		})
	}
	return result, nil
}

func (r *FarmRepository) CreateInventoryItem(ctx context.Context, value domain.InventoryItem) (domain.InventoryItem, error) {
	m := InventoryItemModel{
		Name:     value.Name,
		Category: value.Category,
		Quantity: value.Quantity,
		Unit:     defaultString(value.Unit, "unit"),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.InventoryItem{}, err
	}
	return itemFromModel(m), nil
}

func (r *FarmRepository) GetInventoryItemByID(ctx context.Context, id uint) (domain.InventoryItem, error) {
	var m InventoryItemModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.InventoryItem{}, mapNotFound(err)
	}
	return itemFromModel(m), nil
}

func (r *FarmRepository) ListInventoryItems(ctx context.Context, query string, limit int) ([]domain.InventoryItem, error) {
	q := r.db.WithContext(ctx).Model(&InventoryItemModel{})
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("name LIKE ? OR category LIKE ?", like, like)
	}
	rows := make([]InventoryItemModel, 0)
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.InventoryItem, 0, len(rows))
	for _, m := range rows {
		result = append(result, itemFromModel(m))
	}
	return result, nil
}

// ReduceInventoryQuantity decrements stock with a single conditional UPDATE so
// two concurrent consumers can never drive the quantity below zero.
func (r *FarmRepository) ReduceInventoryQuantity(ctx context.Context, id uint, amount int) (domain.InventoryItem, error) {
	res := r.db.WithContext(ctx).Model(&InventoryItemModel{}).
		Where("id = ? AND quantity >= ?", id, amount).
		Update("quantity", gorm.Expr("quantity - ?", amount))
	if res.Error != nil {
		return domain.InventoryItem{}, res.Error
	}
	if res.RowsAffected == 0 {
		var m InventoryItemModel
		if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
			return domain.InventoryItem{}, mapNotFound(err)
		}
		return domain.InventoryItem{}, domain.ErrInsufficientQuantity
	}
	return r.GetInventoryItemByID(ctx, id)
}

func itemFromModel(m InventoryItemModel) domain.InventoryItem {
	return domain.InventoryItem{
		ID:        m.ID,
		Name:      m.Name,
		Category:  m.Category,
		Quantity:  m.Quantity,
		Unit:      m.Unit,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}

	return input
}

func (r *FarmRepository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	m := UserModel{Email: strings.ToLower(strings.TrimSpace(value.Email)), PasswordHash: value.PasswordHash}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *FarmRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

func (r *FarmRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error; err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *FarmRepository) GetUserByID(ctx context.Context, id uint) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}, nil
}

func (r *FarmRepository) CreateSession(ctx context.Context, value domain.AuthSession) (domain.AuthSession, error) {
	m := SessionModel{UserID: value.UserID, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.AuthSession{}, err
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FarmRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.AuthSession, error) {
	var m SessionModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.AuthSession{}, mapNotFound(err)
	}
	return domain.AuthSession{ID: m.ID, UserID: m.UserID, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FarmRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&SessionModel{}).Error
}

func (r *FarmRepository) CreateAPIToken(ctx context.Context, value domain.APIToken) (domain.APIToken, error) {
	m := APITokenModel{UserID: value.UserID, Name: value.Name, TokenHash: value.TokenHash, ExpiresAt: value.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.APIToken{}, err
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FarmRepository) GetAPITokenByTokenHash(ctx context.Context, tokenHash string) (domain.APIToken, error) {
	var m APITokenModel
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&m).Error; err != nil {
		return domain.APIToken{}, mapNotFound(err)
	}
	return domain.APIToken{ID: m.ID, UserID: m.UserID, Name: m.Name, TokenHash: m.TokenHash, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt}, nil
}

func (r *FarmRepository) CreateRoleIfMissing(ctx context.Context, key, name string) (uint, error) {
	m := RoleModel{Key: key, Name: name}
	err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *FarmRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows := make([]RoleModel, 0)
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Role, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Role{ID: m.ID, Key: m.Key, Name: m.Name, CreatedAt: m.CreatedAt})
	}
	return result, nil
}

func (r *FarmRepository) CreatePermissionIfMissing(ctx context.Context, key string) (uint, error) {
	m := PermissionModel{Key: key}
	err := r.db.WithContext(ctx).Where("key = ?", key).FirstOrCreate(&m).Error
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (r *FarmRepository) GrantPermissionToRole(ctx context.Context, roleID, permissionID uint) error {
	m := RolePermissionModel{RoleID: roleID, PermissionID: permissionID}
	return r.db.WithContext(ctx).Where("role_id = ? AND permission_id = ?", roleID, permissionID).FirstOrCreate(&m).Error
}

func (r *FarmRepository) AssignRoleToUser(ctx context.Context, userID, roleID uint) error {
	m := UserRoleModel{UserID: userID, RoleID: roleID}
	return r.db.WithContext(ctx).Where("user_id = ? AND role_id = ?", userID, roleID).FirstOrCreate(&m).Error
}

func (r *FarmRepository) ListUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{})
	if strings.TrimSpace(query) != "" {
		like := "%" + strings.TrimSpace(query) + "%"
		q = q.Where("email LIKE ?", like)
	}
	rows := make([]UserModel, 0)
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.User, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.User{ID: m.ID, Email: m.Email, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt})
	}
	return result, nil
}

func (r *FarmRepository) GetPermissionsByUserID(ctx context.Context, userID uint) ([]string, error) {
	type row struct{ Key string }
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT p.key
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = ?
`, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.Key)
	}
	return result, nil
}

func (r *FarmRepository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{ActorUserID: value.ActorUserID, Action: value.Action, TargetType: value.TargetType, TargetID: value.TargetID, Metadata: value.Metadata}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *FarmRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	type row struct {
		ID             uint
		ActorUserID    *uint
		ActorUserEmail string
		Action         string
		TargetType     string
		TargetID       *uint
		Metadata       string
		CreatedAt      time.Time
	}
	rows := make([]row, 0)
	err := r.db.WithContext(ctx).Raw(`
SELECT a.id,
       a.actor_user_id,
       COALESCE(u.email, '') AS actor_user_email,
       a.action,
       a.target_type,
       a.target_id,
       a.metadata,
       a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_user_id
ORDER BY a.id DESC
LIMIT ?
`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.AuditRecord, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditRecord{
			ID:             m.ID,
			ActorUserID:    m.ActorUserID,
			ActorUserEmail: m.ActorUserEmail,
			Action:         m.Action,
			TargetType:     m.TargetType,
			TargetID:       m.TargetID,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
	}
	return result, nil
}
