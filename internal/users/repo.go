package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// Repository exposes user directory persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user together with its role grants.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		for _, role := range dto.Roles {
			grant := models.UserRole{UserID: user.ID, Role: role}
			if err := tx.Create(&grant).Error; err != nil {
				return err
			}
			user.Roles = append(user.Roles, grant)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID loads a user and its roles.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Roles").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListActiveIDsByRoles returns active users holding any of the roles.
func (r *Repository) ListActiveIDsByRoles(ctx context.Context, roles []enums.Role) ([]uuid.UUID, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Distinct("users.id").
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Where("users.is_active = ? AND user_roles.role IN ?", true, roles).
		Pluck("users.id", &ids).Error
	return ids, err
}

// ListActiveIDsByVendor returns active users that act for the vendor.
func (r *Repository) ListActiveIDsByVendor(ctx context.Context, vendorID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("vendor_id = ? AND is_active = ?", vendorID, true).
		Pluck("id", &ids).Error
	return ids, err
}
