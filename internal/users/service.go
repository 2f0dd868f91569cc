package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

// Directory resolves notification targets to user ids.
type Directory interface {
	UserIDsForRoles(ctx context.Context, roles ...enums.Role) ([]uuid.UUID, error)
	UserIDsForVendor(ctx context.Context, vendorID uuid.UUID) ([]uuid.UUID, error)
}

type repository interface {
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListActiveIDsByRoles(ctx context.Context, roles []enums.Role) ([]uuid.UUID, error)
	ListActiveIDsByVendor(ctx context.Context, vendorID uuid.UUID) ([]uuid.UUID, error)
}

// Service manages the local user directory.
type Service struct {
	repo repository
}

// NewService builds a user directory service.
func NewService(repo repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &Service{repo: repo}, nil
}

// Create registers a directory user. Vendor role holders must reference a vendor.
func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	if dto.Email == "" || dto.FullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and full name are required")
	}
	for _, role := range dto.Roles {
		if !role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", role))
		}
	}
	if enums.HasAnyRole(dto.Roles, enums.RoleVendor) && dto.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor users require a vendor id")
	}
	user, err := s.repo.Create(ctx, dto)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *Service) UserIDsForRoles(ctx context.Context, roles ...enums.Role) ([]uuid.UUID, error) {
	ids, err := s.repo.ListActiveIDsByRoles(ctx, roles)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve role recipients")
	}
	return ids, nil
}

func (s *Service) UserIDsForVendor(ctx context.Context, vendorID uuid.UUID) ([]uuid.UUID, error) {
	if vendorID == uuid.Nil {
		return nil, nil
	}
	ids, err := s.repo.ListActiveIDsByVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve vendor recipients")
	}
	return ids, nil
}
