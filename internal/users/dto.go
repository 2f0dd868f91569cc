package users

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
)

// CreateUserDTO holds the data required by the repo to persist a directory user.
type CreateUserDTO struct {
	Email    string
	FullName string
	VendorID *uuid.UUID
	Roles    []enums.Role
}

// ToModel converts the DTO into the persisted models.User shape.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:    d.Email,
		FullName: d.FullName,
		VendorID: d.VendorID,
		IsActive: true,
	}
}
