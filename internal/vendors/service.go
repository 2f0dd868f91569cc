package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
)

// Vendor is the directory view consumed by the workflow.
type Vendor struct {
	ID          uuid.UUID
	CompanyName string
	Active      bool
	Verified    bool
}

// Eligible reports whether the vendor may receive assignments.
func (v Vendor) Eligible() bool {
	return v.Active && v.Verified
}

// Directory looks vendors up by id.
type Directory interface {
	FindVendor(ctx context.Context, id uuid.UUID) (*Vendor, error)
}

// Service manages vendor directory rows.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vendors repository required")
	}
	return &Service{repo: repo}, nil
}

// CreateVendorInput registers a supplier.
type CreateVendorInput struct {
	CompanyName  string
	ContactEmail *string
	Verified     bool
}

func (s *Service) Create(ctx context.Context, input CreateVendorInput) (*models.Vendor, error) {
	name := strings.TrimSpace(input.CompanyName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name is required")
	}
	vendor := &models.Vendor{
		CompanyName:  name,
		Status:       enums.VendorStatusActive,
		IsVerified:   input.Verified,
		ContactEmail: input.ContactEmail,
	}
	if err := s.repo.Create(ctx, vendor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor")
	}
	return vendor, nil
}

// FindVendor returns the directory view of the vendor. Unknown ids yield NOT_FOUND.
func (s *Service) FindVendor(ctx context.Context, id uuid.UUID) (*Vendor, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return toVendor(*row), nil
}

// SetStatus changes the lifecycle state and verification flag.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status enums.VendorStatus, verified bool) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid vendor status")
	}
	if err := s.repo.UpdateStatus(ctx, id, status, verified); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor status")
	}
	return nil
}

func toVendor(row models.Vendor) *Vendor {
	return &Vendor{
		ID:          row.ID,
		CompanyName: row.CompanyName,
		Active:      row.Status == enums.VendorStatusActive,
		Verified:    row.IsVerified,
	}
}
