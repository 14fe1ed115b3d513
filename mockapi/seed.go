package mockapi

import (
	"time"

	"github.com/jrsteele09/gov-console/users"
	"github.com/pkg/errors"
)

type CompanyStatus string

const (
	StatusPending  CompanyStatus = "pending"
	StatusApproved CompanyStatus = "approved"
	StatusRejected CompanyStatus = "rejected"
)

// Company is a registry applicant as returned by GET /gov/pending.
type Company struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	RegID            string        `json:"regId"`
	Type             string        `json:"type"`
	Location         string        `json:"location"`
	Status           CompanyStatus `json:"status"`
	Email            string        `json:"email"`
	RegistrationDate string        `json:"registrationDate"`
	ContactPerson    string        `json:"contactPerson,omitempty"`
	ProjectType      string        `json:"projectType,omitempty"`
	EstimatedCredits int           `json:"estimatedCredits,omitempty"`
}

func DefaultPendingCompanies() []Company {
	return []Company{
		{
			ID: "c-1001", Name: "Green Valley Reforestation", RegID: "NGO-2024-0117", Type: "NGO",
			Location: "Pune, Maharashtra", Status: StatusPending, Email: "contact@greenvalley.example",
			RegistrationDate: "2026-01-12", ContactPerson: "Anita Rao", ProjectType: "Afforestation", EstimatedCredits: 12000,
		},
		{
			ID: "c-1002", Name: "Sunrise Solar Pvt Ltd", RegID: "PVT-2023-4410", Type: "Private Limited",
			Location: "Jodhpur, Rajasthan", Status: StatusPending, Email: "registry@sunrisesolar.example",
			RegistrationDate: "2026-02-03", ContactPerson: "Vikram Singh", ProjectType: "Renewable Energy", EstimatedCredits: 45000,
		},
		{
			ID: "c-1003", Name: "Coastal Mangrove Trust", RegID: "NGO-2022-0981", Type: "NGO",
			Location: "Bhitarkanika, Odisha", Status: StatusApproved, Email: "info@mangrovetrust.example",
			RegistrationDate: "2025-11-20", ProjectType: "Blue Carbon", EstimatedCredits: 8000,
		},
	}
}

// SeedAccount is a development sign-in.
type SeedAccount struct {
	UserID   string
	Password string
	Name     string
	Email    string
	Role     users.RoleType
}

func DefaultAccounts() []SeedAccount {
	return []SeedAccount{
		{UserID: "25433067", Password: "Registry2026", Name: "Government User", Email: "admin@registry.example", Role: users.RoleAdmin},
		{UserID: "31007654", Password: "Reviewer2026", Name: "MRV Reviewer", Email: "reviewer@registry.example", Role: users.RoleReviewer},
	}
}

// SeedUsers creates accounts that do not already exist.
func SeedUsers(repo users.UserRepo, accounts []SeedAccount, now time.Time) error {
	for _, a := range accounts {
		if _, err := repo.GetByUserID(a.UserID); err == nil {
			continue
		}
		if err := users.ValidatePasswordStrength(a.Password); err != nil {
			return errors.Wrapf(err, "[mockapi.SeedUsers] account %s", a.UserID)
		}
		hash, err := users.HashPassword(a.Password)
		if err != nil {
			return errors.Wrap(err, "[mockapi.SeedUsers] HashPassword")
		}
		if err := repo.Upsert(&users.User{
			UserID:       a.UserID,
			Name:         a.Name,
			Email:        a.Email,
			Role:         a.Role,
			Department:   "Carbon Registry",
			PasswordHash: hash,
			DateJoined:   now,
		}); err != nil {
			return errors.Wrap(err, "[mockapi.SeedUsers] Upsert")
		}
	}
	return nil
}
