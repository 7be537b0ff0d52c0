package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntityProfile is the registered business the engine tracks. Facts are
// captured by external collaborators; the engine only reads them.
type EntityProfile struct {
	EntityID          string           `json:"entityId"`
	LegalName         string           `json:"legalName"`
	EntityType        string           `json:"entityType"`
	IncorporationDate time.Time        `json:"incorporationDate"`
	State             string           `json:"state"`
	AnnualTurnover    *decimal.Decimal `json:"annualTurnover,omitempty"`
	EmployeeCount     *int             `json:"employeeCount,omitempty"`

	GSTRegistered          bool `json:"gstRegistered"`
	PFRegistered           bool `json:"pfRegistered"`
	ESIRegistered          bool `json:"esiRegistered"`
	HasForeignTransactions bool `json:"hasForeignTransactions"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// EntityTypes is the closed set of registrable business forms.
var EntityTypes = map[string]bool{
	"PRIVATE_LIMITED": true,
	"PUBLIC_LIMITED":  true,
	"LLP":             true,
	"PARTNERSHIP":     true,
	"PROPRIETORSHIP":  true,
}

func (p *EntityProfile) Validate() error {
	if p.EntityID == "" {
		return fmt.Errorf("entityId is required")
	}
	if p.LegalName == "" {
		return fmt.Errorf("legalName is required")
	}
	if !EntityTypes[p.EntityType] {
		return fmt.Errorf("unknown entity type %q", p.EntityType)
	}
	if p.IncorporationDate.IsZero() {
		return fmt.Errorf("incorporationDate is required")
	}
	return nil
}

// ServiceStatus is one engaged compliance service.
type ServiceStatus struct {
	EntityID      string     `json:"entityId"`
	ServiceKey    string     `json:"serviceKey"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	LastCompleted *time.Time `json:"lastCompleted,omitempty"`
}

// DocumentStatus is the capture-time status of one document type.
type DocumentStatus struct {
	EntityID  string     `json:"entityId"`
	Type      string     `json:"type"`
	Uploaded  bool       `json:"uploaded"`
	Approved  bool       `json:"approved"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// FilingRecord is one completed statutory filing.
type FilingRecord struct {
	ID          string    `json:"id"`
	EntityID    string    `json:"entityId"`
	Type        string    `json:"type"`
	FiledAt     time.Time `json:"filedAt"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}
