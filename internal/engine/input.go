package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ServiceSnapshot is one active service engagement at capture time.
type ServiceSnapshot struct {
	ServiceKey    string     `json:"serviceKey"`
	Status        string     `json:"status"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	LastCompleted *time.Time `json:"lastCompleted,omitempty"`
}

// ServiceStatusCompleted marks a service whose current cycle is done.
const ServiceStatusCompleted = "COMPLETED"

// DocumentSnapshot is one document's capture-time status.
type DocumentSnapshot struct {
	Type      string     `json:"type"`
	Uploaded  bool       `json:"uploaded"`
	Approved  bool       `json:"approved"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// FilingSnapshot is one historical filing.
type FilingSnapshot struct {
	Type        string    `json:"type"`
	FiledAt     time.Time `json:"filedAt"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

// Input is the immutable fact snapshot a calculation runs against. Built
// fresh per calculation and never mutated after construction.
type Input struct {
	EntityID          string           `json:"entityId"`
	EntityType        string           `json:"entityType"`
	IncorporationDate time.Time        `json:"incorporationDate"`
	State             string           `json:"state"`
	AnnualTurnover    *decimal.Decimal `json:"annualTurnover,omitempty"`
	EmployeeCount     *int             `json:"employeeCount,omitempty"`

	GSTRegistered          bool `json:"gstRegistered"`
	PFRegistered           bool `json:"pfRegistered"`
	ESIRegistered          bool `json:"esiRegistered"`
	HasForeignTransactions bool `json:"hasForeignTransactions"`

	Services  []ServiceSnapshot  `json:"services,omitempty"`
	Documents []DocumentSnapshot `json:"documents,omitempty"`
	Filings   []FilingSnapshot   `json:"filings,omitempty"`

	CapturedAt time.Time `json:"capturedAt"`
}

// Normalize sorts the snapshot's slices into a canonical order so two
// snapshots of the same facts hash identically.
func (in *Input) Normalize() {
	sort.Slice(in.Services, func(i, j int) bool {
		return in.Services[i].ServiceKey < in.Services[j].ServiceKey
	})
	sort.Slice(in.Documents, func(i, j int) bool {
		return in.Documents[i].Type < in.Documents[j].Type
	})
	sort.Slice(in.Filings, func(i, j int) bool {
		a, b := in.Filings[i], in.Filings[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.PeriodEnd.Before(b.PeriodEnd)
	})
}

// Hash produces the change-detection hash over the snapshot's facts.
// CapturedAt is excluded so identical facts hash identically across runs.
func (in *Input) Hash() string {
	shadow := *in
	shadow.CapturedAt = time.Time{}
	shadow.Normalize()
	payload, err := json.Marshal(&shadow)
	if err != nil {
		// Input is plain data; Marshal cannot fail on it.
		panic("engine: marshal input: " + err.Error())
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ServiceByKey returns the snapshot of the named service, if engaged.
func (in *Input) ServiceByKey(key string) (ServiceSnapshot, bool) {
	for _, s := range in.Services {
		if s.ServiceKey == key {
			return s, true
		}
	}
	return ServiceSnapshot{}, false
}

// DocumentPresent reports whether a document of the given type is uploaded,
// approved, and unexpired at the given instant.
func (in *Input) DocumentPresent(docType string, now time.Time) bool {
	for _, d := range in.Documents {
		if d.Type != docType {
			continue
		}
		if !d.Uploaded || !d.Approved {
			return false
		}
		if d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
			return false
		}
		return true
	}
	return false
}

// LastFiledPeriodEnd returns the latest filed period end for a filing type.
func (in *Input) LastFiledPeriodEnd(filingType string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, f := range in.Filings {
		if f.Type == filingType && f.PeriodEnd.After(latest) {
			latest = f.PeriodEnd
			found = true
		}
	}
	return latest, found
}

// HasFiling reports whether any filing of the given type exists.
func (in *Input) HasFiling(filingType string) bool {
	for _, f := range in.Filings {
		if f.Type == filingType {
			return true
		}
	}
	return false
}
