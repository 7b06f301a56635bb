package models

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ComplaintType classifies a citizen complaint
type ComplaintType string

const (
	TypePipeBurst    ComplaintType = "Pipe Burst"
	TypeWaterLogging ComplaintType = "Water Logging"
	TypeSewageLeak   ComplaintType = "Sewage Leak"
	TypeQualityIssue ComplaintType = "Quality Issue"
	TypeSystemAlert  ComplaintType = "System Alert"
	TypeOther        ComplaintType = "Other"
)

// Status is the lifecycle state of a complaint
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// SyncState marks records that still have to reach the remote store
type SyncState string

const (
	SyncClean SyncState = ""
	SyncLocal SyncState = "local" // created while the remote store was unreachable
	SyncDirty SyncState = "dirty" // status changed while the remote store was unreachable
)

// Complaint is the unit reconciled between the remote store and the local snapshot
type Complaint struct {
	ID            string        `json:"id"`
	Type          ComplaintType `json:"type"`
	Location      string        `json:"location"`
	Description   string        `json:"description,omitempty"`
	Status        Status        `json:"status"`
	AdminResponse string        `json:"admin_response,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	OwnerID       string        `json:"owner_id,omitempty"`
	OwnerEmail    string        `json:"owner_email,omitempty"`
	Sync          SyncState     `json:"sync,omitempty"`
}

// UnmarshalJSON accepts documents written before the id field was renamed
func (c *Complaint) UnmarshalJSON(data []byte) error {
	type plain Complaint
	aux := struct {
		*plain
		LegacyID string `json:"_id"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = aux.LegacyID
	}
	return nil
}

// NewComplaint is the citizen-facing submission payload
type NewComplaint struct {
	Type        ComplaintType `json:"type" validate:"required"`
	Location    string        `json:"location" validate:"required"`
	Description string        `json:"description,omitempty"`
	OwnerID     string        `json:"owner_id,omitempty"`
	OwnerEmail  string        `json:"owner_email,omitempty" validate:"omitempty,email"`
	// CreatedAt is only set when replaying a record created offline
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Validate checks the required fields
func (n NewComplaint) Validate() error {
	n.Type = ComplaintType(strings.TrimSpace(string(n.Type)))
	n.Location = strings.TrimSpace(n.Location)
	return toValidationError(validate.Struct(n))
}

// StatusUpdate is the partial update an administrator applies
type StatusUpdate struct {
	Status        Status  `json:"status" validate:"complaint_status"`
	AdminResponse *string `json:"admin_response,omitempty"`
}

// Validate checks the status value
func (u StatusUpdate) Validate() error {
	return toValidationError(validate.Struct(u))
}

// FromRecord rebuilds the submission payload for a record created offline
func FromRecord(c Complaint) NewComplaint {
	created := c.CreatedAt
	return NewComplaint{
		Type:        c.Type,
		Location:    c.Location,
		Description: c.Description,
		OwnerID:     c.OwnerID,
		OwnerEmail:  c.OwnerEmail,
		CreatedAt:   &created,
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("complaint_status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "is required"
		switch fe.Tag() {
		case "email":
			reason = "must be an e-mail address"
		case "complaint_status":
			reason = "must be one of Open, In Progress, Resolved"
		}
		return &ValidationError{Field: fe.Field(), Reason: reason}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

// SeedComplaints returns the demo set used when no snapshot or remote data exists
func SeedComplaints(now time.Time) []Complaint {
	return []Complaint{
		{ID: "1", Type: TypePipeBurst, Location: "Ward A, Main Sq", Description: "Major pipe burst near market", Status: StatusInProgress, CreatedAt: now},
		{ID: "3", Type: TypeSystemAlert, Location: "System", Description: "Sensor malfunction in Sector 4", Status: StatusOpen, CreatedAt: now.Add(-time.Minute)},
		{ID: "2", Type: TypeWaterLogging, Location: "Ward B, Lane 4", Description: "Stagnant water since yesterday", Status: StatusOpen, CreatedAt: now.Add(-24 * time.Hour)},
	}
}
