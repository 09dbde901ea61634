package grant

import "time"

// Grant authorizes a user to access one record of a document type,
// optionally restricted to a single consuming doctype. The column set
// (user, allow, for_value, apply_to_all_doctypes, applicable_for,
// is_default, hide_descendants) is shared with the enforcement layer and
// must not change shape. OwnerDocument records which mapping document
// created the row so reconciliation can retract exactly what it owns.
type Grant struct {
	ID                 uint      `gorm:"primaryKey" json:"-"`
	User               string    `gorm:"size:140;not null;index:idx_grant_key,priority:1" json:"user"`
	Allow              string    `gorm:"size:140;not null;index:idx_grant_key,priority:2" json:"allow"`
	ForValue           string    `gorm:"size:140;not null;index:idx_grant_key,priority:3" json:"for_value"`
	ApplyToAllDoctypes bool      `gorm:"not null" json:"apply_to_all_doctypes"`
	ApplicableFor      string    `gorm:"size:140" json:"applicable_for,omitempty"`
	IsDefault          bool      `gorm:"not null" json:"is_default"`
	HideDescendants    bool      `gorm:"not null" json:"hide_descendants"`
	OwnerDocument      string    `gorm:"size:32;index" json:"owner_document,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func (Grant) TableName() string {
	return "user_permissions"
}

// Filter selects grants by exact match on the set fields. Pointer fields
// are ignored when nil so callers can match any scope or applicable_for.
type Filter struct {
	User               string
	Allow              string
	ForValue           string
	ApplyToAllDoctypes *bool
	ApplicableFor      *string
	OwnerDocument      string
}

func BoolPtr(b bool) *bool {
	return &b
}

func StringPtr(s string) *string {
	return &s
}
