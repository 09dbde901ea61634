// Package mapping implements the bulk user-permission manager: mapping
// documents declare which users (or role holders) should hold which grants,
// and reconciliation converges the grant table toward that declaration.
package mapping

import "time"

// Document is the user-authored declaration of intended grants.
// When ApplyToRole is set, Users is derived from Roles before every save
// so downstream logic always reads a concrete list.
type Document struct {
	ID          string    `yaml:"id" json:"id"`
	Users       []string  `yaml:"users" json:"users"`
	ApplyToRole bool      `yaml:"apply_to_role" json:"apply_to_role"`
	Roles       []string  `yaml:"roles,omitempty" json:"roles,omitempty"`
	Rows        []Row     `yaml:"rows" json:"rows"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// Row declares one grant template, crossed with the document's user list.
type Row struct {
	Allow              string `yaml:"allow" json:"allow"`
	ForValue           string `yaml:"for_value" json:"for_value"`
	ApplyToAllDoctypes bool   `yaml:"apply_to_all_doctypes" json:"apply_to_all_doctypes"`
	ApplicableFor      string `yaml:"applicable_for,omitempty" json:"applicable_for,omitempty"`
	IsDefault          bool   `yaml:"is_default" json:"is_default"`
	HideDescendants    bool   `yaml:"hide_descendants" json:"hide_descendants"`
}

// identity is the row's reconciliation key: two rows with equal identity
// produce interchangeable grants for a given user.
type rowIdentity struct {
	allow              string
	forValue           string
	applyToAllDoctypes bool
	applicableFor      string
}

func (r Row) identity() rowIdentity {
	applicableFor := r.ApplicableFor
	if r.ApplyToAllDoctypes {
		applicableFor = ""
	}
	return rowIdentity{
		allow:              r.Allow,
		forValue:           r.ForValue,
		applyToAllDoctypes: r.ApplyToAllDoctypes,
		applicableFor:      applicableFor,
	}
}
