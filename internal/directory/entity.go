package directory

import "time"

// User is a principal that grants can be issued to. The ID is the login
// identifier (typically an email address), matching the enforcement layer.
type User struct {
	ID        string    `gorm:"primaryKey;column:name;size:140" json:"id"`
	FullName  string    `gorm:"size:140" json:"full_name"`
	Enabled   bool      `gorm:"not null" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// RoleAssignment links a role to a principal. ParentType distinguishes user
// principals from other role-holder types (reports, workflows); only rows
// with ParentType "User" count toward the effective user list.
type RoleAssignment struct {
	ID         uint   `gorm:"primaryKey"`
	Role       string `gorm:"size:140;not null;index"`
	User       string `gorm:"size:140;not null;index"`
	ParentType string `gorm:"size:140;not null;default:User"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}

// ParentTypeUser marks assignments held by actual user principals.
const ParentTypeUser = "User"

// Match is one autocomplete result.
type Match struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}
