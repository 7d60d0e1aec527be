package auth

import "time"

// User represents a human account. PasswordHash never crosses the service
// boundary; handlers only ever see the Safe view.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	RoleID       string    `json:"role_id"`
	RoleName     string    `json:"role_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Safe returns the user without credential material.
func (u User) Safe() User {
	u.PasswordHash = ""
	return u
}

// RoleType distinguishes built-in roles from user-defined ones.
type RoleType string

const (
	RoleTypeStatic RoleType = "STATIC"
	RoleTypeCustom RoleType = "CUSTOM"
)

// Role groups permissions under a stable identifier derived from its name.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        RoleType     `json:"type"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PermissionKeys returns the keys of the role's granted permissions.
func (r Role) PermissionKeys() []string {
	if len(r.Permissions) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		keys = append(keys, p.Key)
	}
	return keys
}

// Permission is a fine-grained capability identified by a namespaced key.
type Permission struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleRef is a minimal role reference used in dependency checks.
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserQuery filters and paginates user listings.
type UserQuery struct {
	Page   int
	Limit  int
	RoleID string
	Search string
}

// PageMeta describes pagination of a listing result.
type PageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// UserPage is one page of users plus pagination metadata.
type UserPage struct {
	Data []User   `json:"data"`
	Meta PageMeta `json:"meta"`
}

// UserUpdate carries optional user field changes; nil means unchanged.
type UserUpdate struct {
	Name   *string
	RoleID *string
}

// RoleUpdate carries optional role field changes; nil means unchanged.
type RoleUpdate struct {
	Name        *string
	Permissions *[]Permission
}
