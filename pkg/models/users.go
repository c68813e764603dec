package models

import "time"

// User is the authenticated customer profile as returned by the core API.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// SecurityPreferences mirrors GET /api/users/preferences/security.
type SecurityPreferences struct {
	AutoSessionTimeout bool `json:"auto_session_timeout"`
	TwoFactorEnabled   bool `json:"two_factor_enabled,omitempty"`
}
