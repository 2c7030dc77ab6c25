// Package models contains data structures for the marketplace domain.
package models

import (
	"time"
)

// Role describes which side of the marketplace a user acts on.
type Role string

// Supported roles.
const (
	RoleClient Role = "client"
	RoleSeller Role = "seller"
	RoleBoth   Role = "both"
)

// User is a registered marketplace account.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:32;uniqueIndex;not null" json:"username"`
	Email      string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password   string    `gorm:"size:128;not null" json:"-"`
	Phone      string    `gorm:"size:32;uniqueIndex:idx_users_phone,where:phone <> ''" json:"phone"`
	FirstName  string    `gorm:"size:32" json:"firstName"`
	LastName   string    `gorm:"size:32" json:"lastName"`
	MiddleName string    `gorm:"size:32" json:"middleName"`
	City       string    `gorm:"size:64" json:"city"`
	Age        *int      `json:"age,omitempty"`
	Timezone   string    `gorm:"size:64" json:"timezone"`
	Avatar     string    `gorm:"size:256" json:"avatar"`
	Role       Role      `gorm:"size:16;not null;default:client;index" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PublicProfile is the view of a user that anyone may read. Contact details,
// credentials and role are never part of it.
type PublicProfile struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	MiddleName string `json:"middleName"`
	City       string `json:"city"`
	Age        *int   `json:"age,omitempty"`
	Timezone   string `json:"timezone"`
	Avatar     string `json:"avatar"`
}

// PublicProfile projects the user onto the whitelisted public fields.
func (u *User) PublicProfile() *PublicProfile {
	return &PublicProfile{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		MiddleName: u.MiddleName,
		City:       u.City,
		Age:        u.Age,
		Timezone:   u.Timezone,
		Avatar:     u.Avatar,
	}
}
