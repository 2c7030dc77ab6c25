package models

import (
	"time"
)

// MaxAdPhotos caps the number of photos attached to one ad.
const MaxAdPhotos = 6

// AdType tells whether the author offers a service or is looking for one.
type AdType string

// Supported ad types.
const (
	AdTypeRequest AdType = "request"
	AdTypeOffer   AdType = "offer"
)

// PaymentType is the billing period of the ad price.
type PaymentType string

// Supported payment periods.
const (
	PaymentOnce  PaymentType = "once"
	PaymentDay   PaymentType = "day"
	PaymentHour  PaymentType = "hour"
	PaymentMonth PaymentType = "month"
)

// Ad is a marketplace listing.
type Ad struct {
	ID          uint        `gorm:"primaryKey"`
	Title       string      `gorm:"size:128;not null"`
	Description string      `gorm:"size:1024;not null"`
	Price       float64     `gorm:"not null;default:0"`
	Amount      *float64    ``
	Type        AdType      `gorm:"size:16;not null;index"`
	PaymentType PaymentType `gorm:"size:16;index"`
	AuthorID    uint        `gorm:"not null;index"`
	Author      User        `gorm:"foreignKey:AuthorID"`
	Photos      []string    `gorm:"type:text;serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AdResponse is the wire representation of an ad.
type AdResponse struct {
	ID          uint        `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	Amount      *float64    `json:"amount,omitempty"`
	Type        AdType      `json:"type"`
	PaymentType PaymentType `json:"paymentType,omitempty"`
	Author      string      `json:"author"`
	AuthorID    uint        `json:"authorId"`
	Photos      []string    `json:"photos"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ToResponse projects the ad for clients. The author must be preloaded for
// the username to be filled.
func (a *Ad) ToResponse() AdResponse {
	photos := a.Photos
	if photos == nil {
		photos = []string{}
	}
	return AdResponse{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		Price:       a.Price,
		Amount:      a.Amount,
		Type:        a.Type,
		PaymentType: a.PaymentType,
		Author:      a.Author.Username,
		AuthorID:    a.AuthorID,
		Photos:      photos,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
