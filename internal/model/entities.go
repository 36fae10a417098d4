package model

import (
	"time"

	"github.com/google/uuid"
)

// Registration is an attendee's booking for a single or date record.
type Registration struct {
	ID        int64     `json:"uid"`
	Ref       uuid.UUID `json:"ref"`
	EventID   int64     `json:"event_uid"`
	UserID    int64     `json:"user_uid"`
	Seats     int       `json:"seats"`
	PaidAt    time.Time `json:"paid_at"`
	OnQueue   bool      `json:"on_queue"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
}

// GetID returns the record uid.
func (r *Registration) GetID() int64 { return r.ID }

// IsPaid reports whether a payment date is recorded.
func (r *Registration) IsPaid() bool { return !r.PaidAt.IsZero() }

// IsRegular reports whether r occupies a regular seat rather than a queue slot.
func (r *Registration) IsRegular() bool { return !r.OnQueue }

// Category groups topics.
type Category struct {
	ID    int64  `json:"uid"`
	Title string `json:"title"`
}

// GetID returns the record uid.
func (c *Category) GetID() int64 { return c.ID }

// Place is a venue.
type Place struct {
	ID      int64  `json:"uid"`
	Title   string `json:"title"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Organizer runs topics.
type Organizer struct {
	ID    int64  `json:"uid"`
	Title string `json:"title"`
}

// Speaker appears on dates in one or more roles.
type Speaker struct {
	ID           int64  `json:"uid"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Description  string `json:"description"`
}

// TargetGroup restricts topics to an age range; 0 means unbounded.
type TargetGroup struct {
	ID         int64  `json:"uid"`
	Title      string `json:"title"`
	MinimumAge int    `json:"minimum_age"`
	MaximumAge int    `json:"maximum_age"`
}

// EventType classifies topics.
type EventType struct {
	ID    int64  `json:"uid"`
	Title string `json:"title"`
}
