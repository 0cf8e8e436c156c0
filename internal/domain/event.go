package domain

import (
	"context"
	"time"
)

// Event represents a conference event
// swagger:model Event
type Event struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EventRepository defines the read access the attendance flows need on events.
type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*Event, error)
}
