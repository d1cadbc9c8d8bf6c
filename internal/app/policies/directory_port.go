package policies

import (
	"context"
	"errors"
)

var ErrPropertyNotFound = errors.New("policies: property not found")

type PropertyStatus string

const (
	PropertyAvailable PropertyStatus = "available"
	PropertyRented    PropertyStatus = "rented"
)

// Property is the slice of the directory record the messaging core needs.
type Property struct {
	ID      string
	OwnerID string
	Title   string
	Status  PropertyStatus
}

// PropertyDirectory is the external source of truth for properties. Status
// must be read fresh at send time, never cached, so a listing that becomes
// rented immediately blocks new inquiries.
type PropertyDirectory interface {
	GetProperty(ctx context.Context, propertyID string) (Property, error)
}
