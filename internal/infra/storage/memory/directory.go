package memory

import (
	"context"
	"strings"
	"sync"

	"renthub/internal/app/policies"
)

// PropertyDirectory is a fixture-backed stand-in for the external property
// service, used in dev runs and tests.
type PropertyDirectory struct {
	mu    sync.RWMutex
	items map[string]policies.Property
}

func NewPropertyDirectory() *PropertyDirectory {
	return &PropertyDirectory{items: make(map[string]policies.Property)}
}

func (d *PropertyDirectory) GetProperty(ctx context.Context, propertyID string) (policies.Property, error) {
	if err := ctxStatus(ctx); err != nil {
		return policies.Property{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	property, ok := d.items[strings.TrimSpace(propertyID)]
	if !ok {
		return policies.Property{}, policies.ErrPropertyNotFound
	}
	return property, nil
}

// Put inserts or replaces a property record.
func (d *PropertyDirectory) Put(property policies.Property) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[property.ID] = property
}

// SetStatus updates a property's status in place, mimicking a listing that
// gets rented while conversations are open.
func (d *PropertyDirectory) SetStatus(propertyID string, status policies.PropertyStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	property, ok := d.items[propertyID]
	if !ok {
		return false
	}
	property.Status = status
	d.items[propertyID] = property
	return true
}

var _ policies.PropertyDirectory = (*PropertyDirectory)(nil)
