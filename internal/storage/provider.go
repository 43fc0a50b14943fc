// Package storage persists calendar events as individual YAML records.
package storage

import "github.com/starford/dagaz/internal/models"

// Partition selects the active record set or the archived one. Archived
// events are excluded from all queries against the active set.
type Partition string

const (
	Active  Partition = "active"
	Archive Partition = "archive"
)

// Provider abstracts the event store.
type Provider interface {
	// List returns every valid event in the partition plus one warning per
	// skipped record (duplicates, missing start, unreadable files).
	List(p Partition) ([]*models.Event, []string, error)
	// Read loads one event by uid from the partition.
	Read(uid string, p Partition) (*models.Event, error)
	// Write persists an event into the active partition, atomically.
	Write(ev *models.Event) error
	// Delete removes an active event record entirely.
	Delete(uid string) error
	// MoveToArchive moves an active record into the archive partition.
	MoveToArchive(uid string) error
}
