package storage

import "time"

// EventKind identifies a store lifecycle event.
type EventKind int

const (
	EventPacketStored EventKind = iota + 1
	EventPacketUpdated
	EventPacketDeleted
	EventBlockStored
	EventBlockUpdated
	EventBlockDeleted
	EventReferenceAdded
	EventReferenceRemoved
	EventRelationCreated
	EventRelationDeleted
	EventTagCreated
	EventTagUsed
	EventTagDeleted
	EventCleanupRun
)

// Event describes a committed mutation. Observers receive events after
// the transaction commits, never before.
type Event struct {
	Kind   EventKind
	ItemID string
	At     time.Time
}

// Observer receives store lifecycle events. Implementations must not
// block; slow observers delay the calling goroutine, not the commit.
type Observer interface {
	Notify(Event)
}

// NoopObserver is an Observer that discards all events.
type NoopObserver struct{}

var _ Observer = NoopObserver{}

func (NoopObserver) Notify(Event) {}
