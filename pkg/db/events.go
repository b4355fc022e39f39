package db

import (
	"github.com/DeBankDeFi/tahani/pkg/lib/broker"
)

type EventKind string

const (
	EventOpened    EventKind = "opened"
	EventClosed    EventKind = "closed"
	EventDestroyed EventKind = "destroyed"
	EventRepaired  EventKind = "repaired"
	// EventReclaimed reports a resource released by its finalizer because the
	// program dropped it while live.
	EventReclaimed EventKind = "reclaimed"
)

// Event is a lifecycle change of a store or one of its resources.
type Event struct {
	Kind EventKind
	// Resource is "store", "batch", "snapshot" or "iterator".
	Resource string
	Store    string
	Engine   string
	// ID of the handle or resource, empty for Destroyed and Repaired.
	ID string
}

var events = broker.NewBroker[Event]()

// Subscribe returns a channel receiving every later Event. A subscriber that
// falls DefaultCapacity events behind is dropped and its channel closed.
func Subscribe() chan *Event {
	return events.Subscribe()
}

func Unsubscribe(ch chan *Event) {
	events.Unsubscribe(ch)
}

func publish(kind EventKind, resource, store, engine, id string) {
	events.Publish(&Event{Kind: kind, Resource: resource, Store: store, Engine: engine, ID: id})
}
