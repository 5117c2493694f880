// Package deliverystatus applies inbound provider events to deliveries.
package deliverystatus

import (
	"github.com/mcdev12/outreach/go/internal/models"
)

// Event is a provider-reported delivery event.
type Event string

const (
	EventDelivered    Event = "delivered"
	EventOpened       Event = "opened"
	EventClicked      Event = "clicked"
	EventBounced      Event = "bounced"
	EventUnsubscribed Event = "unsubscribed"
	EventComplained   Event = "complained"
	EventFailed       Event = "failed"
)

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	_, ok := eventStatus[e]
	return ok
}

// eventStatus is the delivery status each event moves to. A complaint is
// recorded as an unsubscribe.
var eventStatus = map[Event]models.DeliveryStatus{
	EventDelivered:    models.DeliveryStatusDelivered,
	EventOpened:       models.DeliveryStatusOpened,
	EventClicked:      models.DeliveryStatusClicked,
	EventBounced:      models.DeliveryStatusBounced,
	EventUnsubscribed: models.DeliveryStatusUnsubscribed,
	EventComplained:   models.DeliveryStatusUnsubscribed,
	EventFailed:       models.DeliveryStatusFailed,
}

// Status returns the delivery status the event maps to.
func (e Event) Status() models.DeliveryStatus {
	return eventStatus[e]
}

// RevokesConsent reports whether the event turns the contact's channel
// consent off.
func (e Event) RevokesConsent() bool {
	return e == EventBounced || e == EventUnsubscribed || e == EventComplained
}

// StatColumn returns the daily counter the event increments, if any.
func (e Event) StatColumn() (models.StatColumn, bool) {
	switch e {
	case EventDelivered:
		return models.StatDelivered, true
	case EventOpened:
		return models.StatOpened, true
	case EventClicked:
		return models.StatClicked, true
	case EventBounced:
		return models.StatBounced, true
	}
	return "", false
}

var rank = map[models.DeliveryStatus]int{
	models.DeliveryStatusQueued:    0,
	models.DeliveryStatusSending:   1,
	models.DeliveryStatusSent:      2,
	models.DeliveryStatusFailed:    2,
	models.DeliveryStatusDelivered: 3,
	models.DeliveryStatusOpened:    4,
	models.DeliveryStatusClicked:   5,
}

func hardStop(s models.DeliveryStatus) bool {
	return s == models.DeliveryStatusBounced || s == models.DeliveryStatusUnsubscribed
}

// CanAdvance reports whether a delivery in status from may move to status
// to. Statuses only move forward; bounced and unsubscribed override any
// non-terminal status and are never overwritten. A provider failure report
// may still replace sent.
func CanAdvance(from, to models.DeliveryStatus) bool {
	if from == to || hardStop(from) {
		return false
	}
	if hardStop(to) {
		return true
	}
	if to == models.DeliveryStatusFailed {
		return rank[from] <= rank[models.DeliveryStatusSent] && from != models.DeliveryStatusFailed
	}
	return rank[to] > rank[from]
}
