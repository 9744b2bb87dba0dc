// Package events defines the station related events emitted on the event bus.
//
// Available event types:
//   - PlatformEvent: a confirmed departure, reentry, arrival or final departure
//   - AssignmentEvent: a bus was sent to an open platform, or the instruction expired
//   - CycleEvent: outcome of one control loop iteration
package events
