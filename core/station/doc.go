// Package station turns noisy platform occupancy samples into confirmed
// platform events.
//
// A Stabilizer debounces raw sensor vectors and only exposes a snapshot once
// it has stayed unchanged for the confirmation window. The Reconciler compares
// that snapshot with the platforms it currently believes occupied and
// classifies every transition as a departure, a reentry of a recently
// departed bus, or a new arrival. Classification (Analyze) and commit (Apply)
// are separate steps so callers can identify new arrivals in between.
package station
