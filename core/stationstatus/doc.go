// Package stationstatus keeps the latest published state of each platform
// and derives dwell-time statistics from platform events.
package stationstatus
