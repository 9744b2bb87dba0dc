package stationstatus

import (
	"sort"
	"sync"
	"time"
)

// PlatformStatus is the published state of one platform.
type PlatformStatus struct {
	Platform     int       `json:"platform"`
	Occupancy    string    `json:"occupancy"`
	BusID        string    `json:"bus_id,omitempty"`
	PendingBusID string    `json:"pending_bus_id,omitempty"`
	Since        time.Time `json:"since"`
}

// Snapshot captures the stop after a control loop cycle.
type Snapshot struct {
	StationID       string           `json:"station_id"`
	SensorUpdatedAt string           `json:"sensor_updated_at,omitempty"`
	Stable          bool             `json:"stable"`
	Platforms       []PlatformStatus `json:"platforms"`
	Departed        []string         `json:"departed,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type Filter struct {
	Occupancy string
	BusID     string
}

type Store interface {
	Set(Snapshot)
	Current() Snapshot
	List(Filter) []PlatformStatus
}

type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Set replaces the snapshot. A platform whose occupancy and buses did not
// change keeps its previous Since timestamp.
func (s *MemoryStore) Set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := make(map[int]PlatformStatus, len(s.snap.Platforms))
	for _, p := range s.snap.Platforms {
		prev[p.Platform] = p
	}
	platforms := make([]PlatformStatus, len(snap.Platforms))
	for i, p := range snap.Platforms {
		if old, ok := prev[p.Platform]; ok && samePlatform(old, p) {
			p.Since = old.Since
		} else if p.Since.IsZero() {
			p.Since = snap.UpdatedAt
		}
		platforms[i] = p
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i].Platform < platforms[j].Platform })
	snap.Platforms = platforms
	snap.Departed = append([]string(nil), snap.Departed...)
	s.snap = snap
}

func samePlatform(a, b PlatformStatus) bool {
	return a.Occupancy == b.Occupancy && a.BusID == b.BusID && a.PendingBusID == b.PendingBusID
}

func (s *MemoryStore) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.Platforms = append([]PlatformStatus(nil), s.snap.Platforms...)
	out.Departed = append([]string(nil), s.snap.Departed...)
	return out
}

func (s *MemoryStore) List(f Filter) []PlatformStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]PlatformStatus, 0, len(s.snap.Platforms))
	for _, p := range s.snap.Platforms {
		if f.Occupancy != "" && p.Occupancy != f.Occupancy {
			continue
		}
		if f.BusID != "" && p.BusID != f.BusID && p.PendingBusID != f.BusID {
			continue
		}
		res = append(res, p)
	}
	return res
}
