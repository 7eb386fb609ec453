package model

import "time"

// RequestStatus is the lifecycle state of an allocation request
type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusAllocated RequestStatus = "ALLOCATED"
)

func (s RequestStatus) IsValid() bool {
	return s == StatusPending || s == StatusAllocated
}

// Room represents a bookable room with a fixed capacity
type Room struct {
	ID       int
	Name     string
	Capacity int
	Type     string
}

// Request represents a stakeholder's demand for a room in a date/time slot.
// Status is the only mutable field and is changed exclusively by Approve.
type Request struct {
	ID                int
	StakeholderID     string
	RequestedCapacity int
	PriorityWeight    float64
	Date              string // Date format "2006-01-02"
	TimeSlot          string // Slot format "HH-HH", e.g. "09-11"
	Status            RequestStatus
}

// IdlePrediction is an externally predicted idle probability for a room
// in a given date/time slot
type IdlePrediction struct {
	RoomID          int
	Date            string
	TimeSlot        string
	IdleProbability float64 // clamped to [0, 1]
	ConfidenceScore float64 // clamped to [0, 1]
}

// AllocationLogEntry is a committed assignment persisted by Approve
type AllocationLogEntry struct {
	ID        string
	RequestID int
	RoomID    int
	Date      string
	TimeSlot  string
	Score     float64
}

// DemandForecast is a frequency-based demand intensity estimate for one
// date/time slot, derived from the pending request backlog. IntensityScore
// is the slot's share of all pending requests, in [0, 1].
type DemandForecast struct {
	Date           string
	TimeSlot       string
	RequestCount   int
	IntensityScore float64
	GeneratedAt    time.Time
}
