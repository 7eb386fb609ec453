package allocator

import (
	"fmt"

	"github.com/idlematch/idlematch/pkg/core/model"
)

// InvariantViolation describes one broken allocation invariant
type InvariantViolation struct {
	RequestID   int
	RoomID      int
	Description string
}

// CheckInvariants validates a result against the hard allocation invariants:
// no request or room assigned twice, capacity covered, threshold met, and
// the per-stakeholder usage cap respected. Both solve strategies must
// produce results that pass with no violations.
func CheckInvariants(
	result *Result,
	rooms []model.Room,
	requests []model.Request,
	predictions []model.IdlePrediction,
	cfg ConstraintConfig,
) []InvariantViolation {
	roomByID := make(map[int]model.Room, len(rooms))
	for _, room := range rooms {
		roomByID[room.ID] = room
	}
	requestByID := make(map[int]model.Request, len(requests))
	for _, request := range requests {
		requestByID[request.ID] = request
	}
	idleByRoom := make(map[int]float64, len(predictions))
	for _, prediction := range predictions {
		idleByRoom[prediction.RoomID] = ClampProbability(prediction.IdleProbability)
	}

	violations := make([]InvariantViolation, 0)
	seenRequests := make(map[int]bool)
	seenRooms := make(map[int]bool)
	countByStakeholder := make(map[string]int)
	capLimit := stakeholderCapLimit(cfg.StakeholderUsageCap, len(requests))

	for _, assignment := range result.Assignments {
		if seenRequests[assignment.RequestID] {
			violations = append(violations, InvariantViolation{
				RequestID:   assignment.RequestID,
				RoomID:      assignment.RoomID,
				Description: "request assigned more than once",
			})
		}
		seenRequests[assignment.RequestID] = true

		if seenRooms[assignment.RoomID] {
			violations = append(violations, InvariantViolation{
				RequestID:   assignment.RequestID,
				RoomID:      assignment.RoomID,
				Description: "room assigned more than once",
			})
		}
		seenRooms[assignment.RoomID] = true

		room, roomOK := roomByID[assignment.RoomID]
		request, requestOK := requestByID[assignment.RequestID]
		if !roomOK || !requestOK {
			violations = append(violations, InvariantViolation{
				RequestID:   assignment.RequestID,
				RoomID:      assignment.RoomID,
				Description: "assignment references unknown room or request",
			})
			continue
		}

		if room.Capacity < request.RequestedCapacity {
			violations = append(violations, InvariantViolation{
				RequestID:   assignment.RequestID,
				RoomID:      assignment.RoomID,
				Description: fmt.Sprintf("room capacity %d below requested %d", room.Capacity, request.RequestedCapacity),
			})
		}

		if idleByRoom[assignment.RoomID] < cfg.IdleProbabilityThreshold {
			violations = append(violations, InvariantViolation{
				RequestID:   assignment.RequestID,
				RoomID:      assignment.RoomID,
				Description: fmt.Sprintf("idle probability %.4f below threshold %.4f", idleByRoom[assignment.RoomID], cfg.IdleProbabilityThreshold),
			})
		}

		countByStakeholder[request.StakeholderID]++
		if float64(countByStakeholder[request.StakeholderID]) > capLimit+scoreEpsilon {
			violations = append(violations, InvariantViolation{
				RequestID:   assignment.RequestID,
				RoomID:      assignment.RoomID,
				Description: fmt.Sprintf("stakeholder %s exceeds usage cap", request.StakeholderID),
			})
		}
	}

	return violations
}
