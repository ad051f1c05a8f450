package exchange

import "fmt"

// Failed condition codes reported by ValidateTransition.
const (
	ConditionUnknownCurrentStatus = "unknown_current_status"
	ConditionUnknownTargetStatus  = "unknown_target_status"
	ConditionAlreadyInStatus      = "already_in_status"
	ConditionStatusTerminal       = "status_terminal"
	ConditionNotAllowed           = "transition_not_allowed"
	ConditionMustReturnToPrior    = "must_return_to_prior_status"
	ConditionReferenceDate        = "reference_date_required"
	ConditionReplacementProperty  = "replacement_property_required"
)

var conditionMessages = map[string]string{
	ConditionUnknownCurrentStatus: "current status is not recognised",
	ConditionUnknownTargetStatus:  "target status is not recognised",
	ConditionAlreadyInStatus:      "exchange is already in this status",
	ConditionStatusTerminal:       "exchange is in a terminal status",
	ConditionNotAllowed:           "transition is not allowed from the current status",
	ConditionMustReturnToPrior:    "an exchange on hold can only return to the status it was paused in",
	ConditionReferenceDate:        "a close of escrow, proceeds received or start date is required",
	ConditionReplacementProperty:  "a replacement property is required to complete the exchange",
}

// adjacency is the allowed-transition table. Leaving OnHold is further
// restricted to the stored prior status.
var adjacency = map[Status][]Status{
	StatusDraft:   {StatusPending, StatusTerminated},
	StatusPending: {Status45D, StatusOnHold, StatusTerminated},
	Status45D:     {Status180D, StatusOnHold, StatusTerminated},
	Status180D:    {StatusCompleted, StatusOnHold, StatusTerminated},
	StatusOnHold:  {StatusPending, Status45D, Status180D, StatusTerminated},
}

// CanTransition is the flat reachability check over the adjacency table.
func CanTransition(from, to Status) bool {
	for _, next := range adjacency[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Validation struct {
	Valid            bool     `json:"valid"`
	From             Status   `json:"from_status"`
	To               Status   `json:"to_status"`
	Message          string   `json:"message"`
	FailedConditions []string `json:"failed_conditions"`
}

type TransitionOption struct {
	To               Status   `json:"to_status"`
	Valid            bool     `json:"valid"`
	FailedConditions []string `json:"failed_conditions,omitempty"`
}

// ValidateTransition checks the adjacency table and the per-edge guards.
func ValidateTransition(e *Exchange, target string) Validation {
	result := Validation{From: e.Status, To: Status(target), FailedConditions: []string{}}

	from, ok := e.CurrentStatus()
	if !ok {
		return result.fail(ConditionUnknownCurrentStatus)
	}
	result.From = from

	to, ok := NormalizeStatus(target)
	if !ok {
		return result.fail(ConditionUnknownTargetStatus)
	}
	result.To = to

	switch {
	case from == to:
		return result.fail(ConditionAlreadyInStatus)
	case from.Terminal():
		return result.fail(ConditionStatusTerminal)
	case !CanTransition(from, to):
		return result.fail(ConditionNotAllowed)
	}

	if from == StatusOnHold && to != StatusTerminated {
		if prior, ok := priorStatus(e); !ok || prior != to {
			result.FailedConditions = append(result.FailedConditions, ConditionMustReturnToPrior)
		}
	}
	if to == Status45D && !e.HasReferenceDate() {
		result.FailedConditions = append(result.FailedConditions, ConditionReferenceDate)
	}
	if to == StatusCompleted && !e.ReplacementProperty.Present() {
		result.FailedConditions = append(result.FailedConditions, ConditionReplacementProperty)
	}

	if len(result.FailedConditions) > 0 {
		result.Message = conditionMessages[result.FailedConditions[0]]
		return result
	}
	result.Valid = true
	result.Message = fmt.Sprintf("transition from %s to %s is allowed", from, to)
	return result
}

func (v Validation) fail(condition string) Validation {
	v.Valid = false
	v.FailedConditions = append(v.FailedConditions, condition)
	v.Message = conditionMessages[condition]
	return v
}

// Transitions lists every status reachable by adjacency from the current
// one, each with the outcome of its guards.
func Transitions(e *Exchange) []TransitionOption {
	from, ok := e.CurrentStatus()
	if !ok {
		return []TransitionOption{}
	}
	options := make([]TransitionOption, 0, len(adjacency[from]))
	for _, to := range adjacency[from] {
		if from == StatusOnHold && to != StatusTerminated {
			if prior, ok := priorStatus(e); !ok || prior != to {
				continue
			}
		}
		v := ValidateTransition(e, string(to))
		options = append(options, TransitionOption{To: to, Valid: v.Valid, FailedConditions: v.FailedConditions})
	}
	return options
}

// PlanChange turns a validated transition into the write it needs.
func PlanChange(v Validation, at TimeSource) StatusChange {
	change := StatusChange{To: v.To, ChangedAt: at()}
	if v.To == StatusOnHold {
		prior := v.From
		change.PreviousStatus = &prior
	}
	return change
}

func priorStatus(e *Exchange) (Status, bool) {
	if e.PreviousStatus == nil {
		return "", false
	}
	return NormalizeStatus(string(*e.PreviousStatus))
}
