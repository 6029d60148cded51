/*
transitions.go - The transition rule table

PURPOSE:
  One authoritative source of truth for transition legality. Every status
  check in the system goes through this table; no handler carries its own
  status switch.

RULE TABLE:
  enrolled            -> approve, reject, request_changes, withdraw
  awaiting_submission -> submit_deliverables, withdraw, expire
  awaiting_review     -> approve, reject, request_changes
  changes_requested   -> resubmit, withdraw, expire
  approved/rejected/withdrawn/expired -> (terminal)

Each action maps deterministically to exactly one resulting status.

SEE ALSO:
  - machine.go: Applies the table inside ApplyTransition
*/
package enrollment

// ruleTable maps each non-terminal status to its legal actions. Terminal
// statuses have no entry: nothing is ever legal from them.
var ruleTable = map[Status][]Action{
	StatusEnrolled:           {ActionApprove, ActionReject, ActionRequestChanges, ActionWithdraw},
	StatusAwaitingSubmission: {ActionSubmitDeliverables, ActionWithdraw, ActionExpire},
	StatusAwaitingReview:     {ActionApprove, ActionReject, ActionRequestChanges},
	StatusChangesRequested:   {ActionResubmit, ActionWithdraw, ActionExpire},
}

// actionResult maps each action to the unique status it produces.
var actionResult = map[Action]Status{
	ActionApprove:            StatusApproved,
	ActionReject:             StatusRejected,
	ActionRequestChanges:     StatusChangesRequested,
	ActionWithdraw:           StatusWithdrawn,
	ActionExpire:             StatusExpired,
	ActionSubmitDeliverables: StatusAwaitingReview,
	ActionResubmit:           StatusAwaitingReview,
}

// reasonRequired lists actions that must carry a human-entered reason.
var reasonRequired = map[Action]bool{
	ActionReject:         true,
	ActionRequestChanges: true,
}

// AllowedActions returns the legal actions for a status. The status must be
// a member of the closed set; an unknown status is a caller bug, and the
// function returns nothing for it rather than guessing.
func AllowedActions(s Status) []Action {
	actions := ruleTable[s]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// IsLegal reports whether action may be applied to an enrollment in status s.
func IsLegal(s Status, a Action) bool {
	for _, allowed := range ruleTable[s] {
		if allowed == a {
			return true
		}
	}
	return false
}

// ResultOf returns the status an action produces. ok is false for unknown
// actions.
func ResultOf(a Action) (Status, bool) {
	result, ok := actionResult[a]
	return result, ok
}

// RequiresReason reports whether the action must carry a non-empty reason.
func RequiresReason(a Action) bool {
	return reasonRequired[a]
}

// IsTerminal reports whether a status is a permanent end state.
func IsTerminal(s Status) bool {
	switch s {
	case StatusApproved, StatusRejected, StatusWithdrawn, StatusExpired:
		return true
	}
	return false
}

// ValidStatus reports membership in the closed status set.
func ValidStatus(s Status) bool {
	if IsTerminal(s) {
		return true
	}
	_, ok := ruleTable[s]
	return ok
}

// ValidAction reports membership in the closed action set.
func ValidAction(a Action) bool {
	_, ok := actionResult[a]
	return ok
}
