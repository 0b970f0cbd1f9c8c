package services

import (
	"fmt"
	"slices"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
)

// Action is a requested job transition as named by the caller.
type Action string

const (
	ActionClaim    Action = "claim"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionRelease  Action = "release"
)

// legal is the whole job graph. Release is the driver un-claim back to pending.
var legal = map[model.JobStatus][]model.JobStatus{
	model.JobPending:    {model.JobAssigned, model.JobCancelled},
	model.JobAssigned:   {model.JobInProgress, model.JobPending, model.JobCancelled},
	model.JobInProgress: {model.JobCompleted, model.JobPending, model.JobCancelled},
}

type rule struct {
	from []model.JobStatus
	to   model.JobStatus
	// byDriver restricts the action to the assigned driver.
	byDriver bool
}

var rules = map[Action]rule{
	ActionClaim:    {from: []model.JobStatus{model.JobPending}, to: model.JobAssigned},
	ActionStart:    {from: []model.JobStatus{model.JobAssigned}, to: model.JobInProgress, byDriver: true},
	ActionComplete: {from: []model.JobStatus{model.JobInProgress}, to: model.JobCompleted, byDriver: true},
	ActionCancel:   {from: []model.JobStatus{model.JobPending, model.JobAssigned, model.JobInProgress}, to: model.JobCancelled},
	ActionRelease:  {from: []model.JobStatus{model.JobAssigned, model.JobInProgress}, to: model.JobPending, byDriver: true},
}

// CanTransition reports whether from → to is an edge of the job graph.
func CanTransition(from, to model.JobStatus) bool {
	return slices.Contains(legal[from], to)
}

// sources is r.from limited to edges of the job graph, so a rule can never
// write a move the graph forbids.
func (r rule) sources() []model.JobStatus {
	return slices.DeleteFunc(slices.Clone(r.from), func(from model.JobStatus) bool {
		return !CanTransition(from, r.to)
	})
}

func ruleFor(a Action) rule {
	r, ok := rules[a]
	if !ok {
		panic(fmt.Sprintf("unknown job action %q", a))
	}
	return r
}

// refusal explains why a conditional write for action did not match job as
// it is now.
func refusal(job model.Job, actor model.Actor, a Action) error {
	r := ruleFor(a)
	switch actor.Role {
	case model.RoleDriver:
		if r.byDriver && job.AssignedDriverId != nil && !job.AssignedTo(actor.ID) {
			return fmt.Errorf("job %s is assigned to another driver: %w", job.ID, myerrors.ErrForbidden)
		}
	case model.RoleCustomer:
		if job.Customer.ID != actor.ID {
			return fmt.Errorf("job %s belongs to another customer: %w", job.ID, myerrors.ErrForbidden)
		}
	}
	return &myerrors.InvalidTransitionError{JobID: job.ID, Current: string(job.Status), Requested: string(a)}
}

var (
	_ ports.IJobService       = (*JobService)(nil)
	_ ports.IFeedService      = (*FeedService)(nil)
	_ ports.IMatchingService  = (*MatchingService)(nil)
	_ ports.IExtensionService = (*ExtensionService)(nil)
	_ ports.IDriverService    = (*DriverService)(nil)
)
