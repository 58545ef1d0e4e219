// README: Stage descriptors, the nine staff actions and log record types.
package stage

import (
	"time"

	"kilap/internal/modules/order"
	"kilap/internal/types"
)

// Stage is a unit of staff-claimable work per order.
type Stage string

const (
	StagePickup   Stage = "pickup"
	StageCheck    Stage = "check"
	StageDelivery Stage = "delivery"
)

// Action values form the append-only audit trail and are the sole source of
// truth for claim ownership: three per stage (attempt, complete, release).
type Action string

const (
	ActionAttemptPickup Action = "ATTEMPT_PICKUP"
	ActionPickup        Action = "PICKUP"
	ActionReleasePickup Action = "RELEASE_PICKUP"

	ActionAttemptCheck Action = "ATTEMPT_CHECK"
	ActionCheck        Action = "CHECK"
	ActionReleaseCheck Action = "RELEASE_CHECK"

	ActionAttemptDelivery Action = "ATTEMPT_DELIVERY"
	ActionDelivery        Action = "DELIVERY"
	ActionReleaseDelivery Action = "RELEASE_DELIVERY"
)

// Descriptor parameterizes the claim engine per stage, so exclusivity and
// idempotency are enforced by one code path instead of three.
type Descriptor struct {
	Stage    Stage
	Attempt  Action
	Complete Action
	Release  Action
	// Progress is the status a claim makes visible; Next is the forward
	// progression a completion appends.
	Progress order.Status
	Next     order.Status
}

var descriptors = map[Stage]Descriptor{
	StagePickup: {
		Stage:    StagePickup,
		Attempt:  ActionAttemptPickup,
		Complete: ActionPickup,
		Release:  ActionReleasePickup,
		Progress: order.StatusPickupProgress,
		Next:     order.StatusInspection,
	},
	StageCheck: {
		Stage:    StageCheck,
		Attempt:  ActionAttemptCheck,
		Complete: ActionCheck,
		Release:  ActionReleaseCheck,
		Progress: order.StatusInspection,
		Next:     order.StatusWaitingPayment,
	},
	StageDelivery: {
		Stage:    StageDelivery,
		Attempt:  ActionAttemptDelivery,
		Complete: ActionDelivery,
		Release:  ActionReleaseDelivery,
		Progress: order.StatusDelivery,
		Next:     order.StatusCompleted,
	},
}

func DescriptorFor(st Stage) (Descriptor, bool) {
	d, ok := descriptors[st]
	return d, ok
}

// Slug is the URL segment staff routes use for a stage ("check" renders as
// "inspection" everywhere outside the action log).
func (s Stage) Slug() string {
	if s == StageCheck {
		return "inspection"
	}
	return string(s)
}

func StageFromSlug(slug string) (Stage, bool) {
	switch slug {
	case "pickup":
		return StagePickup, true
	case "inspection":
		return StageCheck, true
	case "delivery":
		return StageDelivery, true
	}
	return "", false
}

type actionKind int

const (
	kindAttempt actionKind = iota
	kindComplete
	kindRelease
)

// actionIndex resolves any of the nine action values back to its stage.
var actionIndex = func() map[Action]struct {
	stage Stage
	kind  actionKind
} {
	idx := make(map[Action]struct {
		stage Stage
		kind  actionKind
	})
	for st, d := range descriptors {
		idx[d.Attempt] = struct {
			stage Stage
			kind  actionKind
		}{st, kindAttempt}
		idx[d.Complete] = struct {
			stage Stage
			kind  actionKind
		}{st, kindComplete}
		idx[d.Release] = struct {
			stage Stage
			kind  actionKind
		}{st, kindRelease}
	}
	return idx
}()

type ActionRecord struct {
	ID          int64
	OrderID     types.ID
	OrderNumber string
	AdminID     types.ID
	Action      Action
	PhotoID     *types.ID
	Note        string
	CreatedAt   time.Time
}

type PhotoRecord struct {
	ID        types.ID
	OrderID   types.ID
	AdminID   types.ID
	Stage     Stage
	Path      string
	Note      string
	CreatedAt time.Time
}

// ShoeSelection is the inspection payload: one pair and the services the
// customer approved for it. Quantity per selected service is always 1.
type ShoeSelection struct {
	Brand      string
	Color      string
	Note       string
	ServiceIDs []types.ID
}
