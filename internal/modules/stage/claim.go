// README: Pure open-claim scan over a staff member's action log.
package stage

import (
	"time"

	"kilap/internal/types"
)

// OpenClaim is a staff member's one active stage claim: the newest ATTEMPT
// with no later same-stage complete or release by the same staff member on
// the same order. AttemptedAt is the ATTEMPT row's timestamp; release uses
// it to tell claim-inserted status rows from pre-existing ones.
type OpenClaim struct {
	OrderID     types.ID
	OrderNumber string
	Stage       Stage
	AdminID     types.ID
	AttemptedAt time.Time
}

type claimKey struct {
	orderID types.ID
	stage   Stage
	adminID types.ID
}

// FindOpenClaim scans actions ordered newest-first and returns the caller's
// open claim, or nil when every attempt has been answered. The same scan
// backs both the lock-enforcement gate (across all of a staff member's
// orders) and the claim engine's in-transaction ownership check (one
// order's log).
func FindOpenClaim(actions []ActionRecord) *OpenClaim {
	answered := make(map[claimKey]bool)
	for _, act := range actions {
		ref, ok := actionIndex[act.Action]
		if !ok {
			continue
		}
		key := claimKey{orderID: act.OrderID, stage: ref.stage, adminID: act.AdminID}
		switch ref.kind {
		case kindComplete, kindRelease:
			answered[key] = true
		case kindAttempt:
			if !answered[key] {
				return &OpenClaim{
					OrderID:     act.OrderID,
					OrderNumber: act.OrderNumber,
					Stage:       ref.stage,
					AdminID:     act.AdminID,
					AttemptedAt: act.CreatedAt,
				}
			}
		}
	}
	return nil
}
