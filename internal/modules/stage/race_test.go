// README: Concurrency tests for stage claims (run with -race).
package stage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"kilap/internal/modules/order"
	"kilap/internal/types"
)

func TestConcurrentClaimSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	store, orders := NewStore(db), order.NewStore(db)
	ctx := context.Background()

	o := seedOrder(t, orders, db, order.TypeOnline, order.StatusPickupScheduled)
	d, _ := DescriptorFor(StagePickup)

	admins := make([]types.ID, 4)
	for i := range admins {
		admins[i] = seedStaff(t, db, fmt.Sprintf("a-race-%d", i))
	}

	errs := make(chan error, len(admins))
	start := make(chan struct{})
	var wg sync.WaitGroup

	for _, admin := range admins {
		wg.Add(1)
		go func(id types.ID) {
			defer wg.Done()
			<-start
			errs <- store.Claim(ctx, d, o.ID, id)
		}(admin)
	}

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrStageLockedByOther {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", success)
	}

	// Exactly one attempt row regardless of how many raced.
	if n := countActions(t, db, o.ID, d.Attempt); n != 1 {
		t.Fatalf("expected 1 attempt row, got %d", n)
	}
	assertCurrentStatus(t, orders, o.ID, order.StatusPickupProgress)
}

func TestConcurrentCompleteVsRelease(t *testing.T) {
	db := setupTestDB(t)
	store, orders := NewStore(db), order.NewStore(db)
	ctx := context.Background()

	admin := seedStaff(t, db, "a-race-cr")
	o := seedOrder(t, orders, db, order.TypeOnline, order.StatusPickupScheduled)
	d, _ := DescriptorFor(StagePickup)

	if err := store.Claim(ctx, d, o.ID, admin); err != nil {
		t.Fatalf("claim: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := store.Complete(ctx, d, o.ID, admin, "p/pickup.jpg", "", nil)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		errs <- store.Release(ctx, d, o.ID, admin, "changed my mind")
	}()
	wg.Wait()
	close(errs)

	// One of the two answers the attempt; the loser finds the claim gone
	// (or the stage already completed). Never both succeed.
	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if err != ErrStageNotClaimed && err != ErrStageAlreadyCompleted {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
}
