package order

import "testing"

func TestStatusDisplay(t *testing.T) {
	if got := StatusWaitingDeposit.Display(); got != "Menunggu DP" {
		t.Errorf("Display() = %q, want %q", got, "Menunggu DP")
	}
	// Unknown values fall through unchanged rather than panicking.
	if got := Status("LEGACY").Display(); got != "LEGACY" {
		t.Errorf("Display() = %q, want raw value", got)
	}
}

func TestStatusesMatchingDisplay(t *testing.T) {
	got := StatusesMatchingDisplay("penjemputan")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches for 'penjemputan', got %v", got)
	}
	found := map[Status]bool{}
	for _, s := range got {
		found[s] = true
	}
	if !found[StatusPickupScheduled] || !found[StatusPickupProgress] {
		t.Fatalf("expected both pickup statuses, got %v", got)
	}

	// Case-insensitive, substring, and misses.
	if got := StatusesMatchingDisplay("MENUNGGU dp"); len(got) != 1 || got[0] != StatusWaitingDeposit {
		t.Fatalf("expected WAITING_DEPOSIT, got %v", got)
	}
	if got := StatusesMatchingDisplay("tidak ada"); got != nil {
		t.Fatalf("expected no matches, got %v", got)
	}
	if got := StatusesMatchingDisplay("  "); got != nil {
		t.Fatalf("expected nil for blank term, got %v", got)
	}
}
