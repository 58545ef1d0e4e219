// README: DB-backed webhook settlement tests.
package payment

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"kilap/internal/modules/order"
	"kilap/internal/types"
)

const testServerKey = "test-server-key"

// recordingBroadcaster captures Publish calls.
type recordingBroadcaster struct {
	calls []string
}

func (b *recordingBroadcaster) Publish(orderNumber, phase, status string) {
	b.calls = append(b.calls, orderNumber+"/"+phase+"/"+status)
}

func settlementFor(number string, phase Phase, amount string) Notification {
	n := Notification{
		OrderRef:    OrderRef(number, phase),
		StatusCode:  "200",
		Status:      "settlement",
		GrossAmount: amount,
	}
	n.SignatureKey = Signature(n.OrderRef, n.StatusCode, n.GrossAmount, testServerKey)
	return n
}

func TestDepositSettlementSchedulesPickup(t *testing.T) {
	db := setupPaymentTestDB(t)
	orders := order.NewStore(db)
	store := NewStore(db)
	broadcast := &recordingBroadcaster{}
	svc := NewService(store, orders, nil, broadcast, testServerKey, nil)
	ctx := context.Background()

	o := seedPaidOrder(t, db, orders, order.TypeOnline, order.StatusWaitingDeposit, 20000)

	n := settlementFor(o.Number, PhaseDownPayment, "20000.00")
	if err := svc.HandleNotification(ctx, n); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	txn, err := store.GetByOrderPhase(ctx, o.ID, PhaseDownPayment)
	if err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != TxnSettlement {
		t.Fatalf("transaction status = %s, want SETTLEMENT", txn.Status)
	}

	st, err := orders.CurrentStatus(ctx, o.ID)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if st != order.StatusPickupScheduled {
		t.Fatalf("order status = %s, want PICKUP_SCHEDULED", st)
	}

	if len(broadcast.calls) != 1 || !strings.HasSuffix(broadcast.calls[0], "/down_payment/SETTLEMENT") {
		t.Fatalf("unexpected broadcasts %v", broadcast.calls)
	}
}

func TestSettlementIsIdempotent(t *testing.T) {
	db := setupPaymentTestDB(t)
	orders := order.NewStore(db)
	store := NewStore(db)
	svc := NewService(store, orders, nil, nil, testServerKey, nil)
	ctx := context.Background()

	o := seedPaidOrder(t, db, orders, order.TypeOnline, order.StatusWaitingDeposit, 20000)
	n := settlementFor(o.Number, PhaseDownPayment, "20000.00")

	// The gateway retries until it sees a 2xx; the same notification must
	// be safe to replay.
	for i := 0; i < 3; i++ {
		if err := svc.HandleNotification(ctx, n); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	var statuses int
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM order_statuses
		WHERE order_id = $1 AND name = $2`,
		string(o.ID), string(order.StatusPickupScheduled)).Scan(&statuses)
	if err != nil {
		t.Fatalf("count statuses: %v", err)
	}
	if statuses != 1 {
		t.Fatalf("expected 1 PICKUP_SCHEDULED row, got %d", statuses)
	}
}

func TestBadSignatureChangesNothing(t *testing.T) {
	db := setupPaymentTestDB(t)
	orders := order.NewStore(db)
	store := NewStore(db)
	svc := NewService(store, orders, nil, nil, testServerKey, nil)
	ctx := context.Background()

	o := seedPaidOrder(t, db, orders, order.TypeOnline, order.StatusWaitingDeposit, 20000)

	n := settlementFor(o.Number, PhaseDownPayment, "20000.00")
	n.GrossAmount = "1.00" // tampered after signing
	if err := svc.HandleNotification(ctx, n); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	txn, err := store.GetByOrderPhase(ctx, o.ID, PhaseDownPayment)
	if err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != TxnPending {
		t.Fatalf("transaction moved to %s on bad signature", txn.Status)
	}
	st, err := orders.CurrentStatus(ctx, o.ID)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if st != order.StatusWaitingDeposit {
		t.Fatalf("order status moved to %s on bad signature", st)
	}
}

func TestFullPaymentSettlementStartsProcessing(t *testing.T) {
	db := setupPaymentTestDB(t)
	orders := order.NewStore(db)
	store := NewStore(db)
	svc := NewService(store, orders, nil, nil, testServerKey, nil)
	ctx := context.Background()

	o := seedPaidOrder(t, db, orders, order.TypeOffline, order.StatusWaitingPayment, 0)
	seedTransaction(t, db, o.ID, PhaseFullPayment, 120000)

	n := settlementFor(o.Number, PhaseFullPayment, "120000.00")
	if err := svc.HandleNotification(ctx, n); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	st, err := orders.CurrentStatus(ctx, o.ID)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if st != order.StatusInProcess {
		t.Fatalf("order status = %s, want IN_PROCESS", st)
	}
}

func TestExpiryClosesTransactionWithoutProgress(t *testing.T) {
	db := setupPaymentTestDB(t)
	orders := order.NewStore(db)
	store := NewStore(db)
	svc := NewService(store, orders, nil, nil, testServerKey, nil)
	ctx := context.Background()

	o := seedPaidOrder(t, db, orders, order.TypeOnline, order.StatusWaitingDeposit, 20000)

	n := settlementFor(o.Number, PhaseDownPayment, "20000.00")
	n.Status = "expire"
	n.StatusCode = "407"
	n.SignatureKey = Signature(n.OrderRef, n.StatusCode, n.GrossAmount, testServerKey)

	if err := svc.HandleNotification(ctx, n); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	txn, err := store.GetByOrderPhase(ctx, o.ID, PhaseDownPayment)
	if err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if txn.Status != TxnExpired {
		t.Fatalf("transaction status = %s, want EXPIRED", txn.Status)
	}
	st, err := orders.CurrentStatus(ctx, o.ID)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if st != order.StatusWaitingDeposit {
		t.Fatalf("expiry must not advance the order, got %s", st)
	}
}

func seedPaidOrder(t *testing.T, db *pgxpool.Pool, orders *order.Store, typ order.Type, initial order.Status, deposit int64) *order.Order {
	t.Helper()
	userID := types.ID(uuid.NewString())
	_, err := db.Exec(context.Background(), `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, 'Tester', $2, 'x')`,
		string(userID), uuid.NewString()+"@kilap.test")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	o := &order.Order{Type: typ, UserID: userID, ServiceDate: time.Now()}
	addr := &order.Address{Name: "Tester", Phone: "08", Street: "Jl."}
	if err := orders.Create(context.Background(), o, addr, initial, deposit); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func seedTransaction(t *testing.T, db *pgxpool.Pool, orderID types.ID, phase Phase, amount int64) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO transactions (id, order_id, phase, amount)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), string(orderID), string(phase), amount)
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
}

func setupPaymentTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("KILAP_TEST_DSN")
	if dsn == "" {
		t.Skip("KILAP_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyPaymentMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	_, err = db.Exec(ctx, `TRUNCATE TABLE transaction_items, transactions, shoes,
		order_photos, order_actions, order_statuses, orders, addresses, order_counters, users`)
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

func applyPaymentMigration(ctx context.Context, db *pgxpool.Pool) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 6; i++ {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	content, err := os.ReadFile(filepath.Join(dir, "migrations", "0001_init.up.sql"))
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	var b strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
