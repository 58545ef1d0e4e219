// README: Order service; creation for both channels and projection reads.
package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"kilap/internal/metrics"
	"kilap/internal/types"
)

var (
	ErrNotFound           = errors.New("order not found")
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidState       = errors.New("invalid order state")
	ErrOutsideServiceArea = errors.New("address outside service area")
)

// Locator resolves a street address to validated coordinates: geocode when
// the client sent none, then check the point against the service boundary.
type Locator interface {
	Resolve(ctx context.Context, street string, p types.Point) (types.Point, error)
}

type StoreFront struct {
	Name   string
	Street string
	Phone  string
	Origin types.Point
}

type Service struct {
	store         *Store
	locator       Locator
	storeFront    StoreFront
	depositAmount int64
	metrics       *metrics.StageMetrics
}

func NewService(store *Store, locator Locator, front StoreFront, depositAmount int64, m *metrics.StageMetrics) *Service {
	return &Service{
		store:         store,
		locator:       locator,
		storeFront:    front,
		depositAmount: depositAmount,
		metrics:       m,
	}
}

type CreateOnlineCommand struct {
	UserID      types.ID
	Name        string
	Phone       string
	Street      string
	Point       types.Point // zero value means "geocode the street"
	ServiceDate time.Time
}

type CreateOfflineCommand struct {
	StaffID       types.ID
	CustomerName  string
	CustomerPhone string
	ServiceDate   time.Time
}

// CreateOnline books a courier order: the address must geofence-validate,
// and the order opens in WAITING_DEPOSIT with a pending down payment.
func (s *Service) CreateOnline(ctx context.Context, cmd CreateOnlineCommand) (*Order, error) {
	if cmd.UserID == "" || strings.TrimSpace(cmd.Name) == "" ||
		strings.TrimSpace(cmd.Phone) == "" || strings.TrimSpace(cmd.Street) == "" {
		return nil, ErrBadRequest
	}
	if cmd.ServiceDate.IsZero() {
		return nil, ErrBadRequest
	}

	point, err := s.locator.Resolve(ctx, cmd.Street, cmd.Point)
	if err != nil {
		return nil, err
	}

	o := &Order{
		Type:        TypeOnline,
		UserID:      cmd.UserID,
		ServiceDate: cmd.ServiceDate,
	}
	addr := &Address{
		Name:   cmd.Name,
		Phone:  cmd.Phone,
		Street: cmd.Street,
		Point:  point,
	}
	if err := s.store.Create(ctx, o, addr, StatusWaitingDeposit, s.depositAmount); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.OrdersCreatedTotal.WithLabelValues(string(TypeOnline)).Inc()
	}
	return o, nil
}

// CreateOffline books an in-store drop-off. The address is synthetic: the
// store's own location carrying the customer's contact details. The order
// skips deposit and pickup and opens directly at INSPECTION.
func (s *Service) CreateOffline(ctx context.Context, cmd CreateOfflineCommand) (*Order, error) {
	if cmd.StaffID == "" || strings.TrimSpace(cmd.CustomerName) == "" ||
		strings.TrimSpace(cmd.CustomerPhone) == "" {
		return nil, ErrBadRequest
	}
	date := cmd.ServiceDate
	if date.IsZero() {
		date = time.Now()
	}

	o := &Order{
		Type:        TypeOffline,
		UserID:      cmd.StaffID,
		ServiceDate: date,
	}
	addr := &Address{
		Name:   cmd.CustomerName,
		Phone:  cmd.CustomerPhone,
		Street: s.storeFront.Street,
		Point:  s.storeFront.Origin,
	}
	if err := s.store.Create(ctx, o, addr, StatusInspection, 0); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.OrdersCreatedTotal.WithLabelValues(string(TypeOffline)).Inc()
	}
	return o, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	if number == "" {
		return nil, ErrBadRequest
	}
	return s.store.GetByNumber(ctx, number)
}

// Detail bundles what both the customer page and staff stage pages render.
type Detail struct {
	Order         Order
	Address       Address
	CurrentStatus Status
	History       []StatusRecord
}

func (s *Service) Detail(ctx context.Context, number string) (*Detail, error) {
	o, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	addr, err := s.store.GetAddress(ctx, o.AddressID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.History(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	d := &Detail{Order: *o, Address: *addr, History: history}
	if len(history) > 0 {
		d.CurrentStatus = history[len(history)-1].Name
	}
	return d, nil
}

func (s *Service) CurrentStatus(ctx context.Context, orderID types.ID) (Status, error) {
	return s.store.CurrentStatus(ctx, orderID)
}

func (s *Service) Queues(ctx context.Context, q QueueQuery) ([]Summary, int64, QueueCounts, error) {
	counts, err := s.store.CountQueues(ctx)
	if err != nil {
		return nil, 0, QueueCounts{}, err
	}
	items, total, err := s.store.ListQueue(ctx, q)
	if err != nil {
		return nil, 0, QueueCounts{}, err
	}
	return items, total, counts, nil
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID, completed bool, page, perPage int) ([]Summary, int64, error) {
	return s.store.ListByUser(ctx, userID, completed, page, perPage)
}

// ProcessComplete moves a cleaned order into the delivery queue. Only valid
// while the order is IN_PROCESS (full payment settled, cleaning done).
func (s *Service) ProcessComplete(ctx context.Context, number string) error {
	o, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		return err
	}
	current, err := s.store.CurrentStatus(ctx, o.ID)
	if err != nil {
		return err
	}
	if current != StatusInProcess {
		return ErrInvalidState
	}
	return s.store.MarkProcessed(ctx, o.ID)
}
