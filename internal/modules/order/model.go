// README: Order aggregate, lifecycle statuses and display-name mapping.
package order

import (
	"strings"
	"time"

	"kilap/internal/types"
)

type Type string

const (
	TypeOnline  Type = "online"
	TypeOffline Type = "offline"
)

type Status string

// Canonical lifecycle sequence. Current status is always derived from the
// newest order_statuses row; none of these live on the order itself.
const (
	StatusWaitingDeposit   Status = "WAITING_DEPOSIT"
	StatusPickupScheduled  Status = "PICKUP_SCHEDULED"
	StatusPickupProgress   Status = "PICKUP_PROGRESS"
	StatusInspection       Status = "INSPECTION"
	StatusWaitingPayment   Status = "WAITING_PAYMENT"
	StatusInProcess        Status = "IN_PROCESS"
	StatusProcessCompleted Status = "PROCESS_COMPLETED"
	StatusDelivery         Status = "DELIVERY"
	StatusCompleted        Status = "COMPLETED"
	StatusCancelled        Status = "CANCELLED"
)

// displayNames maps internal status values to the customer-facing labels.
var displayNames = map[Status]string{
	StatusWaitingDeposit:   "Menunggu DP",
	StatusPickupScheduled:  "Penjemputan Dijadwalkan",
	StatusPickupProgress:   "Penjemputan Berlangsung",
	StatusInspection:       "Pengecekan",
	StatusWaitingPayment:   "Menunggu Pembayaran",
	StatusInProcess:        "Sedang Dikerjakan",
	StatusProcessCompleted: "Selesai Dikerjakan",
	StatusDelivery:         "Pengantaran",
	StatusCompleted:        "Selesai",
	StatusCancelled:        "Dibatalkan",
}

func (s Status) Display() string {
	if d, ok := displayNames[s]; ok {
		return d
	}
	return string(s)
}

// StatusesMatchingDisplay reverse-maps a free-text search term onto the
// internal status values whose display name contains it, so the task-queue
// search can match what staff actually see on screen.
func StatusesMatchingDisplay(term string) []Status {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []Status
	for s, d := range displayNames {
		if strings.Contains(strings.ToLower(d), term) {
			out = append(out, s)
		}
	}
	return out
}

type Order struct {
	ID        types.ID
	Number    string
	Type      Type
	UserID    types.ID
	AddressID types.ID
	// ServiceDate is the requested pickup / drop-off day.
	ServiceDate time.Time
	CreatedAt   time.Time
}

type Address struct {
	ID     types.ID
	Name   string
	Phone  string
	Street string
	Point  types.Point
}

type StatusRecord struct {
	ID        types.ID
	OrderID   types.ID
	Name      Status
	Note      string
	UpdatedAt time.Time
}

// Summary is an order joined with its projected current status and address,
// the row shape both dashboards and customer lists render.
type Summary struct {
	Order
	Address       Address
	CurrentStatus Status
	StatusSince   time.Time
}
