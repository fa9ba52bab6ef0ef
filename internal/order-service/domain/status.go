package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// StatusSet is one configuration of the order state machine. Every set
// starts at pending and allows any-to-any transitions; it only differs in
// which statuses exist, which block cancellation and which stamp timestamps.
type StatusSet struct {
	Name     string
	statuses []OrderStatus
	terminal map[OrderStatus]bool
	stamps   map[OrderStatus]string
}

var (
	FullStatusSet = StatusSet{
		Name: "full",
		statuses: []OrderStatus{
			StatusPending, StatusConfirmed, StatusProcessing,
			StatusShipped, StatusDelivered, StatusCancelled,
		},
		terminal: map[OrderStatus]bool{StatusDelivered: true, StatusCancelled: true},
		stamps: map[OrderStatus]string{
			StatusShipped:   FieldShippedAt,
			StatusDelivered: FieldDeliveredAt,
		},
	}

	ReducedStatusSet = StatusSet{
		Name:     "reduced",
		statuses: []OrderStatus{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled},
		terminal: map[OrderStatus]bool{StatusCompleted: true, StatusCancelled: true},
		stamps:   map[OrderStatus]string{StatusCompleted: FieldDeliveredAt},
	}
)

// StatusSetByName resolves "full" or "reduced".
func StatusSetByName(name string) (StatusSet, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FullStatusSet.Name:
		return FullStatusSet, nil
	case ReducedStatusSet.Name:
		return ReducedStatusSet, nil
	}
	return StatusSet{}, fmt.Errorf("unknown status set %q", name)
}

func (s StatusSet) Statuses() []OrderStatus {
	out := make([]OrderStatus, len(s.statuses))
	copy(out, s.statuses)
	return out
}

func (s StatusSet) Valid(status OrderStatus) bool {
	for _, st := range s.statuses {
		if st == status {
			return true
		}
	}
	return false
}

// Parse validates a raw status against the set.
func (s StatusSet) Parse(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if !s.Valid(status) {
		names := make([]string, len(s.statuses))
		for i, st := range s.statuses {
			names[i] = string(st)
		}
		return "", fmt.Errorf("%w: invalid status %q, valid statuses: %s",
			ErrValidation, raw, strings.Join(names, ", "))
	}
	return status, nil
}

func (s StatusSet) Cancellable(status OrderStatus) bool {
	return !s.terminal[status]
}

// Transition moves o to next and returns the names of the fields that
// changed. It returns nil when next equals the current status. Entering a
// stamping status always sets its timestamp, even if it was set before.
func (s StatusSet) Transition(o *Order, next OrderStatus, now time.Time) []string {
	if o.Status == next {
		return nil
	}
	o.Status = next
	o.UpdatedAt = now
	fields := []string{FieldStatus, FieldUpdatedAt}

	switch s.stamps[next] {
	case FieldShippedAt:
		o.ShippedAt = &now
		fields = append(fields, FieldShippedAt)
	case FieldDeliveredAt:
		o.DeliveredAt = &now
		fields = append(fields, FieldDeliveredAt)
	}
	return fields
}

// Cancel moves o to cancelled when its current status allows it.
func (s StatusSet) Cancel(o *Order, now time.Time) error {
	if !s.Cancellable(o.Status) {
		return fmt.Errorf("%w: order %s has status %s", ErrNotCancellable, o.OrderID, o.Status)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}
