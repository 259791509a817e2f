// Package courier translates Delhivery status vocabulary into the internal
// shipment status enum.
package courier

import (
	"strings"
	"unicode"
)

// Status is the closed set of shipment states the platform understands.
type Status string

const (
	StatusManifested        Status = "manifested"
	StatusInTransit         Status = "in-transit"
	StatusOutForDelivery    Status = "out-for-delivery"
	StatusDelivered         Status = "delivered"
	StatusNonDeliveryReport Status = "non-delivery-report"
	StatusReturnToOrigin    Status = "return-to-origin"
	StatusLost              Status = "lost"
	StatusDamaged           Status = "damaged"
	StatusCancelled         Status = "cancelled"
	StatusUnknown           Status = "unknown"
)

// StatusTypeReturn is Delhivery's StatusType for scans on the return leg.
const StatusTypeReturn = "RT"

var allStatuses = []Status{
	StatusManifested,
	StatusInTransit,
	StatusOutForDelivery,
	StatusDelivered,
	StatusNonDeliveryReport,
	StatusReturnToOrigin,
	StatusLost,
	StatusDamaged,
	StatusCancelled,
	StatusUnknown,
}

// Statuses returns every member of the enum.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is a member of the enum.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further forward movement is expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusLost, StatusDamaged, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// phrases is keyed by Normalize output.
var phrases = map[string]Status{
	"manifested":          StatusManifested,
	"manifest":            StatusManifested,
	"open":                StatusManifested,
	"not picked":          StatusManifested,
	"pickup scheduled":    StatusManifested,
	"pickup pending":      StatusManifested,
	"scheduled":           StatusManifested,
	"ready to ship":       StatusManifested,
	"in transit":          StatusInTransit,
	"intransit":           StatusInTransit,
	"picked up":           StatusInTransit,
	"pickup done":         StatusInTransit,
	"pending":             StatusInTransit,
	"shipped":             StatusInTransit,
	"reached at hub":      StatusInTransit,
	"reached destination": StatusInTransit,
	"dispatched":          StatusOutForDelivery,
	"out for delivery":    StatusOutForDelivery,
	"ofd":                 StatusOutForDelivery,
	"delivered":           StatusDelivered,
	"ndr":                 StatusNonDeliveryReport,
	"non delivery report": StatusNonDeliveryReport,
	"undelivered":         StatusNonDeliveryReport,
	"not delivered":       StatusNonDeliveryReport,
	"delivery attempted":  StatusNonDeliveryReport,
	"rto":                 StatusReturnToOrigin,
	"return to origin":    StatusReturnToOrigin,
	"rto initiated":       StatusReturnToOrigin,
	"rto in transit":      StatusReturnToOrigin,
	"rto delivered":       StatusReturnToOrigin,
	"returned":            StatusReturnToOrigin,
	"lost":                StatusLost,
	"shipment lost":       StatusLost,
	"damaged":             StatusDamaged,
	"shipment damaged":    StatusDamaged,
	"cancelled":           StatusCancelled,
	"canceled":            StatusCancelled,
	"cancelled by client": StatusCancelled,
}

// Normalize folds case, treats every non-alphanumeric rune as a separator and
// collapses separator runs into one space.
func Normalize(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// MapStatus maps a raw courier phrase to the enum. Unrecognised phrases map
// to StatusUnknown.
func MapStatus(raw string) Status {
	if s, ok := phrases[Normalize(raw)]; ok {
		return s
	}
	return StatusUnknown
}

// MapScan is MapStatus with the scan's StatusType taken into account: any
// movement on the return leg is reported as return-to-origin.
func MapScan(raw, statusType string) Status {
	s := MapStatus(raw)
	if !strings.EqualFold(strings.TrimSpace(statusType), StatusTypeReturn) {
		return s
	}
	switch s {
	case StatusLost, StatusDamaged, StatusCancelled, StatusUnknown:
		return s
	}
	return StatusReturnToOrigin
}
