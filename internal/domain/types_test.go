package domain

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCanceled, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCanceled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusShipped, false},
		{OrderStatusCanceled, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusCanceled, false},
		{OrderStatusPending, OrderStatusDelivered, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusRankOrdering(t *testing.T) {
	if StatusRank(OrderStatusPending) >= StatusRank(OrderStatusProcessing) {
		t.Fatalf("expected PENDING to rank below PROCESSING")
	}
	if StatusRank("UNKNOWN") != -1 {
		t.Fatalf("expected unknown status rank -1, got %d", StatusRank("UNKNOWN"))
	}
}

func TestAddressValidate(t *testing.T) {
	addr := Address{
		Name:       "Ada Lovelace",
		Line1:      "1 Analytical Way",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "GB",
	}
	if missing := addr.Validate(); len(missing) != 0 {
		t.Fatalf("expected complete address, missing %v", missing)
	}

	addr.City = "  "
	addr.Country = ""
	missing := addr.Validate()
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", missing)
	}
	want := map[string]bool{"city": true, "country": true}
	for _, field := range missing {
		if !want[field] {
			t.Fatalf("unexpected missing field %q", field)
		}
	}
}

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
	number, err := NewOrderNumber(now)
	if err != nil {
		t.Fatalf("NewOrderNumber: %v", err)
	}
	pattern := regexp.MustCompile(`^ORD-(\d+)-([0-9A-Z]{9})$`)
	match := pattern.FindStringSubmatch(number)
	if match == nil {
		t.Fatalf("order number %q does not match expected format", number)
	}
	ms, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		t.Fatalf("parsing timestamp segment: %v", err)
	}
	if ms != now.UnixMilli() {
		t.Fatalf("timestamp segment = %d, want %d", ms, now.UnixMilli())
	}
}

func TestNewOrderNumberSuffixVaries(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		number, err := NewOrderNumber(now)
		if err != nil {
			t.Fatalf("NewOrderNumber: %v", err)
		}
		suffix := number[strings.LastIndex(number, "-")+1:]
		seen[suffix] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varying suffixes, got %v", seen)
	}
}
