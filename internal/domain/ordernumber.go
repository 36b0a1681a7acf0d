package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	orderNumberSuffixLen = 9
	base36Alphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewOrderNumber returns a customer-facing order number of the form
// ORD-<millisecond timestamp>-<9 random base36 characters>. The timestamp
// keeps numbers roughly sortable; the suffix makes collisions negligible.
func NewOrderNumber(now time.Time) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < orderNumberSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("order number: %w", err)
		}
		sb.WriteByte(base36Alphabet[n.Int64()])
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), sb.String()), nil
}
