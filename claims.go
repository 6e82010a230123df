package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// ClaimSubject is the primary subject id field written by Encode
	ClaimSubject   = "id"
	ClaimUserID    = "user_id"
	ClaimSub       = "sub"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimRole      = "role"
	ClaimEmail     = "email"
)

// SubjectClaimFields lists where a subject id may live, in precedence order
var SubjectClaimFields = []string{ClaimSubject, ClaimUserID, ClaimSub}

// Claims is an immutable claims set. Values are never mutated in place,
// With returns a modified copy.
type Claims struct {
	values map[string]any
}

// NewClaims copies values into a new claims set
func NewClaims(values map[string]any) Claims {
	c := Claims{values: make(map[string]any, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// With returns a copy of the claims with key set to val
func (c Claims) With(key string, val any) Claims {
	next := NewClaims(c.values)
	next.values[key] = val
	return next
}

// Get returns the raw value stored under key
func (c Claims) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// String returns the value under key rendered as a string, or ""
func (c Claims) String(key string) string {
	v, ok := c.values[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", val)
	default:
		return ""
	}
}

// Subject resolves the subject id, the first non-empty candidate wins
func (c Claims) Subject() string {
	for _, field := range SubjectClaimFields {
		if s := strings.TrimSpace(c.String(field)); s != "" {
			return s
		}
	}
	return ""
}

// IssuedAt returns the iat claim, zero if absent
func (c Claims) IssuedAt() time.Time {
	t, _ := c.numericDate(ClaimIssuedAt)
	return t
}

// ExpiresAt returns the exp claim and whether it is present
func (c Claims) ExpiresAt() (time.Time, bool) {
	return c.numericDate(ClaimExpiresAt)
}

// Map returns a copy of the underlying values
func (c Claims) Map() map[string]any {
	return NewClaims(c.values).values
}

// Len is the number of claims
func (c Claims) Len() int {
	return len(c.values)
}

// MarshalJSON encodes the claims with sorted keys
func (c Claims) MarshalJSON() ([]byte, error) {
	if c.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.values)
}

func (c Claims) numericDate(key string) (time.Time, bool) {
	secs, ok := c.int64(key)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

func (c Claims) int64(key string) (int64, bool) {
	v, ok := c.values[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
