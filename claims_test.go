package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-course-auth"
)

func TestClaims_WithDoesNotMutate(t *testing.T) {
	base := auth.NewClaims(map[string]any{auth.ClaimSubject: "u-1"})
	next := base.With(auth.ClaimRole, "admin")

	_, ok := base.Get(auth.ClaimRole)
	assert.False(t, ok)
	assert.Equal(t, "admin", next.String(auth.ClaimRole))
	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, next.Len())
}

func TestClaims_NewClaimsCopiesInput(t *testing.T) {
	src := map[string]any{auth.ClaimSubject: "u-1"}
	claims := auth.NewClaims(src)
	src[auth.ClaimSubject] = "u-2"

	assert.Equal(t, "u-1", claims.Subject())

	out := claims.Map()
	out[auth.ClaimSubject] = "u-3"
	assert.Equal(t, "u-1", claims.Subject())
}

func TestClaims_Dates(t *testing.T) {
	var values map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"iat":1700000000,"exp":1700003600}`), &values))
	claims := auth.NewClaims(values)

	assert.Equal(t, time.Unix(1_700_000_000, 0), claims.IssuedAt())

	exp, ok := claims.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, time.Unix(1_700_003_600, 0), exp)

	_, ok = auth.NewClaims(nil).ExpiresAt()
	assert.False(t, ok)
	assert.True(t, auth.NewClaims(nil).IssuedAt().IsZero())
}

func TestClaims_String(t *testing.T) {
	claims := auth.NewClaims(map[string]any{
		"s":   "text",
		"f":   float64(12),
		"i":   int64(7),
		"n":   json.Number("99"),
		"nil": nil,
		"obj": map[string]any{"a": 1},
	})

	assert.Equal(t, "text", claims.String("s"))
	assert.Equal(t, "12", claims.String("f"))
	assert.Equal(t, "7", claims.String("i"))
	assert.Equal(t, "99", claims.String("n"))
	assert.Empty(t, claims.String("nil"))
	assert.Empty(t, claims.String("obj"))
	assert.Empty(t, claims.String("missing"))
}

func TestClaims_SubjectBlank(t *testing.T) {
	assert.Empty(t, auth.NewClaims(nil).Subject())
	assert.Empty(t, auth.NewClaims(map[string]any{"sub": "   "}).Subject())
}

func TestClaims_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal(auth.Claims{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	raw, err = json.Marshal(auth.NewClaims(map[string]any{"id": "u-1", "role": "member"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-1","role":"member"}`, string(raw))
}
