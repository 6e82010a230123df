package realtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-course-auth/realtime"
)

func TestScopeForSubject(t *testing.T) {
	assert.Equal(t, "user:u-42", realtime.ScopeForSubject("u-42"))
}

func TestHub_EmitTargetsScope(t *testing.T) {
	hub := realtime.NewHub(nil)

	a1, a2, b := newFakeConn(), newFakeConn(), newFakeConn()
	sa1, sa2, sb := realtime.NewSession(a1), realtime.NewSession(a2), realtime.NewSession(b)

	hub.Join(realtime.ScopeForSubject("a"), sa1)
	hub.Join(realtime.ScopeForSubject("a"), sa2)
	hub.Join(realtime.ScopeForSubject("b"), sb)

	assert.Equal(t, 2, hub.Count(realtime.ScopeForSubject("a")))

	delivered := hub.Emit(realtime.ScopeForSubject("a"), realtime.Message{Type: realtime.TypeRoleUpdated, Data: map[string]any{"role": "trainer"}})
	assert.Equal(t, 2, delivered)

	require.Len(t, a1.messages(), 1)
	require.Len(t, a2.messages(), 1)
	assert.Empty(t, b.messages())
	assert.Equal(t, realtime.TypeRoleUpdated, a1.messages()[0].Type)
}

func TestHub_LeaveAll(t *testing.T) {
	hub := realtime.NewHub(nil)
	conn := newFakeConn()
	sess := realtime.NewSession(conn)

	hub.Join("user:x", sess)
	hub.Join("room:y", sess)
	hub.LeaveAll(sess)

	assert.Zero(t, hub.Count("user:x"))
	assert.Zero(t, hub.Count("room:y"))
	assert.Zero(t, hub.Emit("user:x", realtime.Message{Type: realtime.TypePing}))
}

func TestPushToSubject(t *testing.T) {
	hub := realtime.NewHub(nil)
	conn := newFakeConn()
	hub.Join(realtime.ScopeForSubject("u-1"), realtime.NewSession(conn))

	err := realtime.PushToSubject(context.Background(), hub, "u-1", realtime.Message{Type: realtime.TypeRoleUpdated})
	require.NoError(t, err)
	require.Len(t, conn.messages(), 1)
}
