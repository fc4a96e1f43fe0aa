package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id string, createdAt time.Time, ttl time.Duration) RefreshSession {
	return RefreshSession{
		SessionID:  id,
		TokenHash:  "hash-" + id,
		CreatedAt:  createdAt,
		LastUsedAt: createdAt,
		ExpiresAt:  createdAt.Add(ttl),
	}
}

func TestAddSessionEvictsOldestOverCap(t *testing.T) {
	now := time.Now()
	u := &User{}
	for i := 0; i < 6; i++ {
		s := newSession(fmt.Sprintf("s%d", i), now.Add(time.Duration(i)*time.Minute), time.Hour)
		u.AddSession(s, 5, now)
	}

	require.Len(t, u.Sessions, 5)
	// s0 was the oldest and must be gone; newest stays last.
	assert.Nil(t, u.FindSession("hash-s0", "s0"))
	assert.Equal(t, "s5", u.Sessions[len(u.Sessions)-1].SessionID)
}

func TestAddSessionPrunesExpired(t *testing.T) {
	now := time.Now()
	u := &User{}
	u.AddSession(newSession("dead", now.Add(-2*time.Hour), time.Hour), 5, now)
	u.AddSession(newSession("live", now, time.Hour), 5, now)

	require.Len(t, u.Sessions, 1)
	assert.Equal(t, "live", u.Sessions[0].SessionID)
}

func TestFindSessionRequiresBothFields(t *testing.T) {
	now := time.Now()
	u := &User{}
	u.AddSession(newSession("s1", now, time.Hour), 5, now)

	assert.NotNil(t, u.FindSession("hash-s1", "s1"))
	// A digest match with a forged session id is not a session.
	assert.Nil(t, u.FindSession("hash-s1", "s2"))
	assert.Nil(t, u.FindSession("hash-s2", "s1"))
}

func TestRemoveSession(t *testing.T) {
	now := time.Now()
	u := &User{}
	u.AddSession(newSession("s1", now, time.Hour), 5, now)
	u.AddSession(newSession("s2", now, time.Hour), 5, now)

	assert.True(t, u.RemoveSession("hash-s1"))
	assert.False(t, u.RemoveSession("hash-s1"))
	require.Len(t, u.Sessions, 1)
	assert.Equal(t, "s2", u.Sessions[0].SessionID)
}

func TestRevokeAllSessions(t *testing.T) {
	now := time.Now()
	u := &User{}
	u.AddSession(newSession("s1", now, time.Hour), 5, now)
	u.AddSession(newSession("s2", now, time.Hour), 5, now)

	u.RevokeAllSessions()
	assert.Empty(t, u.Sessions)
}
