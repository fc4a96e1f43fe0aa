package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sec/vaultguard/internal/domain"
)

func TestRefreshRotatesToken(t *testing.T) {
	u, repo, sender := newTestUsecase(t)
	ctx := context.Background()

	user := registerVerified(t, u, sender, "kate", "kate@example.com", "Sup3rSecret")
	login := loginPassword(t, u, "kate@example.com", "Sup3rSecret")

	rotated, err := u.Refresh(ctx, login.RefreshToken, fpHome)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// Rotation replaces the session instead of stacking a new one.
	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Sessions, 1)

	// The successor keeps working.
	_, err = u.Refresh(ctx, rotated.RefreshToken, fpHome)
	assert.NoError(t, err)
}

func TestRefreshReuseWipesAllSessions(t *testing.T) {
	u, repo, sender := newTestUsecase(t)
	ctx := context.Background()

	user := registerVerified(t, u, sender, "luke", "luke@example.com", "Sup3rSecret")
	first := loginPassword(t, u, "luke@example.com", "Sup3rSecret")
	second := loginPassword(t, u, "luke@example.com", "Sup3rSecret")

	rotated, err := u.Refresh(ctx, first.RefreshToken, fpHome)
	require.NoError(t, err)

	// Replaying the pre-rotation token is an attack signal.
	_, err = u.Refresh(ctx, first.RefreshToken, fpHome)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.NewReuseDetectedError())

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Sessions)

	// Every other session died with it, the untouched one included.
	_, err = u.Refresh(ctx, second.RefreshToken, fpHome)
	assert.ErrorIs(t, err, domain.NewReuseDetectedError())
	_, err = u.Refresh(ctx, rotated.RefreshToken, fpHome)
	assert.ErrorIs(t, err, domain.NewReuseDetectedError())
}

func TestRefreshExpiredSessionRemovedAlone(t *testing.T) {
	u, repo, sender := newTestUsecase(t)
	ctx := context.Background()

	user := registerVerified(t, u, sender, "mona", "mona@example.com", "Sup3rSecret")
	old := loginPassword(t, u, "mona@example.com", "Sup3rSecret")

	// A younger session created well after the first.
	advanceClock(u, 6*24*time.Hour)
	young := loginPassword(t, u, "mona@example.com", "Sup3rSecret")

	// Past the first session's expiry but within the second's.
	advanceClock(u, 2*24*time.Hour)

	_, err := u.Refresh(ctx, old.RefreshToken, fpHome)
	require.Error(t, err)
	assert.Equal(t, domain.CodeUnauthorized, domain.CodeOf(err))

	// Expiry is a timing event, not an attack: only the aged session is gone.
	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Sessions, 1)

	_, err = u.Refresh(ctx, young.RefreshToken, fpHome)
	assert.NoError(t, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	u, _, _ := newTestUsecase(t)
	ctx := context.Background()

	_, err := u.Refresh(ctx, "", fpHome)
	assert.Equal(t, domain.CodeUnauthorized, domain.CodeOf(err))

	_, err = u.Refresh(ctx, "not-a-jwt", fpHome)
	assert.Equal(t, domain.CodeUnauthorized, domain.CodeOf(err))
}

func TestSessionCapEvictsOldest(t *testing.T) {
	u, repo, sender := newTestUsecase(t)
	ctx := context.Background()

	user := registerVerified(t, u, sender, "nina", "nina@example.com", "Sup3rSecret")

	results := make([]*AuthResult, 0, 6)
	for i := 0; i < 6; i++ {
		results = append(results, loginPassword(t, u, "nina@example.com", "Sup3rSecret"))
	}

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Sessions, 5)

	// The five survivors are the newest five, in creation order.
	for i, result := range results[1:] {
		_, err := u.Refresh(ctx, result.RefreshToken, fpHome)
		assert.NoError(t, err, "session %d should have survived eviction", i+1)
	}

	// The evicted session's token no longer matches anything stored, which is
	// indistinguishable from replay and treated as such.
	_, err = u.Refresh(ctx, results[0].RefreshToken, fpHome)
	assert.ErrorIs(t, err, domain.NewReuseDetectedError())
}

func TestLogoutRemovesOnlyMatchingSession(t *testing.T) {
	u, repo, sender := newTestUsecase(t)
	ctx := context.Background()

	user := registerVerified(t, u, sender, "omar", "omar@example.com", "Sup3rSecret")
	first := loginPassword(t, u, "omar@example.com", "Sup3rSecret")
	second := loginPassword(t, u, "omar@example.com", "Sup3rSecret")

	require.NoError(t, u.Logout(ctx, first.RefreshToken))

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Sessions, 1)

	_, err = u.Refresh(ctx, second.RefreshToken, fpHome)
	assert.NoError(t, err)

	// Idempotent for any shape of token.
	assert.NoError(t, u.Logout(ctx, first.RefreshToken))
	assert.NoError(t, u.Logout(ctx, ""))
	assert.NoError(t, u.Logout(ctx, "not-a-jwt"))
}

func TestRevokeAllSessions(t *testing.T) {
	u, repo, sender := newTestUsecase(t)
	ctx := context.Background()

	user := registerVerified(t, u, sender, "pete", "pete@example.com", "Sup3rSecret")
	login := loginPassword(t, u, "pete@example.com", "Sup3rSecret")
	loginPassword(t, u, "pete@example.com", "Sup3rSecret")

	require.NoError(t, u.RevokeAllSessions(ctx, user.ID))

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Sessions)

	_, err = u.Refresh(ctx, login.RefreshToken, fpHome)
	assert.ErrorIs(t, err, domain.NewReuseDetectedError())

	err = u.RevokeAllSessions(ctx, "missing-user")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}
