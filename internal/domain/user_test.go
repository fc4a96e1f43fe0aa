package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockoutAfterThreshold(t *testing.T) {
	now := time.Now()
	u := &User{}

	for i := 0; i < 4; i++ {
		u.RecordLoginFailure(now, 5, 15*time.Minute)
		locked, _ := u.Locked(now)
		assert.False(t, locked, "attempt %d must not lock", i+1)
	}

	u.RecordLoginFailure(now, 5, 15*time.Minute)
	locked, retry := u.Locked(now)
	assert.True(t, locked)
	assert.InDelta(t, 15*time.Minute, retry, float64(time.Second))

	// Lock expires on its own.
	locked, _ = u.Locked(now.Add(16 * time.Minute))
	assert.False(t, locked)
}

func TestRecordCompletedLoginResetsGuardAndBaseline(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Minute)
	u := &User{LoginAttempts: 3, LockUntil: &until, ForceReauth: true}

	fp := Fingerprint{IP: "1.2.3.4", UserAgent: "curl/8", Country: "DE"}
	u.RecordCompletedLogin(fp, now)

	assert.Zero(t, u.LoginAttempts)
	assert.Nil(t, u.LockUntil)
	assert.False(t, u.ForceReauth)
	assert.Equal(t, "1.2.3.4", u.LastIP)
	assert.Equal(t, "curl/8", u.LastUserAgent)
	assert.Equal(t, "DE", u.LastCountry)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, now, *u.LastLogin)
}

func TestIsAnomalous(t *testing.T) {
	baseline := Fingerprint{IP: "1.2.3.4", UserAgent: "curl/8", Country: "DE"}

	tests := []struct {
		name string
		user User
		fp   Fingerprint
		want bool
	}{
		{
			name: "no baseline never anomalous",
			user: User{},
			fp:   Fingerprint{IP: "9.9.9.9", UserAgent: "weird", Country: "XX"},
			want: false,
		},
		{
			name: "matching fingerprint",
			user: User{LastIP: baseline.IP, LastUserAgent: baseline.UserAgent, LastCountry: baseline.Country},
			fp:   baseline,
			want: false,
		},
		{
			name: "ip differs",
			user: User{LastIP: baseline.IP, LastUserAgent: baseline.UserAgent, LastCountry: baseline.Country},
			fp:   Fingerprint{IP: "5.6.7.8", UserAgent: baseline.UserAgent, Country: baseline.Country},
			want: true,
		},
		{
			name: "country differs",
			user: User{LastIP: baseline.IP, LastUserAgent: baseline.UserAgent, LastCountry: baseline.Country},
			fp:   Fingerprint{IP: baseline.IP, UserAgent: baseline.UserAgent, Country: "FR"},
			want: true,
		},
		{
			name: "user agent differs",
			user: User{LastIP: baseline.IP, LastUserAgent: baseline.UserAgent, LastCountry: baseline.Country},
			fp:   Fingerprint{IP: baseline.IP, UserAgent: "Mozilla/5.0", Country: baseline.Country},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.IsAnomalous(tt.fp))
		})
	}
}

func TestConsumeBackupCode(t *testing.T) {
	u := &User{BackupCodes: []string{"d1", "d2", "d3"}}

	assert.True(t, u.ConsumeBackupCode("d2"))
	assert.Equal(t, []string{"d1", "d3"}, u.BackupCodes)
	// Exactly once.
	assert.False(t, u.ConsumeBackupCode("d2"))
	assert.False(t, u.ConsumeBackupCode("nope"))
}
