package domain

import "time"

// DefaultMaxSessions caps the number of concurrent refresh sessions per user.
const DefaultMaxSessions = 5

// RefreshSession binds a refresh token's digest and claims to a point-in-time
// device fingerprint. It has no lifecycle of its own outside the owning User.
type RefreshSession struct {
	SessionID  string    `json:"session_id"`
	TokenHash  string    `json:"token_hash"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Country    string    `json:"country,omitempty"`
	Label      string    `json:"label,omitempty"`
}

// Expired reports whether the session's refresh token lifetime has passed.
func (s RefreshSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// AddSession appends a session, drops any expired records and truncates to
// maxSessions keeping the most recent entries. Oldest sessions are evicted
// first: the list is ordered newest-last.
func (u *User) AddSession(s RefreshSession, maxSessions int, now time.Time) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	u.PruneExpiredSessions(now)
	u.Sessions = append(u.Sessions, s)
	if over := len(u.Sessions) - maxSessions; over > 0 {
		u.Sessions = append([]RefreshSession(nil), u.Sessions[over:]...)
	}
}

// PruneExpiredSessions removes every session whose lifetime has passed.
func (u *User) PruneExpiredSessions(now time.Time) {
	kept := u.Sessions[:0]
	for _, s := range u.Sessions {
		if !s.Expired(now) {
			kept = append(kept, s)
		}
	}
	u.Sessions = kept
}

// FindSession returns the session matching both the token digest and the
// session id carried inside the token's claims. Requiring both defends
// against a stolen digest paired with a forged claim: a partial match is no
// match at all.
func (u *User) FindSession(tokenHash, sessionID string) *RefreshSession {
	for i := range u.Sessions {
		if u.Sessions[i].TokenHash == tokenHash && u.Sessions[i].SessionID == sessionID {
			return &u.Sessions[i]
		}
	}
	return nil
}

// RemoveSession deletes the session with the given token digest.
// Reports whether anything was removed.
func (u *User) RemoveSession(tokenHash string) bool {
	for i := range u.Sessions {
		if u.Sessions[i].TokenHash == tokenHash {
			u.Sessions = append(u.Sessions[:i], u.Sessions[i+1:]...)
			return true
		}
	}
	return false
}

// RevokeAllSessions clears the entire session list. Used on suspected
// compromise (refresh-token reuse), password reset, and explicit user action.
func (u *User) RevokeAllSessions() {
	u.Sessions = nil
}
