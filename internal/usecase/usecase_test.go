package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-sec/vaultguard/internal/domain"
	"github.com/aegis-sec/vaultguard/internal/notify"
	"github.com/aegis-sec/vaultguard/internal/repository"
)

var (
	fpHome = domain.Fingerprint{IP: "10.0.0.1", UserAgent: "test-agent/1.0", Country: "DE"}
	fpAway = domain.Fingerprint{IP: "203.0.113.7", UserAgent: "test-agent/1.0", Country: "DE"}
)

type sentLink struct {
	kind      notify.Kind
	recipient string
	link      string
}

// recordingSender captures every notification so tests can fish the
// single-use tokens back out of the links.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentLink
}

func (s *recordingSender) Send(_ context.Context, kind notify.Kind, recipient, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentLink{kind: kind, recipient: recipient, link: link})
	return nil
}

func (s *recordingSender) lastOf(kind notify.Kind) (sentLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].kind == kind {
			return s.sent[i], true
		}
	}
	return sentLink{}, false
}

func (s *recordingSender) count(kind notify.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.sent {
		if l.kind == kind {
			n++
		}
	}
	return n
}

// tokenFrom extracts the raw single-use token out of a link, whether it rides
// in the path or in a query parameter.
func tokenFrom(link string) string {
	if i := strings.Index(link, "token="); i >= 0 {
		return link[i+len("token="):]
	}
	return link[strings.LastIndex(link, "/")+1:]
}

func newTestUsecase(t *testing.T) (*AuthUsecase, *repository.MemoryUserRepo, *recordingSender) {
	t.Helper()

	repo := repository.NewMemoryUserRepo()
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	u := NewAuthUsecase(repo, sender, Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		FrontendURL:   "http://localhost:5173",
	}, logger)
	return u, repo, sender
}

// advanceClock shifts the usecase's notion of now by d from the real clock.
func advanceClock(u *AuthUsecase, d time.Duration) {
	u.now = func() time.Time { return time.Now().Add(d) }
}

func TestSessionLabel(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"empty", "", "unknown device"},
		{"whitespace only", "   ", "unknown device"},
		{"short passes through", "curl/8.5.0", "curl/8.5.0"},
		{"long ascii truncated", strings.Repeat("a", 100), strings.Repeat("a", 80)},
		{"multi-byte truncated on rune boundary", strings.Repeat("ü", 100), strings.Repeat("ü", 80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sessionLabel(tt.ua)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

// registerVerified registers a user and walks through email verification.
func registerVerified(t *testing.T, u *AuthUsecase, sender *recordingSender, username, email, password string) domain.PublicUser {
	t.Helper()
	ctx := context.Background()

	_, err := u.Register(ctx, RegisterInput{
		Username:     username,
		Email:        email,
		Password:     password,
		ProfilePhoto: "https://cdn.example.com/" + username + ".png",
	})
	require.NoError(t, err)

	link, ok := sender.lastOf(notify.KindEmailVerification)
	require.True(t, ok, "verification link must have been sent")

	user, err := u.VerifyEmail(ctx, tokenFrom(link.link))
	require.NoError(t, err)
	require.True(t, user.IsEmailVerified)
	return *user
}

// loginPassword performs a plain password login with the home fingerprint.
func loginPassword(t *testing.T, u *AuthUsecase, email, password string) *AuthResult {
	t.Helper()
	result, err := u.Login(context.Background(), LoginInput{
		Email:       email,
		Password:    password,
		Fingerprint: fpHome,
	})
	require.NoError(t, err)
	return result
}
