package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aegis-sec/vaultguard/internal/domain"
)

// MemoryUserRepo implements domain.UserRepository with an in-process map.
// Used by tests and local development; it mirrors the unique-constraint and
// not-found behavior of the Postgres implementation.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User // keyed by id
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Sessions = append([]domain.RefreshSession(nil), u.Sessions...)
	c.BackupCodes = append([]string(nil), u.BackupCodes...)
	if u.LockUntil != nil {
		t := *u.LockUntil
		c.LockUntil = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (r *MemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return &domain.ErrDuplicateUser{Field: "email"}
		}
		if existing.Username == user.Username {
			return &domain.ErrDuplicateUser{Field: "username"}
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool { return u.Email == email })
}

func (r *MemoryUserRepo) GetByVerificationToken(_ context.Context, digest string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool {
		return digest != "" && u.EmailVerificationToken == digest
	})
}

func (r *MemoryUserRepo) GetByResetToken(_ context.Context, digest string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool {
		return digest != "" && u.ResetPasswordToken == digest
	})
}

func (r *MemoryUserRepo) GetByMagicLinkToken(_ context.Context, digest string) (*domain.User, error) {
	return r.findBy(func(u *domain.User) bool {
		return digest != "" && u.MagicLinkToken == digest
	})
}

func (r *MemoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}

	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if existing.Email == user.Email {
			return &domain.ErrDuplicateUser{Field: "email"}
		}
		if existing.Username == user.Username {
			return &domain.ErrDuplicateUser{Field: "username"}
		}
	}

	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepo) findBy(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return nil, domain.ErrUserNotFound
}
