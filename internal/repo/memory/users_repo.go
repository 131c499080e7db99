package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/apextrades/internal/domain/user"
)

// UsersRepo is an in-process record store for tests and STORAGE_DRIVER=memory.
// The email index plays the role of the unique constraint: check and insert
// happen under one lock.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Insert(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	u = clone(u)
	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return clone(u), nil
}

func (r *UsersRepo) FindByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return clone(r.items[id]), nil
}

func (r *UsersRepo) FindByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return clone(u), nil
}

func (r *UsersRepo) UpdateFields(_ context.Context, id string, upd user.ProfileUpdate) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if upd.Email != nil && *upd.Email != u.Email {
		if _, taken := r.byEmail[*upd.Email]; taken {
			return user.User{}, user.ErrEmailTaken
		}
		delete(r.byEmail, u.Email)
		u.Email = *upd.Email
		r.byEmail[u.Email] = id
	}

	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}

	if upd.Phone != nil {
		if *upd.Phone == "" {
			u.Phone = nil
		} else {
			p := *upd.Phone
			u.Phone = &p
		}
	}

	r.items[id] = u

	return clone(u), nil
}

func (r *UsersRepo) UpdatePasswordHash(_ context.Context, id, hash string) (user.User, error) {
	return r.mutate(id, func(u *user.User) { u.PasswordHash = hash })
}

func (r *UsersRepo) UpdatePlan(_ context.Context, id, plan string) (user.User, error) {
	return r.mutate(id, func(u *user.User) { u.Plan = plan })
}

// Count is a test helper.
func (r *UsersRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *UsersRepo) mutate(id string, fn func(u *user.User)) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	fn(&u)
	r.items[id] = u

	return clone(u), nil
}

// copies the phone pointer so callers never share state with the map.
func clone(u user.User) user.User {
	if u.Phone != nil {
		p := *u.Phone
		u.Phone = &p
	}
	return u
}
