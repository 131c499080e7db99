package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/apextrades/internal/domain/user"
	"github.com/geocoder89/apextrades/internal/observability"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the slice of *pgxpool.Pool the repos use. pgxmock pools satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, fullname, email, password_hash, plan, balance, phone, joined`

type UsersRepo struct {
	pool DBTX
	prom *observability.Prom
}

func NewUsersRepo(pool DBTX, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (u user.User, err error) {
	err = row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&u.Plan,
		&u.Balance,
		&u.Phone,
		&u.Joined,
	)
	return
}

// Insert relies on the users_email_key constraint for duplicate detection,
// so two concurrent registrations for one email cannot both succeed.
func (r *UsersRepo) Insert(ctx context.Context, u user.User) (created user.User, err error) {
	err = r.observe("users.insert", func() error {
		created, err = scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (id, fullname, email, password_hash, plan, balance, phone, joined)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+userColumns,
			u.ID, u.FullName, u.Email, u.PasswordHash, u.Plan, u.Balance, u.Phone, u.Joined,
		))
		return err
	})

	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe("users.find_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
         FROM users
         WHERE email = $1`,
			email,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (u user.User, err error) {
	err = r.observe("users.find_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
         FROM users
         WHERE id = $1`,
			id,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// UpdateFields applies a partial profile update in one statement.
// NULL parameters keep the stored column; an empty phone clears it.
func (r *UsersRepo) UpdateFields(ctx context.Context, id string, upd user.ProfileUpdate) (u user.User, err error) {
	err = r.observe("users.update_fields", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET fullname = COALESCE($2, fullname),
		    email    = COALESCE($3, email),
		    phone    = CASE WHEN $4::text IS NULL THEN phone ELSE NULLIF($4::text, '') END
		WHERE id = $1
		RETURNING `+userColumns,
			id, upd.FullName, upd.Email, upd.Phone,
		))
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return user.User{}, user.ErrNotFound
		case isUniqueViolation(err):
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("update user fields: %w", err)
	}
	return u, nil
}

func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) (u user.User, err error) {
	err = r.observe("users.update_password_hash", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2
		WHERE id = $1
		RETURNING `+userColumns,
			id, hash,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("update password hash: %w", err)
	}
	return u, nil
}

func (r *UsersRepo) UpdatePlan(ctx context.Context, id, plan string) (u user.User, err error) {
	err = r.observe("users.update_plan", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET plan = $2
		WHERE id = $1
		RETURNING `+userColumns,
			id, plan,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("update plan: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
