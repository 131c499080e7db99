package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/apextrades/internal/auth"
	"github.com/geocoder89/apextrades/internal/cache"
	"github.com/geocoder89/apextrades/internal/domain/user"
	"github.com/geocoder89/apextrades/internal/security"
)

// Store is the user record store. Implementations must enforce email
// uniqueness themselves and report a collision as user.ErrEmailTaken.
type Store interface {
	Insert(ctx context.Context, u user.User) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	UpdateFields(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) (user.User, error)
	UpdatePlan(ctx context.Context, id, plan string) (user.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, email string) (string, time.Time, error)
	Verify(token string) (auth.Identity, error)
}

// OutcomeRecorder counts auth attempts by operation and result.
type OutcomeRecorder interface {
	AuthOutcome(op, result string)
}

type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

type Session struct {
	User      user.User
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	store    Store
	tokens   TokenIssuer
	profiles cache.Profiles
	outcomes OutcomeRecorder
	log      *slog.Logger

	// compared against on unknown emails so both login failures cost one bcrypt run
	dummyHash string
}

type Option func(*Service)

func WithProfileCache(p cache.Profiles) Option {
	return func(s *Service) {
		if p != nil {
			s.profiles = p
		}
	}
}

func WithOutcomeRecorder(r OutcomeRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.outcomes = r
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(store Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		tokens:   tokens,
		profiles: cache.NoopProfiles{},
		outcomes: noopOutcomes{},
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	// a hash of a random value nobody can know; failure here only means
	// unknown-email logins skip the extra comparison.
	if h, err := security.HashPassword("apextrades-dummy-" + time.Now().String()); err == nil {
		s.dummyHash = h
	}

	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	fullName, err := user.CleanFullName(in.FullName)
	if err != nil {
		return Session{}, err
	}

	if err := security.ValidatePasswordStrength(in.Password); err != nil {
		s.outcomes.AuthOutcome("register", "weak_password")
		return Session{}, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	created, err := s.store.Insert(ctx, user.New(fullName, in.Email, hash))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			s.outcomes.AuthOutcome("register", "email_taken")
		}
		return Session{}, err
	}

	sess, err := s.issue(created)
	if err != nil {
		return Session{}, err
	}

	s.outcomes.AuthOutcome("register", "ok")
	s.log.InfoContext(ctx, "user_registered", "user_id", created.ID)

	return sess, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.FindByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			if s.dummyHash != "" {
				_ = security.CheckPassword(s.dummyHash, password)
			}
			s.outcomes.AuthOutcome("login", "invalid_credentials")
			return Session{}, user.ErrInvalidCredentials
		}
		return Session{}, err
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		s.outcomes.AuthOutcome("login", "invalid_credentials")
		return Session{}, user.ErrInvalidCredentials
	}

	sess, err := s.issue(u)
	if err != nil {
		return Session{}, err
	}

	s.outcomes.AuthOutcome("login", "ok")

	return sess, nil
}

// Authenticate verifies a raw bearer token without touching the store.
func (s *Service) Authenticate(rawToken string) (auth.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return auth.Identity{}, user.ErrUnauthenticated
	}

	id, err := s.tokens.Verify(rawToken)
	if err != nil {
		return auth.Identity{}, user.ErrForbidden
	}

	return id, nil
}

func (s *Service) Profile(ctx context.Context, id auth.Identity) (user.User, error) {
	if u, ok := s.profiles.Get(ctx, id.UserID); ok {
		return u, nil
	}

	gen, cacheable := s.profiles.Generation(ctx, id.UserID)

	u, err := s.store.FindByID(ctx, id.UserID)
	if err != nil {
		return user.User{}, err
	}

	if cacheable {
		s.profiles.Fill(ctx, u, gen)
	}

	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id auth.Identity, upd user.ProfileUpdate) (user.User, error) {
	if upd.FullName != nil {
		v, err := user.CleanFullName(*upd.FullName)
		if err != nil {
			return user.User{}, err
		}
		upd.FullName = &v
	}
	if upd.Email != nil {
		v := user.NormalizeEmail(*upd.Email)
		upd.Email = &v
	}
	if upd.Phone != nil {
		v := strings.TrimSpace(*upd.Phone)
		upd.Phone = &v
	}

	if upd.IsEmpty() {
		return s.Profile(ctx, id)
	}

	updated, err := s.store.UpdateFields(ctx, id.UserID, upd)
	s.profiles.Invalidate(ctx, id.UserID)
	if err != nil {
		return user.User{}, err
	}

	return updated, nil
}

func (s *Service) ChangePassword(ctx context.Context, id auth.Identity, current, next string) error {
	u, err := s.store.FindByID(ctx, id.UserID)
	if err != nil {
		return err
	}

	if err := security.CheckPassword(u.PasswordHash, current); err != nil {
		s.outcomes.AuthOutcome("change_password", "incorrect_password")
		return user.ErrIncorrectPassword
	}

	if err := security.ValidatePasswordStrength(next); err != nil {
		s.outcomes.AuthOutcome("change_password", "weak_password")
		return err
	}

	hash, err := security.HashPassword(next)
	if err != nil {
		return err
	}

	if _, err := s.store.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	s.profiles.Invalidate(ctx, u.ID)

	s.outcomes.AuthOutcome("change_password", "ok")
	s.log.InfoContext(ctx, "password_changed", "user_id", u.ID)

	return nil
}

func (s *Service) UpdatePlan(ctx context.Context, id auth.Identity, plan string) (user.User, error) {
	updated, err := s.store.UpdatePlan(ctx, id.UserID, strings.TrimSpace(plan))
	s.profiles.Invalidate(ctx, id.UserID)
	if err != nil {
		return user.User{}, err
	}

	return updated, nil
}

func (s *Service) issue(u user.User) (Session, error) {
	token, exp, err := s.tokens.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return Session{}, err
	}

	return Session{User: u, Token: token, ExpiresAt: exp}, nil
}

type noopOutcomes struct{}

func (noopOutcomes) AuthOutcome(string, string) {}
