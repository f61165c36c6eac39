package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/attendance-tracker/internal/apperr"
	"github.com/Spok95/attendance-tracker/internal/models"
)

const minPasswordLen = 8

type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type Options struct {
	SigningKey string
	Issuer     string
	AccessTTL  time.Duration
	// BcryptCost 0 — bcrypt.DefaultCost.
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	store UserStore
	opts  Options
	log   *zap.Logger
}

func NewService(store UserStore, opts Options, log *zap.Logger) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 12 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, opts: opts, log: log}
}

type RegisterInput struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      models.Role `json:"role"`
}

type Token struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return models.User{}, apperr.New(apperr.ValidationError, "некорректный email")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return models.User{}, apperr.Newf(apperr.ValidationError, "пароль не короче %d символов", minPasswordLen)
	}
	if !in.Role.Valid() {
		return models.User{}, apperr.New(apperr.ValidationError, "роль: student или teacher")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.BcryptCost)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.store.CreateUser(ctx, models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Role,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.ConstraintViolation {
			return models.User{}, apperr.New(apperr.ConstraintViolation, "пользователь с таким email уже зарегистрирован")
		}
		return models.User{}, err
	}
	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

var errBadCredentials = apperr.New(apperr.Unauthorized, "неверный email или пароль")

func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return Token{}, errBadCredentials
		}
		return Token{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Token{}, errBadCredentials
	}
	tok, exp, err := Issue(*u, s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL, s.opts.Now())
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: tok, ExpiresAt: exp, User: *u}, nil
}

// Authenticate — пользователь по access-токену. Удалённый пользователь не проходит.
func (s *Service) Authenticate(ctx context.Context, tokenStr string) (models.User, error) {
	claims, err := Parse(tokenStr, s.opts.SigningKey, s.opts.Issuer)
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.Unauthorized, "недействительный токен доступа", err)
	}
	id, err := claims.UserID()
	if err != nil {
		return models.User{}, apperr.Wrap(apperr.Unauthorized, "недействительный токен доступа", err)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return models.User{}, apperr.New(apperr.Unauthorized, "пользователь не найден")
		}
		return models.User{}, err
	}
	return *u, nil
}

// DeleteAccount удаляет учётную запись после проверки пароля.
// Пользователь с историей посещаемости или своими курсами не удаляется.
func (s *Service) DeleteAccount(ctx context.Context, u models.User, password string) error {
	cur, err := s.store.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(cur.PasswordHash), []byte(password)) != nil {
		return apperr.New(apperr.Unauthorized, "неверный пароль")
	}
	if err := s.store.DeleteUser(ctx, u.ID); err != nil {
		if apperr.KindOf(err) == apperr.ConstraintViolation {
			return apperr.New(apperr.ConstraintViolation, "есть история посещаемости или курсы, удаление невозможно")
		}
		return err
	}
	s.log.Info("user deleted", zap.Int64("user_id", u.ID))
	return nil
}
