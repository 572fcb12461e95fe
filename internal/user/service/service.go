package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"forexhub/internal/token"
	"forexhub/internal/user"
	"forexhub/pkg/hash"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	Create(context.Context, *user.User) error
	GetByEmail(context.Context, string) (*user.User, error)
	GetByID(context.Context, int64) (*user.User, error)
}

type RefreshTokenRepository interface {
	Save(context.Context, *token.RefreshToken) error
	Consume(context.Context, string) (*token.RefreshToken, error)
}

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
}

type UserService struct {
	repo   UserRepository
	tokens RefreshTokenRepository
	jwt    *JWTManager
	now    func() time.Time
}

func NewUserService(repo UserRepository, tokens RefreshTokenRepository, jwt *JWTManager) *UserService {
	return &UserService{repo: repo, tokens: tokens, jwt: jwt, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, email, fullName, phone, password string) (*user.User, error) {
	email = normalizeEmail(email)
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		Email:       email,
		FullName:    strings.TrimSpace(fullName),
		PhoneNumber: strings.TrimSpace(phone),
		Password:    hashed,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil || !hash.CheckPassword(u.Password, password) {
		return nil, ErrInvalidCreds
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is consumed and a new pair is issued.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	t, err := s.tokens.Consume(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, token.ErrInvalidToken
	}
	if t.Expired(s.now()) {
		return nil, token.ErrExpiredToken
	}

	u, err := s.repo.GetByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return s.issue(ctx, u)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) issue(ctx context.Context, u *user.User) (*Session, error) {
	access, err := s.jwt.Generate(u)
	if err != nil {
		return nil, err
	}
	rt, err := token.NewRefreshToken(u.ID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, rt); err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: rt.Token}, nil
}
