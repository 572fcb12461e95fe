package service

import (
	"time"

	"forexhub/internal/user"
	"forexhub/pkg/jwt"
)

type JWTManager struct {
	SecretKey string
	TTL       time.Duration
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{
		SecretKey: secret,
		TTL:       ttl,
	}
}

func (j *JWTManager) Generate(u *user.User) (string, error) {
	return jwt.GenerateToken(j.SecretKey, u.ID, u.Email, u.IsSuperuser, j.TTL)
}
