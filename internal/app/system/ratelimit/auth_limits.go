package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AuthLimits groups the per-IP limiters used by the anonymous flows.
type AuthLimits struct {
	Signup    Limiter // account creation and code resends
	Login     Limiter // password attempts
	CheckCode Limiter // verification code submissions
}

// Default windows.
const (
	SignupLimit     = 5
	SignupWindow    = 10 * time.Minute
	LoginLimit      = 10
	LoginWindow     = time.Minute
	CheckCodeLimit  = 10
	CheckCodeWindow = 10 * time.Minute
)

// NewAuthLimits builds Redis limiters when rdb is non-nil, in-memory ones otherwise.
func NewAuthLimits(rdb *redis.Client, logger *zap.Logger) AuthLimits {
	if rdb != nil {
		return AuthLimits{
			Signup:    NewRedis(rdb, "signup", SignupLimit, SignupWindow, logger),
			Login:     NewRedis(rdb, "login", LoginLimit, LoginWindow, logger),
			CheckCode: NewRedis(rdb, "check_code", CheckCodeLimit, CheckCodeWindow, logger),
		}
	}
	return AuthLimits{
		Signup:    NewMemory(SignupLimit, SignupWindow),
		Login:     NewMemory(LoginLimit, LoginWindow),
		CheckCode: NewMemory(CheckCodeLimit, CheckCodeWindow),
	}
}

// Unlimited never throttles. Handler tests use it.
type Unlimited struct{}

func (Unlimited) Allow(_ context.Context, _ string) bool { return true }
func (Unlimited) Reset(_ context.Context, _ string)      {}
