package service

import (
	"context"
	"strings"
	"time"

	"jircord/logger"
	"jircord/tools/errs"
	"jircord/tools/security"

	"go.uber.org/zap"
)

type LoginResult struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service issues and checks the tokens the relay accepts.
type Service struct {
	accounts *Accounts
	dir      Directory
	jwt      security.Options
	now      func() time.Time
}

func NewService(accounts *Accounts, dir Directory, jwt security.Options) *Service {
	if accounts == nil {
		accounts = NewAccounts(nil)
	}
	if dir == nil {
		dir = NewMemoryDirectory()
	}
	return &Service{accounts: accounts, dir: dir, jwt: jwt, now: time.Now}
}

func (s *Service) Directory() Directory { return s.dir }

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if err := s.accounts.Check(username, password); err != nil {
		return LoginResult{}, err
	}
	token, exp, err := security.Generate(s.jwt, username, s.now())
	if err != nil {
		return LoginResult{}, errs.WrapCode(errs.ErrInternal, err, "sign token")
	}
	if err := s.dir.Add(ctx, username); err != nil {
		// the token is valid without a directory entry
		logger.Warn("[user] directory add failed", zap.String("user", username), zap.Error(err))
	}
	logger.Info("[user] login", zap.String("user", username))
	return LoginResult{Token: token, Username: username, ExpiresAt: exp.UTC()}, nil
}

// Authenticate maps a token to its username.
func (s *Service) Authenticate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", errs.ErrUnauthorized.WrapMsg("missing token")
	}
	claims, err := security.Verify(s.jwt, token)
	if err != nil {
		return "", errs.WrapCode(errs.ErrUnauthorized, err, "verify token")
	}
	return claims.Username(), nil
}
