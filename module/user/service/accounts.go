package service

import (
	"strings"

	"jircord/tools/errs"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash keeps the cost of a login for an unknown user the same as
// for a known one.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("jircord-dummy"), bcrypt.MinCost)

// Accounts checks passwords against bcrypt hashes. With no accounts
// configured it is open: any non-empty username and password pass.
type Accounts struct {
	hashes map[string][]byte
}

func NewAccounts(users map[string]string) *Accounts {
	a := &Accounts{hashes: make(map[string][]byte, len(users))}
	for name, hash := range users {
		a.hashes[name] = []byte(hash)
	}
	return a
}

func (a *Accounts) Open() bool { return len(a.hashes) == 0 }

func (a *Accounts) Check(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errs.ErrInvalidPayload.WrapMsg("username and password required")
	}
	if a.Open() {
		return nil
	}
	hash, ok := a.hashes[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return errs.ErrUnauthorized.WrapMsg("bad credentials")
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return errs.ErrUnauthorized.WrapMsg("bad credentials")
	}
	return nil
}

// HashPassword produces a hash suitable for accounts.users.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errs.Wrap(err)
	}
	return string(b), nil
}
