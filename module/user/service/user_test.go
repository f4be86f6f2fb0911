package service

import (
	"context"
	"testing"
	"time"

	"jircord/tools/errs"
	"jircord/tools/security"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hash(t *testing.T, pw string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func TestAccountsCheck(t *testing.T) {
	a := NewAccounts(map[string]string{"alice": hash(t, "wonderland")})
	require.False(t, a.Open())

	require.NoError(t, a.Check("alice", "wonderland"))
	require.True(t, errs.ErrUnauthorized.Is(a.Check("alice", "nope")))
	require.True(t, errs.ErrUnauthorized.Is(a.Check("mallory", "wonderland")))
	require.True(t, errs.ErrInvalidPayload.Is(a.Check("", "x")))
	require.True(t, errs.ErrInvalidPayload.Is(a.Check("alice", "")))
}

func TestOpenAccounts(t *testing.T) {
	a := NewAccounts(nil)
	require.True(t, a.Open())
	require.NoError(t, a.Check("anyone", "anything"))
	require.True(t, errs.ErrInvalidPayload.Is(a.Check("  ", "anything")))
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, NewAccounts(map[string]string{"bob": h}).Check("bob", "s3cret"))
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	for _, u := range []string{"carol", "alice", "bob", "alice"} {
		require.NoError(t, d.Add(ctx, u))
	}
	all, err := d.All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, all)
}

func TestLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	opts := security.DefaultOptions([]byte("test-secret"))
	svc := NewService(NewAccounts(nil), nil, opts)
	fixed := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Login(ctx, "  alice ", "pw")
	require.NoError(t, err)
	require.Equal(t, "alice", res.Username)
	require.NotEmpty(t, res.Token)
	require.Equal(t, fixed.Add(opts.TTL).UTC(), res.ExpiresAt)

	who, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.Equal(t, "alice", who)

	users, err := svc.Directory().All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, users)

	_, err = svc.Authenticate(ctx, "")
	require.True(t, errs.ErrUnauthorized.Is(err))
	_, err = svc.Authenticate(ctx, res.Token+"x")
	require.True(t, errs.ErrUnauthorized.Is(err))

	other := NewService(nil, nil, security.DefaultOptions([]byte("other-secret")))
	_, err = other.Authenticate(ctx, res.Token)
	require.True(t, errs.ErrUnauthorized.Is(err))
}

func TestLoginRejected(t *testing.T) {
	svc := NewService(NewAccounts(map[string]string{"alice": hash(t, "pw")}), nil,
		security.DefaultOptions([]byte("test-secret")))

	_, err := svc.Login(context.Background(), "alice", "wrong")
	require.True(t, errs.ErrUnauthorized.Is(err))

	users, err := svc.Directory().All(context.Background())
	require.NoError(t, err)
	require.Empty(t, users)
}
