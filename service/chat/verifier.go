package chat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"jircord/tools/errs"
	"jircord/tools/security"
)

// Verifier turns a presented credential into an identity.
type Verifier interface {
	Authenticate(ctx context.Context, credential string) (string, error)
}

type VerifierFunc func(ctx context.Context, credential string) (string, error)

func (f VerifierFunc) Authenticate(ctx context.Context, credential string) (string, error) {
	return f(ctx, credential)
}

// JWTVerifier accepts tokens issued by security.Generate.
type JWTVerifier struct {
	opts security.Options
}

func NewJWTVerifier(opts security.Options) *JWTVerifier {
	return &JWTVerifier{opts: opts}
}

func (v *JWTVerifier) Authenticate(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", errs.ErrUnauthorized.WrapMsg("missing credential")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.WrapCode(errs.ErrUnauthorized, err, "verify token")
	}
	claims, err := security.Verify(v.opts, credential)
	if err != nil {
		return "", errs.WrapCode(errs.ErrUnauthorized, err, "verify token")
	}
	return claims.Username(), nil
}

// AuthenticateWithin bounds the verifier call. Any failure, including the
// timeout, is reported as Unauthorized.
func AuthenticateWithin(ctx context.Context, v Verifier, credential string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		identity string
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		id, err := v.Authenticate(ctx, credential)
		ch <- result{id, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			if errs.ErrUnauthorized.Is(res.err) {
				return "", res.err
			}
			return "", errs.WrapCode(errs.ErrUnauthorized, res.err, "authenticate")
		}
		if res.identity == "" {
			return "", errs.ErrUnauthorized.WrapMsg("empty identity")
		}
		return res.identity, nil
	case <-ctx.Done():
		return "", errs.WrapCode(errs.ErrUnauthorized, ctx.Err(), "authenticate timed out")
	}
}

// CredentialFrom reads the token query parameter, falling back to an
// Authorization: Bearer header.
func CredentialFrom(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	return BearerToken(r.Header.Get("Authorization"))
}

func BearerToken(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
