package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

const (
	EmptyContent        = 204
	InvalidPayload      = 400
	Unauthorized        = 401
	NotFound            = 404
	ServerInternalError = 500
	LogUnavailable      = 503
)

var (
	ErrUnauthorized   = NewCodeError(Unauthorized, "unauthorized")
	ErrInvalidPayload = NewCodeError(InvalidPayload, "invalid payload")
	ErrEmptyContent   = NewCodeError(EmptyContent, "empty content")
	ErrNotFound       = NewCodeError(NotFound, "record not found")
	ErrLogUnavailable = NewCodeError(LogUnavailable, "message log unavailable")
	ErrInternal       = NewCodeError(ServerInternalError, "internal error")
)

type CodeErrorI interface {
	error
	ECode() int
	EMsg() string
	DDetail() string
	WithDetail(detail string) CodeError
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{
		Code: code,
		Msg:  msg,
	}
}

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e CodeError) ECode() int      { return e.Code }
func (e CodeError) EMsg() string    { return e.Msg }
func (e CodeError) DDetail() string { return e.Detail }

func (e CodeError) WithDetail(detail string) CodeError {
	var d string
	if e.Detail == "" {
		d = detail
	} else {
		d = e.Detail + ", " + detail
	}
	return CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: d,
	}
}

// Wrap attaches a stack trace to a copy of e.
func (e CodeError) Wrap() error {
	return pkgerrors.WithStack(e)
}

// WrapMsg copies e, appends msg and the key/value pairs to its detail and
// attaches a stack trace.
func (e CodeError) WrapMsg(msg string, kv ...any) error {
	ret := e
	if msg != "" || len(kv) > 0 {
		ret = e.WithDetail(toString(msg, kv))
	}
	return pkgerrors.WithStack(ret)
}

// Is reports whether err carries a CodeError with the same code.
func (e CodeError) Is(err error) bool {
	var codeErr CodeError
	if !errors.As(err, &codeErr) {
		return false
	}
	return e.Code == codeErr.Code
}

func (e CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// As extracts the CodeError carried by err, falling back to ErrInternal.
func As(err error) CodeError {
	var codeErr CodeError
	if errors.As(err, &codeErr) {
		return codeErr
	}
	return ErrInternal.WithDetail(err.Error())
}

func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerrors.WithStack(err)
}

// WrapMsg annotates err with msg and key/value pairs, keeping err reachable
// through errors.As/errors.Is.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

// WrapCode wraps a driver error as an instance of code, keeping the cause
// in the detail.
func WrapCode(code CodeError, err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return code.WrapMsg(msg, append(kv, "cause", err.Error())...)
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteString("=")
		if i+1 < len(kv) {
			b.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			b.WriteString("MISSING")
		}
	}
	return b.String()
}

func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return ErrInternal.WrapMsg("panic error", "recovered", r)
}
