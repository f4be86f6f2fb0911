package natsx

import (
	"context"
	"fmt"
	"strings"

	"jircord/service/storage"
	"jircord/tools/errs"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher taps appended entries onto NATS subjects:
// <prefix>.global and <prefix>.dm.<a>.<b>.
type Publisher struct {
	c      *Client
	prefix string
}

func NewPublisher(c *Client) *Publisher {
	return &Publisher{c: c, prefix: c.cfg.SubjectPrefix}
}

func (p *Publisher) Publish(ctx context.Context, e storage.Entry) error {
	body, err := storage.EncodeEvent(e)
	if err != nil {
		return errs.WrapMsg(err, "encode entry")
	}
	msg := nats.NewMsg(Subject(p.prefix, e.Channel()))
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	return p.c.send(ctx, msg)
}

func Subject(prefix string, ch storage.Channel) string {
	if ch.IsGlobal() {
		return prefix + ".global"
	}
	a, b := ch.Members()
	return prefix + ".dm." + token(a) + "." + token(b)
}

// token makes an identity usable as a single subject token. '%', the
// subject separators and wildcards, whitespace and control bytes become
// %XX, so distinct identities never share a token. The empty identity is
// "%", which no escaped identity can produce.
func token(s string) string {
	if s == "" {
		return "%"
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%', c == '.', c == '*', c == '>', c <= ' ', c == 0x7f:
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
