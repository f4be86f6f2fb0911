package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const globalKey = "im:global"

// Entry is one immutable chat message. An empty To means the global
// channel.
type Entry struct {
	From      string    `json:"from" bson:"from"`
	To        string    `json:"to,omitempty" bson:"to,omitempty"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

func (e Entry) Channel() Channel { return ChannelFor(e.From, e.To) }

// Channel is the derived history key of an entry: either the single global
// channel or the unordered pair of a direct conversation.
type Channel struct {
	a, b string
	dm   bool
}

func GlobalChannel() Channel { return Channel{} }

// DMChannel is symmetric: DMChannel(x, y) == DMChannel(y, x).
func DMChannel(x, y string) Channel {
	p := []string{x, y}
	sort.Strings(p)
	return Channel{a: p[0], b: p[1], dm: true}
}

// ChannelFor resolves the channel an entry from `from` to `to` belongs to.
func ChannelFor(from, to string) Channel {
	if to == "" {
		return GlobalChannel()
	}
	return DMChannel(from, to)
}

func (c Channel) IsGlobal() bool { return !c.dm }

// Members returns the sorted pair of a DM channel; empty for global.
func (c Channel) Members() (string, string) { return c.a, c.b }

// Key is the storage key of the channel, shared by every backend.
func (c Channel) Key() string {
	if !c.dm {
		return globalKey
	}
	return DMKey(c.a, c.b)
}

func (c Channel) String() string { return c.Key() }

// DMKey is im:dm:<len(a)>:<a>:<b> over the sorted pair. The length
// prefix keeps the key unambiguous when identities contain ':'.
func DMKey(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return fmt.Sprintf("im:dm:%d:%s:%s", len(p[0]), p[0], p[1])
}

// MessageLog is the append-only history store the relay writes to. Query
// returns entries in append order.
type MessageLog interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, ch Channel) ([]Entry, error)
}

type entryEvent struct {
	Channel   string    `json:"channel"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// EncodeEvent is the JSON body published for an appended entry.
func EncodeEvent(e Entry) ([]byte, error) {
	return json.Marshal(entryEvent{
		Channel:   e.Channel().Key(),
		From:      e.From,
		To:        e.To,
		Text:      e.Text,
		CreatedAt: e.CreatedAt.UTC(),
	})
}
