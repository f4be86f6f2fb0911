package natsx

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"jircord/service/storage"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	require.Equal(t, "im.global", Subject("im", storage.GlobalChannel()))
	require.Equal(t, "im.dm.alice.bob", Subject("im", storage.DMChannel("bob", "alice")))
	require.Equal(t, "im.dm.a%2Eb.c%3E", Subject("im", storage.DMChannel("a.b", "c>")))

	// escaping must keep distinct identities apart
	require.NotEqual(t,
		Subject("im", storage.DMChannel("a.b", "c")),
		Subject("im", storage.DMChannel("a_b", "c")))
	require.NotEqual(t,
		Subject("im", storage.DMChannel("a%2Eb", "c")),
		Subject("im", storage.DMChannel("a.b", "c")))
	require.Equal(t, "a%20b%2A", token("a b*"))
	require.Equal(t, "%", token(""))
}

func TestConfigRequiresServers(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

// Needs a running server, e.g. JIRCORD_TEST_NATS=nats://127.0.0.1:4222.
func TestPublishLive(t *testing.T) {
	url := os.Getenv("JIRCORD_TEST_NATS")
	if url == "" {
		t.Skip("JIRCORD_TEST_NATS not set")
	}
	c, err := NewClient(Config{Servers: []string{url}, SubjectPrefix: "jircord.test"})
	require.NoError(t, err)
	defer c.Close()

	sub, err := c.Conn().SubscribeSync("jircord.test.dm.>")
	require.NoError(t, err)
	require.NoError(t, c.Conn().Flush())

	e := storage.Entry{From: "bob", To: "alice", Text: "hey", CreatedAt: time.Now()}
	require.NoError(t, NewPublisher(c).Publish(context.Background(), e))

	msg, err := sub.NextMsg(3 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "jircord.test.dm.alice.bob", msg.Subject)
	require.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	require.Equal(t, "im:dm:5:alice:bob", got["channel"])
	require.Equal(t, "hey", got["text"])
}
