package natsx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Config is the `publish.nats` section.
type Config struct {
	Servers       []string      `mapstructure:"servers"`
	Name          string        `mapstructure:"name"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	JetStream     bool          `mapstructure:"jetstream"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (c *Config) norm() error {
	if len(c.Servers) == 0 {
		return errors.New("nats servers missing")
	}
	if c.Name == "" {
		c.Name = "jircord"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "jircord.chat"
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	return nil
}

// Client is a NATS connection with an optional JetStream context.
type Client struct {
	cfg Config
	nc  *nats.Conn
	js  nats.JetStreamContext
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.norm(); err != nil {
		return nil, err
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	c := &Client{cfg: cfg, nc: nc}
	if cfg.JetStream {
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("init jetstream: %w", err)
		}
		c.js = js
	}
	return c, nil
}

func (c *Client) Conn() *nats.Conn { return c.nc }

func (c *Client) send(ctx context.Context, msg *nats.Msg) error {
	if c.js != nil {
		if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
			return fmt.Errorf("publish failed: %w", err)
		}
		return nil
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close drains pending publishes before closing.
func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	return c.nc.Drain()
}
