package federation

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"truewatch/internal/config"
)

// Conn is the minimal transport surface the client needs from the bus.
// The production implementation wraps a NATS connection; tests substitute
// an in-memory fake.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(subject string, data []byte)) (Subscription, error)
	Drain() error
	Close()
	IsConnected() bool
}

// Subscription is a handle to an active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// ConnEvent mirrors transport connection-status callbacks. The transport
// owns retry and backoff; the client only reflects these events in its
// state and counters.
type ConnEvent int

const (
	ConnDisconnected ConnEvent = iota
	ConnReconnected
	ConnClosed
	ConnError
)

// Dialer opens a bus connection and delivers status events to onEvent.
type Dialer func(cfg *config.Config, onEvent func(ConnEvent, error)) (Conn, error)

// DialNATS is the production dialer: an outbound-only connection with TLS,
// configured credentials, and transport-managed reconnection.
func DialNATS(cfg *config.Config, onEvent func(ConnEvent, error)) (Conn, error) {
	opts := []nats.Option{
		nats.Name("truewatch"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			onEvent(ConnDisconnected, err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			onEvent(ConnReconnected, nil)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			onEvent(ConnClosed, nil)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			onEvent(ConnError, err)
		}),
	}

	if cfg.AllowReconnect {
		opts = append(opts,
			nats.MaxReconnects(cfg.MaxReconnects),
			nats.ReconnectWait(cfg.ReconnectWait),
		)
	} else {
		opts = append(opts, nats.NoReconnect())
	}

	if cfg.TLS {
		opts = append(opts, nats.Secure(&tls.Config{MinVersion: tls.VersionTLS12}))
	}

	switch {
	case cfg.CredsFile != "":
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	case cfg.Token != "":
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.Username != "":
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to bus: %w", err)
	}
	return &natsConn{nc: nc}, nil
}

type natsConn struct {
	nc *nats.Conn
}

func (c *natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *natsConn) Subscribe(subject string, handler func(string, []byte)) (Subscription, error) {
	return c.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Subject, m.Data)
	})
}

func (c *natsConn) Drain() error {
	return c.nc.Drain()
}

func (c *natsConn) Close() {
	c.nc.Close()
}

func (c *natsConn) IsConnected() bool {
	return c.nc.IsConnected()
}
