// Package federation provides the resilient bus client used by every node
// and by the aggregator: connection-state tracking over a reconnecting
// transport, a fixed-window rate limiter, a circuit breaker, a denylist
// check on every outbound payload, and JSON-decoding subscriptions.
package federation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"truewatch/internal/config"
	"truewatch/internal/identity"
	"truewatch/internal/privacy"
	"truewatch/internal/protocol"
)

// Client wraps a bus connection with the publish safety pipeline. Telemetry
// is best-effort: backpressure outcomes (disconnected, circuit open, rate
// limited) drop the message and return ok=false without an error.
type Client struct {
	cfg  *config.Config
	cred *identity.Credential
	log  *logrus.Entry
	dial Dialer

	breaker *circuitBreaker
	limiter *rateLimiter
	metrics *Metrics

	mu        sync.RWMutex
	conn      Conn
	connected bool
	subs      map[string]Subscription

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	errors           atomic.Uint64
	reconnections    atomic.Uint64
}

// Stats is a read-only snapshot of the client's counters and state.
type Stats struct {
	NodeID           string
	MessagesSent     uint64
	MessagesReceived uint64
	Errors           uint64
	Reconnections    uint64
	Connected        bool
	CircuitOpen      bool
	Subscriptions    int
}

// Option customizes a client.
type Option func(*Client)

// WithDialer replaces the production NATS dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client; Connect must be called before use.
func NewClient(cfg *config.Config, cred *identity.Credential, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:  cfg,
		cred: cred,
		log:  logger.WithField("component", "federation"),
		dial: DialNATS,
		subs: make(map[string]Subscription),
	}
	c.breaker = newCircuitBreaker(BreakerThreshold, BreakerCooldown, c.onBreakerChange)
	c.limiter = newRateLimiter(cfg.MaxMessagesPerMinute, RateWindow)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the bus connection. The transport owns retry and
// backoff from here on; status changes arrive through handleConnEvent.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.dial(c.cfg, c.handleConnEvent)
	if err != nil {
		return fmt.Errorf("federation connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = conn.IsConnected()
	c.mu.Unlock()
	c.log.WithField("node_id", c.cred.NodeID).Info("connected to federation bus")
	return nil
}

// Publish runs the safety pipeline and hands the envelope to the transport.
// The ordered checks are: connected, breaker closed, rate limit, denylist
// scan. The first three short-circuit with (false, nil); a denylist hit or
// transport failure returns the error.
func (c *Client) Publish(ctx context.Context, subject string, env *protocol.Envelope) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if conn == nil || !connected {
		c.log.WithField("subject", subject).Debug("publish skipped: not connected")
		return false, nil
	}
	if !c.breaker.Allow() {
		c.log.WithField("subject", subject).Debug("publish skipped: circuit open")
		return false, nil
	}
	if !c.limiter.Allow() {
		c.log.WithField("subject", subject).Debug("publish dropped: rate limited")
		if c.metrics != nil {
			c.metrics.RateLimited.Inc()
		}
		return false, nil
	}

	payload, err := env.Encode()
	if err != nil {
		c.countError()
		return false, fmt.Errorf("encoding envelope: %w", err)
	}
	if c.cfg.PrivacyChecks {
		if err := privacy.Validate(payload); err != nil {
			c.countError()
			c.log.WithFields(logrus.Fields{
				"subject": subject,
				"type":    env.Type,
			}).WithError(err).Error("refusing to publish envelope")
			return false, err
		}
	}

	if err := conn.Publish(subject, payload); err != nil {
		c.countError()
		if c.breaker.RecordFailure() {
			c.log.Warn("circuit breaker opened after repeated publish failures")
		}
		return false, fmt.Errorf("publishing to %s: %w", subject, err)
	}

	c.messagesSent.Add(1)
	if c.metrics != nil {
		c.metrics.MessagesSent.Inc()
	}
	return true, nil
}

// Subscribe registers a handler for a subject. Inbound payloads are JSON
// decoded; undecodable messages are counted and dropped, never handed to
// the handler. The transport dispatches each subscription on its own
// goroutine, so handlers must not assume ordering across subjects.
func (c *Client) Subscribe(subject string, handler func(subject string, env *protocol.Envelope)) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("subscribing to %s: not connected", subject)
	}

	sub, err := c.conn.Subscribe(subject, func(subj string, data []byte) {
		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			c.countError()
			c.log.WithField("subject", subj).WithError(err).Debug("dropping undecodable message")
			return
		}
		c.messagesReceived.Add(1)
		if c.metrics != nil {
			c.metrics.MessagesReceived.Inc()
		}
		handler(subj, env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	// One handler per subject: replacing a subscription releases the old
	// handle so the transport stops delivering to it.
	if old, ok := c.subs[subject]; ok {
		if err := old.Unsubscribe(); err != nil {
			c.log.WithField("subject", subject).WithError(err).Warn("failed to release replaced subscription")
		}
	}
	c.subs[subject] = sub
	return sub, nil
}

// Stats returns a snapshot without blocking in-flight operations.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	connected := c.connected
	subscriptions := len(c.subs)
	c.mu.RUnlock()

	return Stats{
		NodeID:           c.cred.NodeID,
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		Errors:           c.errors.Load(),
		Reconnections:    c.reconnections.Load(),
		Connected:        connected,
		CircuitOpen:      c.breaker.IsOpen(),
		Subscriptions:    subscriptions,
	}
}

// IsHealthy reports whether publishes can currently reach the bus.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && !c.breaker.IsOpen()
}

// Disconnect drains in-flight work and tears the connection down. Callers
// that want a "leaving" announcement must publish it before calling this.
func (c *Client) Disconnect() {
	c.breaker.Stop()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.subs = make(map[string]Subscription)
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Drain(); err != nil {
		c.log.WithError(err).Warn("drain failed, closing connection")
		conn.Close()
	}
}

func (c *Client) handleConnEvent(event ConnEvent, err error) {
	switch event {
	case ConnDisconnected:
		c.setConnected(false)
		c.log.WithError(err).Warn("bus connection lost, transport is retrying")
	case ConnReconnected:
		c.setConnected(true)
		c.reconnections.Add(1)
		if c.metrics != nil {
			c.metrics.Reconnections.Inc()
		}
		c.log.Info("bus connection restored")
	case ConnClosed:
		c.setConnected(false)
		c.log.Info("bus connection closed")
	case ConnError:
		c.countError()
		c.log.WithError(err).Warn("bus transport error")
	}
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

func (c *Client) countError() {
	c.errors.Add(1)
	if c.metrics != nil {
		c.metrics.Errors.Inc()
	}
}

func (c *Client) onBreakerChange(open bool) {
	if c.metrics == nil {
		return
	}
	if open {
		c.metrics.CircuitOpen.Set(1)
	} else {
		c.metrics.CircuitOpen.Set(0)
	}
}
