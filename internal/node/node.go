// Package node wires the node-side telemetry pipeline together: local
// observers feed domain records in, the anonymizer turns them into
// envelopes, and the federation client puts them on the bus. It also keeps
// the most recent network summary for display.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"truewatch/internal/config"
	"truewatch/internal/federation"
	"truewatch/internal/identity"
	"truewatch/internal/monitor"
	"truewatch/internal/privacy"
	"truewatch/internal/protocol"
)

// leaveTimeout bounds the best-effort "leaving" publish during shutdown.
const leaveTimeout = 2 * time.Second

// Node is the long-lived node-side telemetry reporter. It implements
// monitor.Sink for the local observers (log tailer, invoice watcher).
type Node struct {
	cfg     *config.Config
	log     *logrus.Entry
	client  *federation.Client
	anon    *privacy.Anonymizer
	tracker *monitor.Tracker

	mu            sync.RWMutex
	lastStats     *protocol.Envelope
	lastStatsSeen time.Time

	wg sync.WaitGroup
}

// NewNode creates the reporter around an already constructed client.
func NewNode(cfg *config.Config, cred *identity.Credential, client *federation.Client, logger *logrus.Logger) *Node {
	return &Node{
		cfg:     cfg,
		log:     logger.WithField("component", "node"),
		client:  client,
		anon:    privacy.NewAnonymizer(cred),
		tracker: monitor.NewTracker(cfg.Version, cfg.Continent),
	}
}

// Tracker exposes the workload tracker for local observers.
func (n *Node) Tracker() *monitor.Tracker {
	return n.tracker
}

// Start connects to the bus, announces the node, subscribes to the network
// summary, and begins the heartbeat loop.
func (n *Node) Start(ctx context.Context) error {
	if err := n.client.Connect(ctx); err != nil {
		return err
	}

	n.announce(ctx, n.anon.NodeJoined(n.nodeEvent()))

	if _, err := n.client.Subscribe(protocol.SubjectStatsAggregated, n.handleNetworkStats); err != nil {
		return err
	}

	n.wg.Add(1)
	go n.heartbeatLoop(ctx)

	return nil
}

// Stop publishes a best-effort leave announcement with a short deadline,
// then drains and closes the connection.
func (n *Node) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	n.announce(ctx, n.anon.NodeLeft(n.nodeEvent()))

	n.client.Disconnect()
	n.wg.Wait()
}

// TaskReceived implements monitor.Sink.
func (n *Node) TaskReceived(ev monitor.TaskEvent) {
	n.tracker.TaskStarted()
	n.publish(protocol.SubjectTasksReceived, n.anon.TaskReceived(ev))
}

// TaskCompleted implements monitor.Sink.
func (n *Node) TaskCompleted(ev monitor.TaskEvent) {
	n.tracker.TaskFinished()
	n.publish(protocol.SubjectTasksCompleted, n.anon.TaskCompleted(ev))
}

// InvoiceCreated implements monitor.Sink.
func (n *Node) InvoiceCreated(inv monitor.Invoice) {
	n.publish(protocol.SubjectInvoicesCreated, n.anon.InvoiceCreated(inv))
}

// NetworkStats returns the latest aggregated summary and whether it has
// gone stale (the aggregator has been quiet for several publish intervals).
func (n *Node) NetworkStats() (*protocol.Envelope, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.lastStats == nil {
		return nil, true
	}
	stale := time.Since(n.lastStatsSeen) > 3*n.cfg.PublishInterval
	return n.lastStats, stale
}

// Stats exposes the client's counters for the local dashboard.
func (n *Node) Stats() federation.Stats {
	return n.client.Stats()
}

func (n *Node) heartbeatLoop(ctx context.Context) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.publish(protocol.SubjectHeartbeat, n.anon.Heartbeat(n.tracker.Snapshot()))
		}
	}
}

func (n *Node) handleNetworkStats(_ string, env *protocol.Envelope) {
	n.mu.Lock()
	n.lastStats = env
	n.lastStatsSeen = time.Now()
	n.mu.Unlock()
}

// publish sends one envelope; telemetry is best-effort, so failures are
// logged and dropped here rather than surfaced to observers.
func (n *Node) publish(subject string, env *protocol.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := n.client.Publish(ctx, subject, env); err != nil {
		n.log.WithField("subject", subject).WithError(err).Warn("telemetry publish failed")
	}
}

func (n *Node) announce(ctx context.Context, env *protocol.Envelope) {
	subject, err := protocol.SubjectFor(env.Type)
	if err != nil {
		n.log.WithError(err).Error("announcement subject lookup failed")
		return
	}
	if _, err := n.client.Publish(ctx, subject, env); err != nil {
		n.log.WithField("subject", subject).WithError(err).Warn("announcement publish failed")
	}
}

func (n *Node) nodeEvent() monitor.NodeEvent {
	return monitor.NodeEvent{Version: n.cfg.Version, Continent: n.cfg.Continent}
}
