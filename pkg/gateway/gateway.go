// Package gateway accepts viewer connections, maps their subscription
// requests onto log-tail sessions, and fans cluster events out to
// namespace-scoped broadcast groups.
package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clusterdeck/console/pkg/logging"
	"github.com/clusterdeck/console/pkg/orchestration"
	"github.com/clusterdeck/console/pkg/streams"
)

// Config holds gateway tunables.
type Config struct {
	// SendBuffer is the per-connection outbound channel capacity. A client
	// that falls this far behind starts losing messages.
	SendBuffer int
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 128
	}
	return c
}

// Gateway owns the connection registry and the namespace broadcast groups.
// All registry and group mutation happens under mu; message delivery is
// non-blocking channel sends.
type Gateway struct {
	logger  *logging.ColoredLogger
	manager *streams.Manager
	client  orchestration.Client
	cfg     Config

	startedAt time.Time

	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[string]map[*Conn]struct{}
}

// New creates a gateway on top of a session manager and the orchestration
// client used for the listing endpoints.
func New(logger *logging.ColoredLogger, manager *streams.Manager, client orchestration.Client, cfg Config) *Gateway {
	return &Gateway{
		logger:    logger,
		manager:   manager,
		client:    client,
		cfg:       cfg.withDefaults(),
		startedAt: time.Now(),
		conns:     make(map[string]*Conn),
		groups:    make(map[string]map[*Conn]struct{}),
	}
}

// Connect registers a fresh connection record and returns it.
func (g *Gateway) Connect() *Conn {
	c := newConn(g.cfg.SendBuffer)
	g.mu.Lock()
	g.conns[c.ID] = c
	total := len(g.conns)
	g.mu.Unlock()

	g.logger.ComponentInfo(logging.ComponentGateway, "client connected",
		zap.String("conn_id", c.ID),
		zap.Int("total_connections", total))
	return c
}

// Disconnect stops every session the connection owns, removes it from all
// broadcast groups, and discards the record. Each stop is attempted
// independently; stopping an already-closed session is a no-op.
func (g *Gateway) Disconnect(c *Conn) {
	g.mu.Lock()
	owned := make([]string, 0, len(c.ownedStreams))
	for id := range c.ownedStreams {
		owned = append(owned, id)
	}
	c.ownedStreams = make(map[string]struct{})
	for ns := range c.namespaces {
		g.leaveGroupLocked(c, ns)
	}
	c.namespaces = make(map[string]struct{})
	delete(g.conns, c.ID)
	total := len(g.conns)
	g.mu.Unlock()

	for _, id := range owned {
		g.manager.Stop(id)
	}

	g.logger.ComponentInfo(logging.ComponentGateway, "client disconnected",
		zap.String("conn_id", c.ID),
		zap.Int("stopped_sessions", len(owned)),
		zap.Int("total_connections", total))
}

// SubscribeLogs starts a log-tail session for the connection and returns
// the derived stream id. On failure nothing is registered: the caller owns
// no stream and a later unsubscribe for the id is a harmless no-op.
func (g *Gateway) SubscribeLogs(ctx context.Context, c *Conn, namespace, pod, container string) (string, error) {
	key := streams.StreamKey{
		ConnID:    c.ID,
		Namespace: namespace,
		Pod:       pod,
		Container: container,
	}
	id := key.ID()

	cb := streams.Callbacks{
		OnLine: func(line string) {
			g.deliver(c, Message{Type: MsgLogLine, Payload: LogLinePayload{
				StreamID:  id,
				Namespace: namespace,
				PodName:   pod,
				Line:      line,
				Timestamp: time.Now().UnixMilli(),
			}})
		},
		OnError: func(err error) {
			g.deliver(c, Message{Type: MsgLogError, Payload: LogErrorPayload{
				StreamID:  id,
				Namespace: namespace,
				PodName:   pod,
				Error:     err.Error(),
			}})
		},
		OnEnd: func() {
			g.deliver(c, Message{Type: MsgLogEnd, Payload: LogEndPayload{
				StreamID:  id,
				Namespace: namespace,
				PodName:   pod,
			}})
		},
	}

	if err := g.manager.Start(ctx, key, cb); err != nil {
		g.logger.ComponentWarn(logging.ComponentGateway, "log subscription rejected",
			zap.String("conn_id", c.ID),
			zap.String("namespace", namespace),
			zap.String("pod", pod),
			zap.Error(err))
		return "", err
	}

	g.mu.Lock()
	c.ownedStreams[id] = struct{}{}
	g.mu.Unlock()

	g.logger.ComponentInfo(logging.ComponentGateway, "log subscription started",
		zap.String("conn_id", c.ID),
		zap.String("stream_id", id))
	return id, nil
}

// UnsubscribeLogs stops the session and removes ownership. Always
// succeeds, including for ids the connection never owned.
func (g *Gateway) UnsubscribeLogs(c *Conn, streamID string) {
	g.manager.Stop(streamID)
	g.mu.Lock()
	delete(c.ownedStreams, streamID)
	g.mu.Unlock()
}

// SubscribeNamespace joins the connection to a namespace broadcast group.
func (g *Gateway) SubscribeNamespace(c *Conn, namespace string) {
	g.mu.Lock()
	c.namespaces[namespace] = struct{}{}
	group, ok := g.groups[namespace]
	if !ok {
		group = make(map[*Conn]struct{})
		g.groups[namespace] = group
	}
	group[c] = struct{}{}
	g.mu.Unlock()
}

// UnsubscribeNamespace leaves the namespace broadcast group.
func (g *Gateway) UnsubscribeNamespace(c *Conn, namespace string) {
	g.mu.Lock()
	delete(c.namespaces, namespace)
	g.leaveGroupLocked(c, namespace)
	g.mu.Unlock()
}

func (g *Gateway) leaveGroupLocked(c *Conn, namespace string) {
	if group, ok := g.groups[namespace]; ok {
		delete(group, c)
		if len(group) == 0 {
			delete(g.groups, namespace)
		}
	}
}

// BroadcastPodStatus fans a pod state change out to the namespace's group.
func (g *Gateway) BroadcastPodStatus(namespace, pod, status, phase string) {
	g.broadcast(namespace, Message{Type: MsgPodStatus, Payload: PodStatusPayload{
		Namespace: namespace,
		PodName:   pod,
		Status:    status,
		Phase:     phase,
		Timestamp: time.Now().UnixMilli(),
	}})
}

// BroadcastDeploymentUpdate fans a replica change out to the namespace's
// group.
func (g *Gateway) BroadcastDeploymentUpdate(namespace, deployment string, replicas, readyReplicas int32) {
	g.broadcast(namespace, Message{Type: MsgDeploymentUpdate, Payload: DeploymentUpdatePayload{
		Namespace:      namespace,
		DeploymentName: deployment,
		Replicas:       replicas,
		ReadyReplicas:  readyReplicas,
		Timestamp:      time.Now().UnixMilli(),
	}})
}

// BroadcastAlert fans an alert out to the namespace's group.
func (g *Gateway) BroadcastAlert(namespace string, alert Alert) {
	g.broadcast(namespace, Message{Type: MsgAlertTriggered, Payload: AlertPayload{
		Namespace: namespace,
		Type:      alert.Type,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Timestamp: time.Now().UnixMilli(),
	}})
}

// broadcast delivers msg to every connection subscribed to namespace.
// Events are ephemeral: no buffering, no replay for late subscribers.
func (g *Gateway) broadcast(namespace string, msg Message) {
	g.mu.RLock()
	group := g.groups[namespace]
	members := make([]*Conn, 0, len(group))
	for c := range group {
		members = append(members, c)
	}
	g.mu.RUnlock()

	for _, c := range members {
		g.deliver(c, msg)
	}
}

// deliver enqueues msg for the connection without blocking. Slow clients
// lose messages rather than stalling sessions or sibling connections.
func (g *Gateway) deliver(c *Conn, msg Message) {
	select {
	case c.send <- msg:
	default:
		g.logger.ComponentWarn(logging.ComponentGateway, "client slow, dropping message",
			zap.String("conn_id", c.ID),
			zap.String("type", msg.Type))
	}
}

// Connections reports the number of registered connections.
func (g *Gateway) Connections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// ActiveSessions reports the number of live log-tail sessions.
func (g *Gateway) ActiveSessions() int {
	return g.manager.ActiveSessions()
}
