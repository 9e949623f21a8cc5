package gateway

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/clusterdeck/console/pkg/logging"
	"github.com/clusterdeck/console/pkg/orchestration"
	"github.com/clusterdeck/console/pkg/streams"
)

// fakeCluster implements orchestration.Client with pushable live tails.
type fakeCluster struct {
	mu         sync.Mutex
	historical []string
	openErr    error
	writers    []*io.PipeWriter
}

func (f *fakeCluster) FetchRecentLines(ctx context.Context, namespace, pod, container string, limit int) ([]string, error) {
	return f.historical, nil
}

func (f *fakeCluster) OpenLiveTail(ctx context.Context, namespace, pod, container string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	pr, pw := io.Pipe()
	f.mu.Lock()
	f.writers = append(f.writers, pw)
	f.mu.Unlock()
	return pr, nil
}

func (f *fakeCluster) ListNamespaces(ctx context.Context) ([]string, error) {
	return []string{"prod"}, nil
}

func (f *fakeCluster) ListPods(ctx context.Context, namespace string) ([]orchestration.PodInfo, error) {
	return nil, nil
}

func (f *fakeCluster) pushLine(t *testing.T, i int, line string) {
	t.Helper()
	f.mu.Lock()
	pw := f.writers[i]
	f.mu.Unlock()
	if _, err := pw.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("push line: %v", err)
	}
}

func newTestGateway(fc *fakeCluster) *Gateway {
	logger := logging.NewNopLogger()
	manager := streams.NewManager(fc, logger, streams.Options{})
	return New(logger, manager, fc, Config{SendBuffer: 32})
}

// recv waits for the next outbound message of the given type, discarding
// others (results and log lines interleave on the same channel).
func recv(t *testing.T, c *Conn, msgType string) Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s message", msgType)
		}
	}
}

func expectSilence(t *testing.T, c *Conn, wait time.Duration) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %s", msg.Type)
	case <-time.After(wait):
	}
}

func TestSubscribeLogsScenario(t *testing.T) {
	fc := &fakeCluster{historical: []string{"boot ok"}}
	g := newTestGateway(fc)
	c := g.Connect()

	streamID, err := g.SubscribeLogs(context.Background(), c, "prod", "web-1", "")
	if err != nil {
		t.Fatalf("SubscribeLogs failed: %v", err)
	}
	fc.pushLine(t, 0, "req 200")

	first := recv(t, c, MsgLogLine).Payload.(LogLinePayload)
	second := recv(t, c, MsgLogLine).Payload.(LogLinePayload)

	if first.Line != "boot ok" || second.Line != "req 200" {
		t.Errorf("line sequence = [%q, %q], want [boot ok, req 200]", first.Line, second.Line)
	}
	if first.StreamID != streamID || second.StreamID != streamID {
		t.Error("log lines must be tagged with the subscription's stream id")
	}
	if first.Namespace != "prod" || first.PodName != "web-1" {
		t.Errorf("payload target = %s/%s, want prod/web-1", first.Namespace, first.PodName)
	}
}

func TestSubscribeFailureRegistersNothing(t *testing.T) {
	fc := &fakeCluster{openErr: errors.New("pod not found")}
	g := newTestGateway(fc)
	c := g.Connect()

	streamID, err := g.SubscribeLogs(context.Background(), c, "prod", "gone", "")
	if err == nil {
		t.Fatal("SubscribeLogs should fail when the tail cannot open")
	}
	if streamID != "" {
		t.Errorf("failed subscribe returned stream id %q", streamID)
	}

	g.mu.RLock()
	owned := len(c.ownedStreams)
	g.mu.RUnlock()
	if owned != 0 {
		t.Errorf("failed subscribe left %d owned streams", owned)
	}

	// Unsubscribing the would-be id is a harmless no-op.
	key := streams.StreamKey{ConnID: c.ID, Namespace: "prod", Pod: "gone"}
	g.UnsubscribeLogs(c, key.ID())
}

func TestUnsubscribeLogsStopsSession(t *testing.T) {
	fc := &fakeCluster{}
	g := newTestGateway(fc)
	c := g.Connect()

	streamID, err := g.SubscribeLogs(context.Background(), c, "prod", "web-1", "")
	if err != nil {
		t.Fatalf("SubscribeLogs failed: %v", err)
	}
	if g.ActiveSessions() != 1 {
		t.Fatalf("ActiveSessions = %d, want 1", g.ActiveSessions())
	}

	g.UnsubscribeLogs(c, streamID)
	if g.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions = %d after unsubscribe, want 0", g.ActiveSessions())
	}

	// Unknown ids always succeed.
	g.UnsubscribeLogs(c, "not-a-stream")
}

func TestDisconnectIsolation(t *testing.T) {
	fc := &fakeCluster{}
	g := newTestGateway(fc)
	a := g.Connect()
	b := g.Connect()

	if _, err := g.SubscribeLogs(context.Background(), a, "prod", "web-1", ""); err != nil {
		t.Fatalf("subscribe A failed: %v", err)
	}
	if _, err := g.SubscribeLogs(context.Background(), b, "prod", "web-2", ""); err != nil {
		t.Fatalf("subscribe B failed: %v", err)
	}

	g.Disconnect(a)

	if g.Connections() != 1 {
		t.Errorf("Connections = %d, want 1", g.Connections())
	}
	if g.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions = %d, want 1: only A's session stops", g.ActiveSessions())
	}

	// B's session keeps emitting.
	fc.pushLine(t, 1, "still here")
	got := recv(t, b, MsgLogLine).Payload.(LogLinePayload)
	if got.Line != "still here" {
		t.Errorf("line = %q, want %q", got.Line, "still here")
	}
}

func TestBroadcastScoping(t *testing.T) {
	g := newTestGateway(&fakeCluster{})
	subscribed := g.Connect()
	other := g.Connect()

	g.SubscribeNamespace(subscribed, "ns1")
	g.SubscribeNamespace(other, "ns2")

	g.BroadcastAlert("ns1", Alert{Type: "OOMKilled", Severity: "critical", Message: "web-1 restarting"})

	payload := recv(t, subscribed, MsgAlertTriggered).Payload.(AlertPayload)
	if payload.Namespace != "ns1" || payload.Type != "OOMKilled" {
		t.Errorf("alert payload = %+v", payload)
	}
	expectSilence(t, other, 50*time.Millisecond)

	// After leaving the group nothing further arrives.
	g.UnsubscribeNamespace(subscribed, "ns1")
	g.BroadcastAlert("ns1", Alert{Type: "OOMKilled", Severity: "critical", Message: "again"})
	expectSilence(t, subscribed, 50*time.Millisecond)
}

func TestBroadcastToEmptyGroupIsNoop(t *testing.T) {
	g := newTestGateway(&fakeCluster{})
	g.BroadcastPodStatus("empty-ns", "web-1", "modified", "Running")
	g.BroadcastDeploymentUpdate("empty-ns", "web", 3, 2)
	g.BroadcastAlert("empty-ns", Alert{Type: "Test", Severity: "info", Message: "nobody listening"})
}

func TestBroadcastEventFanout(t *testing.T) {
	g := newTestGateway(&fakeCluster{})
	first := g.Connect()
	second := g.Connect()
	g.SubscribeNamespace(first, "prod")
	g.SubscribeNamespace(second, "prod")

	g.BroadcastDeploymentUpdate("prod", "web", 5, 4)

	for _, c := range []*Conn{first, second} {
		payload := recv(t, c, MsgDeploymentUpdate).Payload.(DeploymentUpdatePayload)
		if payload.DeploymentName != "web" || payload.Replicas != 5 || payload.ReadyReplicas != 4 {
			t.Errorf("deployment payload = %+v", payload)
		}
	}
}
