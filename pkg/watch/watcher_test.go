package watch

import (
	"context"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	watchapi "k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/clusterdeck/console/pkg/gateway"
	"github.com/clusterdeck/console/pkg/logging"
	"github.com/clusterdeck/console/pkg/orchestration"
	"github.com/clusterdeck/console/pkg/streams"
)

type fixture struct {
	gw          *gateway.Gateway
	conn        *gateway.Conn
	pods        *watchapi.FakeWatcher
	deployments *watchapi.FakeWatcher
	events      *watchapi.FakeWatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cs := fake.NewSimpleClientset()

	pods := watchapi.NewFake()
	deployments := watchapi.NewFake()
	events := watchapi.NewFake()
	cs.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(pods, nil))
	cs.PrependWatchReactor("deployments", k8stesting.DefaultWatchReactor(deployments, nil))
	cs.PrependWatchReactor("events", k8stesting.DefaultWatchReactor(events, nil))

	logger := logging.NewNopLogger()
	kube := orchestration.NewKubeClientFromClientset(cs)
	manager := streams.NewManager(kube, logger, streams.Options{})
	gw := gateway.New(logger, manager, kube, gateway.Config{})

	conn := gw.Connect()
	gw.SubscribeNamespace(conn, "prod")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := New(cs, gw, logger, []string{"prod"})
	go w.Run(ctx)

	return &fixture{gw: gw, conn: conn, pods: pods, deployments: deployments, events: events}
}

func recvMessage(t *testing.T, conn *gateway.Conn, msgType string) gateway.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-conn.Outbound():
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func TestPodWatchBroadcastsStatus(t *testing.T) {
	f := newFixture(t)

	f.pods.Modify(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "prod"},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	})

	payload := recvMessage(t, f.conn, gateway.MsgPodStatus).Payload.(gateway.PodStatusPayload)
	if payload.PodName != "web-1" || payload.Namespace != "prod" {
		t.Errorf("payload target = %s/%s", payload.Namespace, payload.PodName)
	}
	if payload.Status != "modified" || payload.Phase != "Running" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestDeploymentWatchBroadcastsUpdate(t *testing.T) {
	f := newFixture(t)

	replicas := int32(3)
	f.deployments.Add(&appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "prod"},
		Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
		Status:     appsv1.DeploymentStatus{ReadyReplicas: 2},
	})

	payload := recvMessage(t, f.conn, gateway.MsgDeploymentUpdate).Payload.(gateway.DeploymentUpdatePayload)
	if payload.DeploymentName != "web" || payload.Replicas != 3 || payload.ReadyReplicas != 2 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWarningEventBroadcastsAlert(t *testing.T) {
	f := newFixture(t)

	// Normal events are filtered; only warnings alert.
	f.events.Add(&corev1.Event{
		ObjectMeta: metav1.ObjectMeta{Name: "ev-1", Namespace: "prod"},
		Type:       corev1.EventTypeNormal,
		Reason:     "Scheduled",
		Message:    "assigned to node-1",
	})
	f.events.Add(&corev1.Event{
		ObjectMeta: metav1.ObjectMeta{Name: "ev-2", Namespace: "prod"},
		Type:       corev1.EventTypeWarning,
		Reason:     "BackOff",
		Message:    "restarting failed container",
	})

	payload := recvMessage(t, f.conn, gateway.MsgAlertTriggered).Payload.(gateway.AlertPayload)
	if payload.Type != "BackOff" || payload.Severity != "warning" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Message != "restarting failed container" {
		t.Errorf("message = %q", payload.Message)
	}
}
