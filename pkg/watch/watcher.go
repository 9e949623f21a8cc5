// Package watch observes cluster state (pod phases, deployment replicas,
// warning events) and pushes changes into the gateway's namespace
// broadcast groups.
package watch

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/clusterdeck/console/pkg/gateway"
	"github.com/clusterdeck/console/pkg/logging"
)

// Watcher translates Kubernetes watch events into gateway broadcasts. A
// closed watch channel is re-established with backoff; unlike log-tail
// sessions, the watcher is a shared feed and is expected to outlive
// individual upstream hiccups.
type Watcher struct {
	clientset  kubernetes.Interface
	gw         *gateway.Gateway
	logger     *logging.ColoredLogger
	namespaces []string
}

// New creates a watcher over the given namespaces. An empty list watches
// all namespaces.
func New(clientset kubernetes.Interface, gw *gateway.Gateway, logger *logging.ColoredLogger, namespaces []string) *Watcher {
	if len(namespaces) == 0 {
		namespaces = []string{metav1.NamespaceAll}
	}
	return &Watcher{
		clientset:  clientset,
		gw:         gw,
		logger:     logger,
		namespaces: namespaces,
	}
}

// Run starts one watch loop per resource kind per namespace and blocks
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for _, ns := range w.namespaces {
		go w.watchLoop(ctx, "pods", ns, w.watchPods)
		go w.watchLoop(ctx, "deployments", ns, w.watchDeployments)
		go w.watchLoop(ctx, "events", ns, w.watchEvents)
	}
	<-ctx.Done()
}

// watchLoop runs open repeatedly, backing off when the watch cannot be
// established or its channel closes.
func (w *Watcher) watchLoop(ctx context.Context, kind, namespace string, open func(ctx context.Context, namespace string) error) {
	backoff := 250 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return
		}
		err := open(ctx, namespace)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.logger.ComponentWarn(logging.ComponentWatch, "watch failed; retrying",
				zap.String("kind", kind),
				zap.String("namespace", namespace),
				zap.Duration("backoff", backoff),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
		}
	}
}

func (w *Watcher) watchPods(ctx context.Context, namespace string) error {
	wi, err := w.clientset.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	defer wi.Stop()
	for ev := range wi.ResultChan() {
		pod, ok := ev.Object.(*corev1.Pod)
		if !ok {
			continue
		}
		w.gw.BroadcastPodStatus(pod.Namespace, pod.Name, eventStatus(ev.Type), string(pod.Status.Phase))
	}
	return nil
}

func (w *Watcher) watchDeployments(ctx context.Context, namespace string) error {
	wi, err := w.clientset.AppsV1().Deployments(namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	defer wi.Stop()
	for ev := range wi.ResultChan() {
		dep, ok := ev.Object.(*appsv1.Deployment)
		if !ok {
			continue
		}
		var replicas int32
		if dep.Spec.Replicas != nil {
			replicas = *dep.Spec.Replicas
		}
		w.gw.BroadcastDeploymentUpdate(dep.Namespace, dep.Name, replicas, dep.Status.ReadyReplicas)
	}
	return nil
}

func (w *Watcher) watchEvents(ctx context.Context, namespace string) error {
	wi, err := w.clientset.CoreV1().Events(namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}
	defer wi.Stop()
	for ev := range wi.ResultChan() {
		event, ok := ev.Object.(*corev1.Event)
		if !ok || event.Type != corev1.EventTypeWarning {
			continue
		}
		w.gw.BroadcastAlert(event.Namespace, gateway.Alert{
			Type:     event.Reason,
			Severity: "warning",
			Message:  event.Message,
		})
	}
	return nil
}

func eventStatus(t watch.EventType) string {
	return strings.ToLower(string(t))
}
