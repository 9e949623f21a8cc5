package orchestration

import (
	"bufio"
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// KubeClient implements Client against a Kubernetes API server.
type KubeClient struct {
	clientset kubernetes.Interface
}

// NewKubeClient builds a client from a kubeconfig path, or from the
// in-cluster service account when kubeconfig is empty.
func NewKubeClient(kubeconfig string) (*KubeClient, error) {
	var restCfg *rest.Config
	var err error
	if kubeconfig != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	} else {
		restCfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("build cluster config: %w", err)
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return &KubeClient{clientset: cs}, nil
}

// NewKubeClientFromClientset wraps an existing clientset; used by tests and
// by the cluster watcher, which shares the connection.
func NewKubeClientFromClientset(cs kubernetes.Interface) *KubeClient {
	return &KubeClient{clientset: cs}
}

// Clientset exposes the underlying clientset for collaborators that need
// the full API (the cluster watcher).
func (k *KubeClient) Clientset() kubernetes.Interface {
	return k.clientset
}

func (k *KubeClient) FetchRecentLines(ctx context.Context, namespace, pod, container string, limit int) ([]string, error) {
	tail := int64(limit)
	opts := &corev1.PodLogOptions{
		Container: container,
		TailLines: &tail,
	}
	stream, err := k.clientset.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch recent lines for %s/%s: %w", namespace, pod, err)
	}
	defer stream.Close()

	var lines []string
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return lines, fmt.Errorf("read recent lines for %s/%s: %w", namespace, pod, err)
	}
	return lines, nil
}

func (k *KubeClient) OpenLiveTail(ctx context.Context, namespace, pod, container string) (io.ReadCloser, error) {
	// TailLines of zero suppresses historical backfill; the follow stream
	// carries only bytes produced after the call.
	zero := int64(0)
	opts := &corev1.PodLogOptions{
		Container: container,
		Follow:    true,
		TailLines: &zero,
	}
	stream, err := k.clientset.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open live tail for %s/%s: %w", namespace, pod, err)
	}
	return stream, nil
}

func (k *KubeClient) ListNamespaces(ctx context.Context) ([]string, error) {
	nsList, err := k.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	names := make([]string, 0, len(nsList.Items))
	for _, ns := range nsList.Items {
		names = append(names, ns.Name)
	}
	return names, nil
}

func (k *KubeClient) ListPods(ctx context.Context, namespace string) ([]PodInfo, error) {
	podList, err := k.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", namespace, err)
	}
	pods := make([]PodInfo, 0, len(podList.Items))
	for _, p := range podList.Items {
		containers := make([]string, 0, len(p.Spec.Containers))
		for _, c := range p.Spec.Containers {
			containers = append(containers, c.Name)
		}
		pods = append(pods, PodInfo{
			Name:       p.Name,
			Namespace:  p.Namespace,
			Phase:      string(p.Status.Phase),
			Containers: containers,
		})
	}
	return pods, nil
}
