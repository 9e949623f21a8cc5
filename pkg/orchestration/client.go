// Package orchestration defines the narrow slice of the cluster
// orchestration API the console consumes: one-shot historical log reads,
// follow-mode live tails, and resource listing. The core never talks to
// Kubernetes directly; it goes through this interface so tests can drive
// sessions with fake upstreams.
package orchestration

import (
	"context"
	"io"
)

// PodInfo describes a pod as shown in the console's workload pickers.
type PodInfo struct {
	Name       string   `json:"name"`
	Namespace  string   `json:"namespace"`
	Phase      string   `json:"phase"`
	Containers []string `json:"containers"`
}

// Client is the orchestration API surface consumed by the streaming core.
type Client interface {
	// FetchRecentLines returns up to limit of the most recent log lines for
	// the container, oldest first. Best effort: callers treat failure as
	// non-fatal.
	FetchRecentLines(ctx context.Context, namespace, pod, container string, limit int) ([]string, error)

	// OpenLiveTail opens a follow-mode log stream delivering only bytes
	// produced after the call, with no historical backfill. The stream
	// unwinds when ctx is cancelled.
	OpenLiveTail(ctx context.Context, namespace, pod, container string) (io.ReadCloser, error)

	// ListNamespaces returns the namespace names visible to the console.
	ListNamespaces(ctx context.Context) ([]string, error)

	// ListPods returns the pods in a namespace.
	ListPods(ctx context.Context, namespace string) ([]PodInfo, error)
}
