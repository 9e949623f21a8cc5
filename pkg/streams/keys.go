package streams

import "fmt"

// DefaultContainer stands in for the container segment of a stream id when
// the subscriber did not name one (the orchestration API then picks the
// pod's single container).
const DefaultContainer = "-"

// StreamKey identifies one log-tail session: the owning connection plus the
// target container. Two subscribes with equal keys address the same session.
type StreamKey struct {
	ConnID    string
	Namespace string
	Pod       string
	Container string
}

// ID renders the stable stream id used as the registry key and echoed in
// every outbound message for this session.
func (k StreamKey) ID() string {
	container := k.Container
	if container == "" {
		container = DefaultContainer
	}
	return fmt.Sprintf("%s:%s:%s:%s", k.ConnID, k.Namespace, k.Pod, container)
}
