package gateway

// Wire protocol between the console UI and the gateway. Every frame is a
// JSON envelope with a type tag and a type-specific payload.

// Inbound message types.
const (
	MsgSubscribeLogs        = "subscribe:logs"
	MsgUnsubscribeLogs      = "unsubscribe:logs"
	MsgSubscribeNamespace   = "subscribe:namespace"
	MsgUnsubscribeNamespace = "unsubscribe:namespace"
)

// Outbound message types.
const (
	MsgLogLine          = "logs:line"
	MsgLogError         = "logs:error"
	MsgLogEnd           = "logs:end"
	MsgPodStatus        = "pod:status"
	MsgDeploymentUpdate = "deployment:update"
	MsgAlertTriggered   = "alert:triggered"
)

// Request is a client frame. Fields beyond Type are populated per request
// type; unused ones stay empty.
type Request struct {
	Type      string `json:"type"`
	Namespace string `json:"namespace,omitempty"`
	PodName   string `json:"podName,omitempty"`
	Container string `json:"container,omitempty"`
	StreamID  string `json:"streamId,omitempty"`
}

// Message is an outbound frame.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Result acknowledges a Request. StreamID is set for successful
// subscribe:logs; Error for rejections.
type Result struct {
	Of       string `json:"of"`
	Success  bool   `json:"success"`
	StreamID string `json:"streamId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LogLinePayload carries one reassembled log line.
type LogLinePayload struct {
	StreamID  string `json:"streamId"`
	Namespace string `json:"namespace"`
	PodName   string `json:"podName"`
	Line      string `json:"line"`
	Timestamp int64  `json:"timestamp"`
}

// LogErrorPayload reports a fatal transport error for one session.
type LogErrorPayload struct {
	StreamID  string `json:"streamId"`
	Namespace string `json:"namespace"`
	PodName   string `json:"podName"`
	Error     string `json:"error"`
}

// LogEndPayload reports upstream-reported normal termination of a session.
type LogEndPayload struct {
	StreamID  string `json:"streamId"`
	Namespace string `json:"namespace"`
	PodName   string `json:"podName"`
}

// PodStatusPayload is a pod state change broadcast.
type PodStatusPayload struct {
	Namespace string `json:"namespace"`
	PodName   string `json:"podName"`
	Status    string `json:"status"`
	Phase     string `json:"phase"`
	Timestamp int64  `json:"timestamp"`
}

// DeploymentUpdatePayload is a deployment replica change broadcast.
type DeploymentUpdatePayload struct {
	Namespace      string `json:"namespace"`
	DeploymentName string `json:"deploymentName"`
	Replicas       int32  `json:"replicas"`
	ReadyReplicas  int32  `json:"readyReplicas"`
	Timestamp      int64  `json:"timestamp"`
}

// Alert is a cluster alert as handed to BroadcastAlert.
type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// AlertPayload is the broadcast form of an Alert.
type AlertPayload struct {
	Namespace string `json:"namespace"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// resultMsg wraps a Result into an outbound frame.
func resultMsg(of string, res Result) Message {
	res.Of = of
	return Message{Type: of + ":result", Payload: res}
}
