package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/clusterdeck/console/pkg/logging"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The console serves operators on a trusted network for now; tighten
	// when the UI gets its own origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 30 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebsocketHandler upgrades to WS and runs the connection's request/response
// loop. Outbound messages (log lines, session signals, broadcasts) are
// written by a dedicated writer goroutine; the reader loop dispatches
// subscription requests until the client goes away.
func (g *Gateway) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	wsConn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.ComponentWarn(logging.ComponentGateway, "ws: upgrade failed", zap.Error(err))
		return
	}
	defer wsConn.Close()

	c := g.Connect()
	defer g.Disconnect(c)

	done := make(chan struct{})
	go g.writerLoop(wsConn, c, done)
	g.readerLoop(r, wsConn, c)
	close(done)
}

// writerLoop drains the connection's outbound channel into the websocket
// and keeps the connection alive with pings.
func (g *Gateway) writerLoop(wsConn *websocket.Conn, c *Conn, done chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			wsConn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := wsConn.WriteJSON(msg); err != nil {
				g.logger.ComponentWarn(logging.ComponentGateway, "ws: write failed",
					zap.String("conn_id", c.ID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = wsConn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-done:
			_ = wsConn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(5*time.Second))
			return
		}
	}
}

// readerLoop reads client frames and dispatches them until the socket
// closes. Malformed frames are answered with a failed result rather than
// dropping the connection.
func (g *Gateway) readerLoop(r *http.Request, wsConn *websocket.Conn, c *Conn) {
	for {
		var req Request
		if err := wsConn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.ComponentDebug(logging.ComponentGateway, "ws: read failed",
					zap.String("conn_id", c.ID),
					zap.Error(err))
			}
			return
		}
		g.dispatch(r, c, req)
	}
}

// dispatch routes one client request and enqueues its result.
func (g *Gateway) dispatch(r *http.Request, c *Conn, req Request) {
	switch req.Type {
	case MsgSubscribeLogs:
		if req.Namespace == "" || req.PodName == "" {
			g.deliver(c, resultMsg(req.Type, Result{Success: false, Error: "namespace and podName are required"}))
			return
		}
		streamID, err := g.SubscribeLogs(r.Context(), c, req.Namespace, req.PodName, req.Container)
		if err != nil {
			g.deliver(c, resultMsg(req.Type, Result{Success: false, Error: err.Error()}))
			return
		}
		g.deliver(c, resultMsg(req.Type, Result{Success: true, StreamID: streamID}))

	case MsgUnsubscribeLogs:
		g.UnsubscribeLogs(c, req.StreamID)
		g.deliver(c, resultMsg(req.Type, Result{Success: true}))

	case MsgSubscribeNamespace:
		if req.Namespace == "" {
			g.deliver(c, resultMsg(req.Type, Result{Success: false, Error: "namespace is required"}))
			return
		}
		g.SubscribeNamespace(c, req.Namespace)
		g.deliver(c, resultMsg(req.Type, Result{Success: true}))

	case MsgUnsubscribeNamespace:
		g.UnsubscribeNamespace(c, req.Namespace)
		g.deliver(c, resultMsg(req.Type, Result{Success: true}))

	default:
		g.deliver(c, resultMsg(req.Type, Result{Success: false, Error: "unknown message type"}))
	}
}
