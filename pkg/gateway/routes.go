package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/clusterdeck/console/pkg/logging"
)

// Routes builds the gateway's HTTP surface: the websocket endpoint plus
// the listing and status reads the console UI needs.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", g.handleHealth)
	r.Get("/ws", g.WebsocketHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", g.handleStatus)
		r.Get("/namespaces", g.handleListNamespaces)
		r.Get("/namespaces/{namespace}/pods", g.handleListPods)
	})

	return r
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds":  int64(time.Since(g.startedAt).Seconds()),
		"connections":     g.Connections(),
		"active_sessions": g.ActiveSessions(),
	})
}

func (g *Gateway) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := g.client.ListNamespaces(r.Context())
	if err != nil {
		g.logger.ComponentWarn(logging.ComponentGateway, "list namespaces failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "list namespaces failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"namespaces": namespaces})
}

func (g *Gateway) handleListPods(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	pods, err := g.client.ListPods(r.Context(), namespace)
	if err != nil {
		g.logger.ComponentWarn(logging.ComponentGateway, "list pods failed",
			zap.String("namespace", namespace),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "list pods failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pods": pods})
}
