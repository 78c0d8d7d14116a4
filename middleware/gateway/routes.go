package gateway

import (
	"net/http"
	"time"

	"edge-gateway/middleware/envelope"

	"github.com/gorilla/mux"
)

// RegisterRoutes monta a superfície HTTP do gateway:
//
//	GET /health        status local, sem auth nem rate limit
//	ANY /api, /api/... pipeline
//	o resto            404 em envelope
func RegisterRoutes(r *mux.Router, p *Pipeline) {
	r.HandleFunc("/health", healthHandler(p.now)).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/api", p)
	r.PathPrefix("/api/").Handler(p)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(notFound)
}

// NewRouter cria um mux.Router já com as rotas do gateway.
func NewRouter(p *Pipeline) *mux.Router {
	r := mux.NewRouter()
	RegisterRoutes(r, p)
	return r
}

func healthHandler(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = envelope.Write(w, http.StatusOK, map[string]string{
			"status":    "OK",
			"timestamp": now().UTC().Format(envelope.TimeFormat),
		})
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	_ = envelope.WriteError(w, http.StatusNotFound, "API route not found")
}
