// Package rpc expõe a janela deslizante como serviço HTTP/JSON e fornece o
// cliente que o gateway usa como domain.Router remoto.
//
//	POST /check/{key}   {"config": {...}}  ->  Result
//	GET  /health
package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"edge-gateway/middleware/ratelimit/domain"
	"edge-gateway/pkg/logger"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 64 << 10

// CheckRequest é o corpo de POST /check/{key}.
type CheckRequest struct {
	Config domain.Config `json:"config"`
}

type errorBody struct {
	Error string `json:"error"`
}

type Server struct {
	router domain.Router
	log    logger.Sink
}

func NewServer(router domain.Router, log logger.Sink) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{router: router, log: log}
}

// Handler devolve um mux.Router com as rotas já registradas. As chaves
// chegam escapadas no path (IPv6, "/"), por isso UseEncodedPath.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().UseEncodedPath()
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/check/{key}", s.checkHandler).Methods(http.MethodPost)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
}

func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(mux.Vars(r)["key"])
	if err != nil || key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid key"})
		return
	}

	var req CheckRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if err := req.Config.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res, err := s.router.Route(r.Context(), domain.Key(key), req.Config)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		s.log.Error("rate limit check failed", "key", key, "err", err)
		writeJSON(w, status, errorBody{Error: "check failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
