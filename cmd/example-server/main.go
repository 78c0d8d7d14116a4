// Command example-server é um upstream de demonstração para o gateway.
// Responde JSON cru, envelope pronto, texto e HTML, e confere a credencial
// enviada pelo gateway quando API_KEY está definido.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edge-gateway/middleware/envelope"
	"edge-gateway/pkg/logger"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

type order struct {
	ID     string `json:"id"`
	Item   string `json:"item"`
	Amount int    `json:"amount"`
}

var orders = map[string]order{
	"1": {ID: "1", Item: "keyboard", Amount: 2},
	"2": {ID: "2", Item: "monitor", Amount: 1},
}

func main() {
	log := logger.Init(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	keyHeader := os.Getenv("API_KEY_HEADER")
	if keyHeader == "" {
		keyHeader = "X-Api-Key"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newHandler(os.Getenv("API_KEY"), keyHeader, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("example server listening", "addr", addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newHandler(apiKey, keyHeader string, log *slog.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = envelope.Write(w, http.StatusOK, map[string]string{"status": "up"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/orders", func(w http.ResponseWriter, _ *http.Request) {
		_ = envelope.Write(w, http.StatusOK, []order{orders["1"], orders["2"]})
	}).Methods(http.MethodGet)

	// já devolve o envelope padrão; o gateway repassa sem reembrulhar
	r.HandleFunc("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		o, ok := orders[mux.Vars(r)["id"]]
		if !ok {
			_ = envelope.Write(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		_ = envelope.Write(w, http.StatusOK, envelope.Success(http.StatusOK, o))
	}).Methods(http.MethodGet)

	r.HandleFunc("/orders", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)

	r.HandleFunc("/maintenance", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Service Unavailable\n"))
	})

	r.HandleFunc("/showTela", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h1>Tela do Sistema</h1><p>Requisição recebida com sucesso!</p>"))
	}).Methods(http.MethodGet)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Info("upstream request",
				"method", req.Method,
				"path", req.URL.Path,
				"forwarded_for", req.Header.Get("X-Forwarded-For"),
				"request_id", req.Header.Get("X-Request-Id"),
			)
			if apiKey != "" && req.Header.Get(keyHeader) != apiKey {
				_ = envelope.Write(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	return r
}
