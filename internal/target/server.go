// Package target runs a built-in demo service the simulator can point
// at, so the engine can be tried without any real backend. Latency is
// jittered per route and one route fails intermittently, which gives
// the stats and dashboard something interesting to show.
package target

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Server struct {
	srv    *http.Server
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewServer(port int, logger *zap.Logger) *Server {
	s := &Server{
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/users", s.jsonHandler(10, 50, map[string]any{"users": []string{}}))
	mux.HandleFunc("/products", s.jsonHandler(10, 80, map[string]any{"products": []string{}}))
	mux.HandleFunc("/products/", s.jsonHandler(10, 80, map[string]any{"product": "demo"}))
	mux.HandleFunc("/cart", s.jsonHandler(20, 120, map[string]any{"items": []string{}}))
	mux.HandleFunc("/cart/", s.jsonHandler(20, 120, map[string]any{"updated": true}))
	mux.HandleFunc("/orders/", s.jsonHandler(30, 150, map[string]any{"status": "shipped"}))

	// Checkout fails about one time in five.
	mux.HandleFunc("/checkout", func(w http.ResponseWriter, r *http.Request) {
		s.sleep(100, 400)
		if s.chance(0.2) {
			http.Error(w, "payment gateway unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"order_id": 1})
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo target listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) jsonHandler(minMs, maxMs int, body map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sleep(minMs, maxMs)
		status := http.StatusOK
		if r.Method == http.MethodPost {
			status = http.StatusCreated
		}
		writeJSON(w, status, body)
	}
}

func (s *Server) sleep(minMs, maxMs int) {
	s.mu.Lock()
	d := time.Duration(minMs+s.rng.Intn(maxMs-minMs+1)) * time.Millisecond
	s.mu.Unlock()
	time.Sleep(d)
}

func (s *Server) chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
