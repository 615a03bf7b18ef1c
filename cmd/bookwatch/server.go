package main

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
)

// bookSource is the read side of exwire.Client used by the HTTP handlers.
type bookSource interface {
	Name() string
	OrderBook(market string, depth int) (model.OrderBookView, orderbook.State, bool)
}

type bookResponse struct {
	State string              `json:"state"`
	Book  model.OrderBookView `json:"book"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Exchange string            `json:"exchange"`
	Books    map[string]string `json:"books"`
}

type server struct {
	books   bookSource
	symbols []string
	depth   int
	log     logger.Interface
}

func newRouter(s *server, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/books/{symbol}", s.book)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	return r
}

// book serves GET /books/{symbol}?depth=N. The symbol may be written as
// BTC-USDT, BTC_USDT or BTC%2FUSDT.
func (s *server) book(w http.ResponseWriter, r *http.Request) {
	symbol, err := parseSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	depth := s.depth
	if q := r.URL.Query().Get("depth"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid depth"})
			return
		}
		depth = n
	}

	v, state, ok := s.books.OrderBook(symbol, depth)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no book for " + symbol, "state": state.String()})
		return
	}
	s.writeJSON(w, http.StatusOK, bookResponse{State: state.String(), Book: v})
}

// health reports 503 until every configured book is live.
func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Exchange: s.books.Name(), Books: make(map[string]string, len(s.symbols))}
	status := http.StatusOK
	for _, sym := range s.symbols {
		_, state, _ := s.books.OrderBook(sym, 1)
		resp.Books[sym] = state.String()
		if state != orderbook.Live {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, status, resp)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(err)
	}
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.log.DebugContext(ctx, "http request",
			logger.NewField("method", r.Method),
			logger.NewField("path", r.URL.Path),
			logger.NewField("status", ww.Status()),
			logger.NewField("duration", time.Since(start).String()),
		)
	})
}

func parseSymbol(raw string) (string, error) {
	s, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.Contains(s, "/") {
		s = strings.NewReplacer("-", "/", "_", "/").Replace(s)
	}
	return s, nil
}
