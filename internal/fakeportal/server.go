package fakeportal

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/order-desk/console/internal/api"
	"github.com/order-desk/console/internal/markup"
	"github.com/order-desk/console/internal/order"
)

// Options configures a Server.
type Options struct {
	DashboardPath string
	WSPath        string
	CSRFHeader    string
	CSRFToken     string
	Heartbeat     time.Duration
	Logger        *slog.Logger
}

// Server serves the portal surface the console uses.
type Server struct {
	store  *Store
	broker *Broker
	opts   Options
	log    *slog.Logger
	router chi.Router
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// New creates a server over store.
func New(store *Store, opts Options) *Server {
	if opts.DashboardPath == "" {
		opts.DashboardPath = "/admin/dashboard"
	}
	if opts.WSPath == "" {
		opts.WSPath = "/ws"
	}
	if opts.CSRFHeader == "" {
		opts.CSRFHeader = "X-CSRF-TOKEN"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		store: store,
		broker: NewBroker(BrokerOptions{
			Heartbeat:  opts.Heartbeat,
			CSRFHeader: opts.CSRFHeader,
			CSRFToken:  opts.CSRFToken,
			Logger:     logger,
		}),
		opts: opts,
		log:  logger.With("component", "portal"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle(s.opts.WSPath, s.broker)

	r.Group(func(r chi.Router) {
		r.Use(s.logRequests)
		r.Get(s.opts.DashboardPath, s.handlePage)
		r.Get(api.PathCounters, s.handleCounters)
		r.Get(api.PathOrders, s.handleOrders)
		r.Get(api.PathOrders+"/{id}", s.handleDetail)
		r.Group(func(r chi.Router) {
			r.Use(s.requireCSRF)
			r.Post(api.PathOrders+"/{id}/approve", s.handleApprove)
			r.Post(api.PathOrders+"/{id}/reject", s.handleReject)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Broker returns the push broker.
func (s *Server) Broker() *Broker { return s.broker }

// Store returns the order store.
func (s *Server) Store() *Store { return s.store }

// Emit publishes an order event, the resulting counters, and an urgent
// alert when the order became urgent.
func (s *Server) Emit(ev order.OrderEvent) {
	if err := s.broker.Publish(order.TopicOrders, ev); err != nil {
		s.log.Warn("publish order event", "err", err)
	}
	if err := s.broker.Publish(order.TopicCounters, s.store.Counters()); err != nil {
		s.log.Warn("publish counters", "err", err)
	}
	becameUrgent := ev.NewStatus == order.StatusUrgent && ev.PreviousStatus != order.StatusUrgent &&
		ev.EventType != order.EventOrderModified
	if becameUrgent {
		alert := order.AlertEvent{
			AlertType:    order.AlertUrgentOrder,
			AlertMessage: "Нова спешна поръчка #" + strconv.FormatInt(ev.OrderID, 10),
		}
		if err := s.broker.Publish(order.TopicAlerts, alert); err != nil {
			s.log.Warn("publish alert", "err", err)
		}
	}
}

// Close ends all push sessions.
func (s *Server) Close() { s.broker.Close() }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "took", time.Since(start))
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.CSRFToken != "" && r.Header.Get(s.opts.CSRFHeader) != s.opts.CSRFToken {
			writeError(w, http.StatusForbidden, "Невалиден CSRF токен")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := markup.RenderPage(w, markup.Page{
		CSRFHeader:  s.opts.CSRFHeader,
		CSRFToken:   s.opts.CSRFToken,
		Counters:    s.store.Counters(),
		HasCounters: true,
		Rows:        s.store.Rows(),
	})
	if err != nil {
		s.log.Error("render page", "err", err)
	}
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	writeData(w, s.store.Counters())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	b, ok := order.ParseBucket(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Неизвестен статус")
		return
	}
	writeData(w, s.store.List(b))
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Невалиден номер на поръчка")
		return
	}
	d, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Поръчката не е намерена")
		return
	}
	writeData(w, d)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Невалиден номер на поръчка")
		return
	}
	var req api.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Невалидна заявка")
		return
	}
	ev, err := s.store.Approve(id, req.Note, req.Changes)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.Info("order approved", "id", id, "changes", len(req.Changes))
	s.Emit(ev)
	writeData(w, ev.OrderData)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Невалиден номер на поръчка")
		return
	}
	var req api.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Невалидна заявка")
		return
	}
	ev, err := s.store.Reject(id, req.Reason)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.log.Info("order rejected", "id", id)
	s.Emit(ev)
	writeData(w, ev.OrderData)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	s.log.Warn("order action refused", "err", err)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Поръчката не е намерена")
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "Поръчката вече е обработена")
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, "Невалидни данни")
	default:
		writeError(w, http.StatusInternalServerError, "Вътрешна грешка")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeData(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Success: true, Data: v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: msg})
}
