package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tykeal/homeassistant-rental-control/internal/config"
	"github.com/tykeal/homeassistant-rental-control/internal/coordinator"
	appLog "github.com/tykeal/homeassistant-rental-control/internal/log"
	"github.com/tykeal/homeassistant-rental-control/internal/metrics"
	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

// Server exposes the presentation output for the host: per-subscription
// event snapshots, loop health, and Prometheus metrics.
type Server struct {
	cfg    *config.Config
	coords map[string]*coordinator.Coordinator
	order  []string
	met    *metrics.Metrics
	mux    *http.ServeMux
}

// NewServer constructs the HTTP server over the given coordinators.
func NewServer(cfg *config.Config, coords []*coordinator.Coordinator, met *metrics.Metrics) *Server {
	s := &Server{
		cfg:    cfg,
		coords: make(map[string]*coordinator.Coordinator, len(coords)),
		met:    met,
		mux:    http.NewServeMux(),
	}
	for _, c := range coords {
		s.coords[c.Name()] = c
		s.order = append(s.order, c.Name())
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler, wrapped with basic auth
// when credentials are configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Rental Control", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/subscriptions", s.handleSubscriptions)
	s.mux.HandleFunc("/api/subscriptions/", s.handleSubscriptionEvents)
	s.mux.Handle("/metrics", s.met.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// subscriptionDTO is the list view of one subscription's loop state.
type subscriptionDTO struct {
	Name   string             `json:"name"`
	Status coordinator.Status `json:"status"`
	Events int                `json:"events"`
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, _ *http.Request) {
	out := make([]subscriptionDTO, 0, len(s.order))
	for _, name := range s.order {
		c := s.coords[name]
		n := 0
		if snap := c.Snapshot(); snap != nil {
			n = len(snap.Events)
		}
		out = append(out, subscriptionDTO{Name: name, Status: c.Status(), Events: n})
	}
	writeJSON(w, http.StatusOK, out)
}

// eventDTO is the presentation shape of one canonical event.
type eventDTO struct {
	UID            string    `json:"uid"`
	SlotName       string    `json:"slot_name,omitempty"`
	Summary        string    `json:"summary"`
	Location       string    `json:"location,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllDay         bool      `json:"all_day"`
	Category       string    `json:"category"`
	DoorCode       string    `json:"door_code"`
	CodeSource     string    `json:"code_source"`
	ETADays        *int      `json:"eta_days,omitempty"`
	ETAHours       *int      `json:"eta_hours,omitempty"`
	ETAMinutes     *int      `json:"eta_minutes,omitempty"`
	GuestEmail     string    `json:"guest_email,omitempty"`
	GuestPhone     string    `json:"guest_phone,omitempty"`
	LastFour       string    `json:"last_four,omitempty"`
	NumGuests      int       `json:"number_of_guests,omitempty"`
	ReservationURL string    `json:"reservation_url,omitempty"`
}

// eventsResponse is the JSON shape for one subscription's snapshot.
type eventsResponse struct {
	Subscription string             `json:"subscription"`
	Status       coordinator.Status `json:"status"`
	Generation   uint64             `json:"generation"`
	FetchedAt    time.Time          `json:"fetched_at"`
	Events       []eventDTO         `json:"events"`
}

// handleSubscriptionEvents serves
// GET /api/subscriptions/{name}/events.
func (s *Server) handleSubscriptionEvents(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/subscriptions/")
	name, tail, _ := strings.Cut(rest, "/")
	if name == "" || (tail != "events" && tail != "") {
		http.NotFound(w, r)
		return
	}

	c, ok := s.coords[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown subscription")
		return
	}

	snap := c.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	}

	now := time.Now()
	dtos := make([]eventDTO, 0, len(snap.Events))
	for i := range snap.Events {
		dtos = append(dtos, toEventDTO(&snap.Events[i], now))
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Subscription: name,
		Status:       c.Status(),
		Generation:   snap.Generation,
		FetchedAt:    snap.FetchedAt,
		Events:       dtos,
	})
}

func toEventDTO(ev *model.Event, now time.Time) eventDTO {
	dto := eventDTO{
		UID:            ev.UID,
		SlotName:       ev.SlotName,
		Summary:        ev.Summary,
		Location:       ev.Location,
		Start:          ev.Start,
		End:            ev.End,
		AllDay:         ev.AllDay,
		Category:       string(ev.Category),
		DoorCode:       ev.DoorCode,
		CodeSource:     string(ev.CodeSource),
		GuestEmail:     ev.Guest.Email,
		GuestPhone:     ev.Guest.Phone,
		LastFour:       ev.Guest.LastFour,
		NumGuests:      ev.Guest.NumGuests,
		ReservationURL: ev.Guest.ReservationURL,
	}
	if days, hours, minutes, ok := ev.ETA(now); ok {
		dto.ETADays = &days
		dto.ETAHours = &hours
		dto.ETAMinutes = &minutes
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
