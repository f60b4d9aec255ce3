package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"i4.energy/across/sim800gw/at"
	"i4.energy/across/sim800gw/modem"
)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance. The modem serves one request at a time.
type Server struct {
	Logger   *slog.Logger
	Modem    *modem.Modem
	Limiter  *rate.Limiter
	Gatherer prometheus.Gatherer

	mu       sync.Mutex
	once     sync.Once
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /fetch", s.limit(s.handleFetch))
		mux.HandleFunc("POST /upload", s.limit(s.handleUpload))
		mux.HandleFunc("GET /status", s.limit(s.handleStatus))
		mux.HandleFunc("GET /terminal", s.limit(s.handleTerminal))

		gatherer := s.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		s.mux = mux
	})
	s.mux.ServeHTTP(w, r)
}

// limit rejects requests beyond the configured rate before they queue for
// the modem.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter != nil && !s.Limiter.Allow() {
			s.sendError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendErrorCode(w, message, 0, statusCode)
}

func (s *Server) sendErrorCode(w http.ResponseWriter, message string, code int, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
		Code    int    `json:"code,omitempty"`
	}
	resp := ErrorResponse{Message: message, Code: code}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// sendModemError maps a failed modem operation to a gateway error, or to a
// client error when a request value could not be sent to the modem. HTTP
// step failures carry their step code.
func (s *Server) sendModemError(w http.ResponseWriter, err error) {
	statusCode := http.StatusBadGateway
	if errors.Is(err, modem.ErrInvalidArgument) {
		statusCode = http.StatusBadRequest
	}
	var stepErr *modem.StepError
	if errors.As(err, &stepErr) {
		s.sendErrorCode(w, err.Error(), stepErr.Code, statusCode)
		return
	}
	if errors.Is(err, modem.ErrNoResponse) {
		s.sendError(w, err.Error(), http.StatusGatewayTimeout)
		return
	}
	s.sendError(w, err.Error(), statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// handleFetch downloads the url query parameter through the modem and
// streams the body to the client.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.sendError(w, "the 'url' query parameter is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status, length, err := s.Modem.HTTPGet(r.Context(), url)
	if err != nil {
		s.Logger.Error("Failed to fetch", "error", err, "url", url)
		s.sendModemError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(length))
	w.Header().Set("X-Remote-Status", strconv.Itoa(status))
	w.WriteHeader(http.StatusOK)

	written, err := s.Modem.CopyBody(r.Context(), w, int64(length))
	if err != nil {
		// The status line is already sent; the short body tells the client.
		s.Logger.Error("Fetch interrupted", "error", err, "url", url, "written", written, "length", length)
		return
	}
	s.Logger.Info("Fetched", "url", url, "status", status, "length", written)
}

// handleUpload posts the request body through the modem to the url query
// parameter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.sendError(w, "the 'url' query parameter is required", http.StatusBadRequest)
		return
	}
	if r.ContentLength <= 0 {
		s.sendError(w, "a request body with a known length is required", http.StatusLengthRequired)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status, length, err := s.Modem.HTTPPostFrom(r.Context(), url, r.Body, r.ContentLength)
	if err != nil {
		s.Logger.Error("Failed to upload", "error", err, "url", url)
		s.sendModemError(w, err)
		return
	}

	type UploadResponse struct {
		Status int `json:"status"`
		Length int `json:"length"`
	}
	s.Logger.Info("Uploaded", "url", url, "size", r.ContentLength, "status", status)
	s.sendJSON(w, UploadResponse{Status: status, Length: length})
}

// StatusResponse describes the modem as seen by the last queries.
type StatusResponse struct {
	IMEI       string     `json:"imei"`
	Time       *time.Time `json:"time,omitempty"`
	Registered bool       `json:"registered"`
	Roaming    bool       `json:"roaming"`
	Connected  bool       `json:"connected"`
	Address    string     `json:"address,omitempty"`
	State      string     `json:"state"`
	LastURC    string     `json:"lastUrc"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := r.Context()
	imei, err := s.Modem.IMEI(ctx)
	if err != nil {
		s.Logger.Error("Failed to query modem", "error", err)
		s.sendModemError(w, err)
		return
	}

	resp := StatusResponse{IMEI: imei}
	if t, err := s.Modem.Time(ctx); err == nil {
		resp.Time = &t
	} else {
		s.Logger.Debug("Clock unavailable", "error", err)
	}
	if reg, err := s.Modem.Registration(ctx); err == nil {
		resp.Registered = reg == at.RegHome || reg == at.RegRoaming
		resp.Roaming = reg == at.RegRoaming
	} else {
		s.Logger.Debug("Registration unavailable", "error", err)
	}
	if connected, err := s.Modem.Status(ctx); err == nil {
		resp.Connected = connected
	} else {
		s.Logger.Debug("Socket status unavailable", "error", err)
	}

	session := s.Modem.Session()
	resp.Address = session.Address
	resp.State = s.Modem.State().String()
	resp.LastURC = session.LastURC.String()

	s.sendJSON(w, resp)
}

// handleTerminal hands the modem to a websocket client until it
// disconnects.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	if !s.mu.TryLock() {
		s.sendError(w, "modem is busy", http.StatusConflict)
		return
	}
	defer s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Error("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.Logger.Info("Terminal session started", "remote", r.RemoteAddr)
	if err := s.Modem.Passthrough(r.Context(), &wsTerminal{conn: conn}); err != nil {
		s.Logger.Warn("Terminal session failed", "error", err)
	}
	s.Logger.Info("Terminal session ended", "remote", r.RemoteAddr)
}

// wsTerminal presents a websocket as a byte stream. Every write becomes one
// text message; a normal close reads as EOF. Closing it unblocks a pending
// read.
type wsTerminal struct {
	conn *websocket.Conn
	r    io.Reader
}

func (t *wsTerminal) Read(p []byte) (int, error) {
	for {
		if t.r == nil {
			_, r, err := t.conn.NextReader()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			if err != nil {
				return 0, err
			}
			t.r = r
		}
		n, err := t.r.Read(p)
		if errors.Is(err, io.EOF) {
			t.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (t *wsTerminal) Write(p []byte) (int, error) {
	if err := t.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *wsTerminal) Close() error {
	return t.conn.Close()
}
