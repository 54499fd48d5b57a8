package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"multicam/pkg/capture"
	"multicam/pkg/config"
	"multicam/pkg/history"
	"multicam/pkg/notify"
)

const serviceName = "multicam"
const serviceVersion = "1.0"

// Notifier publishes capture events to an external channel.
type Notifier interface {
	Publish(event notify.CaptureEvent) error
}

// Options carries the server's optional collaborators.
type Options struct {
	// Token enables bearer-token authentication when non-empty.
	Token string
	// History records capture outcomes when set.
	History *history.Store
	// Notifier publishes capture events when set.
	Notifier Notifier
}

// Server is the JSON front end over the capture session API. It maps the
// core error taxonomy onto HTTP statuses and serializes whole sessions:
// a single mutex guarantees at most one prime or capture runs at a time.
type Server struct {
	settings *config.Settings
	bridge   capture.DeviceBridge
	opts     Options
	logger   log.FieldLogger

	mu     sync.Mutex
	primed []capture.StateMachine
}

// New creates the front end over the given bridge.
func New(settings *config.Settings, bridge capture.DeviceBridge, opts Options, logger log.FieldLogger) *Server {
	return &Server{
		settings: settings,
		bridge:   bridge,
		opts:     opts,
		logger:   logger,
	}
}

// AddRoutes builds the request mux.
func (s *Server) AddRoutes() *http.ServeMux {
	r := http.NewServeMux()
	r.HandleFunc("GET /{$}", s.handleInfo)
	r.HandleFunc("GET /health", s.handleHealth)
	r.HandleFunc("POST /prime", s.auth(s.handlePrime))
	r.HandleFunc("POST /capture", s.auth(s.handleCapture))
	r.HandleFunc("GET /captures", s.auth(s.handleCaptures))
	return r
}

func (s *Server) newSession() *capture.Session {
	manager := capture.NewDeviceManager(s.bridge, nil)
	factory := func(device capture.Device) capture.StateMachine {
		return capture.NewMachine(s.bridge, s.settings.Defaults, device, s.logger.WithField("device", device.Serial))
	}
	return capture.NewSession(manager, factory)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":         serviceName,
		"version":         serviceVersion,
		"timeout_seconds": s.settings.RequestTimeoutSeconds,
		"auth_enabled":    s.opts.Token != "",
	})
}

type deviceHealth struct {
	Serial   string   `json:"serial"`
	Position string   `json:"position,omitempty"`
	OK       bool     `json:"ok"`
	Issues   []string `json:"issues,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.newSession().Discover(ctx)
	if err != nil {
		s.logger.Errorf("Health discovery failed: %v", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	statuses := make([]deviceHealth, 0, len(devices))
	overallOK := len(devices) > 0
	for _, device := range devices {
		status := deviceHealth{Serial: device.Serial, Position: device.Position, OK: true}
		if _, err := s.bridge.RunShell(ctx, device.Serial, "echo ok", true); err != nil {
			status.OK = false
			status.Issues = append(status.Issues, err.Error())
			overallOK = false
		}
		statuses = append(statuses, status)
	}

	statusText := "healthy"
	switch {
	case len(devices) == 0:
		statusText = "no-devices"
	case !overallOK:
		statusText = "issues"
	}

	s.logger.WithFields(log.Fields{"status": statusText, "devices": len(devices)}).Info("Health reported")
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"status":  statusText,
		"devices": statuses,
	})
}

func (s *Server) handlePrime(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Priming devices")
	machines, err := s.newSession().PrepareAll(r.Context())
	if err != nil {
		s.logger.Errorf("Prime failed: %v", err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.primed = machines

	s.logger.Infof("Primed %d devices", len(machines))
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        serviceName,
		"primed_devices": len(machines),
	})
}

type capturedDevice struct {
	Serial      string `json:"serial"`
	Position    string `json:"position,omitempty"`
	ImageBase64 string `json:"image_base64"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.settings.RequestTimeout())
	defer cancel()

	machines := s.primed
	s.primed = nil

	s.logger.WithField("primed", machines != nil).Info("Capture started")
	started := time.Now()
	artifacts, err := s.newSession().CaptureAll(ctx, machines)
	s.record(artifacts, started, err)

	if err != nil {
		s.logger.Errorf("Capture failed: %v", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	payload := make([]capturedDevice, 0, len(artifacts))
	for _, artifact := range artifacts {
		payload = append(payload, capturedDevice{
			Serial:      artifact.Serial,
			Position:    artifact.Position,
			ImageBase64: base64.StdEncoding.EncodeToString(artifact.ImageBytes),
		})
	}

	s.logger.Infof("Captured %d devices", len(payload))
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"count":   len(payload),
		"devices": payload,
	})
}

func (s *Server) handleCaptures(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records := []history.Record{}
	if s.opts.History != nil {
		var err error
		records, err = s.opts.History.Recent(limit)
		if err != nil {
			s.logger.Errorf("Failed to read capture history: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":  serviceName,
		"count":    len(records),
		"captures": records,
	})
}

// record persists and publishes the outcome of one capture attempt.
// Both sinks are best-effort.
func (s *Server) record(artifacts []capture.Artifact, started time.Time, captureErr error) {
	serials := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		serials = append(serials, artifact.Serial)
	}

	errText := ""
	if captureErr != nil {
		errText = captureErr.Error()
	}

	if s.opts.History != nil {
		rec := history.Record{
			Timestamp: started,
			Serials:   serials,
			Duration:  time.Since(started).Seconds(),
			Success:   captureErr == nil,
			Error:     errText,
		}
		if err := s.opts.History.Append(rec); err != nil {
			s.logger.Errorf("Failed to record capture history: %v", err)
		}
	}

	if s.opts.Notifier != nil {
		event := notify.CaptureEvent{
			Timestamp: started,
			Serials:   serials,
			Count:     len(serials),
			Success:   captureErr == nil,
			Error:     errText,
		}
		if err := s.opts.Notifier.Publish(event); err != nil {
			s.logger.Errorf("Failed to publish capture event: %v", err)
		}
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.Token {
			writeError(w, http.StatusUnauthorized, "Invalid or missing API token")
			return
		}
		next(w, r)
	}
}

func statusForError(err error) int {
	var bridgeErr *capture.BridgeError
	switch {
	case errors.As(err, &bridgeErr), errors.Is(err, capture.ErrNoPhoto):
		return http.StatusBadGateway
	case errors.Is(err, capture.ErrNoDevices), errors.Is(err, capture.ErrDeviceNotReady):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
