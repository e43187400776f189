// Package gateway runs channel adapters around the assistant pipeline and
// serves health, readiness and metrics.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/channel"
	"tourdesk/pkg/config"
	"tourdesk/pkg/metrics"
	"tourdesk/pkg/store"
)

const (
	defaultHealthHost   = "0.0.0.0"
	defaultHealthPort   = 18790
	healthCheckInterval = 30 * time.Second
)

// Receiver consumes normalized inbound events.
type Receiver interface {
	Receive(ctx context.Context, ev bus.InboundEvent)
}

// Capability is the optional language capability probed for readiness.
type Capability interface {
	Health(ctx context.Context) error
}

type Service struct {
	cfg        *config.Config
	log        *slog.Logger
	bus        *bus.MessageBus
	receiver   Receiver
	kv         store.Store
	capability Capability
	metrics    *metrics.Metrics
	channels   []channel.Adapter

	mu                 sync.RWMutex
	startedAt          time.Time
	capabilityLastOKAt time.Time
	capabilityLastErr  string
	storeLastErr       string
	channelStates      map[string]channelState
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status             string                  `json:"status"`
	UptimeSeconds      int64                   `json:"uptime_seconds"`
	CapabilityEnabled  bool                    `json:"capability_enabled"`
	CapabilityLastOKAt string                  `json:"capability_last_ok_at,omitempty"`
	CapabilityLastErr  string                  `json:"capability_last_error,omitempty"`
	StoreLastErr       string                  `json:"store_last_error,omitempty"`
	Channels           map[string]channelState `json:"channels"`
}

// Deps are the collaborators a Service drives. Capability and Metrics are
// optional.
type Deps struct {
	Bus        *bus.MessageBus
	Receiver   Receiver
	Store      store.Store
	Capability Capability
	Metrics    *metrics.Metrics
}

func NewService(cfg *config.Config, adapters []channel.Adapter, deps Deps, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if deps.Bus == nil || deps.Receiver == nil || deps.Store == nil {
		return nil, errors.New("bus, receiver and store are required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		bus:           deps.Bus,
		receiver:      deps.Receiver,
		kv:            deps.Store,
		capability:    deps.Capability,
		metrics:       deps.Metrics,
		channels:      adapters,
		channelStates: channelStates,
	}, nil
}

// Run starts every adapter, the inbound pump, the outbound dispatcher and
// the status server. It returns when ctx ends or any of them fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.capability != nil {
		if err := s.checkCapabilityHealth(ctx); err != nil {
			s.log.Warn("Capability unhealthy at startup, extraction falls back to rules", "error", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, adapter := range s.channels {
		s.bus.RegisterSender(adapter.Name(), func(msg bus.OutboundMessage) error {
			return adapter.Send(ctx, msg)
		})
	}

	g.Go(func() error { return s.runHealthServer(ctx) })
	g.Go(func() error { s.runHealthChecks(ctx); return nil })
	g.Go(func() error { s.pumpInbound(ctx); return nil })
	g.Go(func() error { s.dispatchOutbound(ctx); return nil })

	if s.metrics != nil {
		events, unsubscribe := s.bus.SubscribeEvents(ctx, 0)
		g.Go(func() error {
			defer unsubscribe()
			s.metrics.Run(ctx, events)
			return nil
		})
	}

	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})
		g.Go(func() error {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
			return nil
		})
	}

	return g.Wait()
}

// handleInbound is the channel.Handler given to adapters.
func (s *Service) handleInbound(ctx context.Context, ev bus.InboundEvent) {
	if !s.bus.PublishInbound(ctx, ev) {
		s.log.Warn("Inbound queue closed, event dropped", "conversation_id", ev.ConversationID, "kind", ev.Kind)
	}
}

func (s *Service) pumpInbound(ctx context.Context) {
	for {
		ev, ok := s.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		s.receiver.Receive(ctx, ev)
	}
}

func (s *Service) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := s.bus.ConsumeOutbound(ctx)
		if !ok {
			return
		}

		send, ok := s.bus.Sender(msg.Channel)
		if !ok {
			s.sendFailed(ctx, msg, fmt.Errorf("no sender for channel %q", msg.Channel))
			continue
		}
		if err := send(msg); err != nil {
			s.sendFailed(ctx, msg, err)
		}
	}
}

func (s *Service) sendFailed(ctx context.Context, msg bus.OutboundMessage, err error) {
	s.log.Error("Failed to send message", "channel", msg.Channel, "conversation_id", msg.ConversationID, "error", err)
	s.bus.PublishEvent(ctx, bus.Event{
		Type:           bus.EventSendFailed,
		Channel:        msg.Channel,
		ConversationID: msg.ConversationID,
		Error:          err.Error(),
	})
}

func (s *Service) runHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.capability != nil {
				_ = s.checkCapabilityHealth(ctx)
			}
			s.checkStore(ctx)
		}
	}
}

func (s *Service) runHealthServer(ctx context.Context) error {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start status server: %w", err)
	}
	return nil
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	s.checkStore(r.Context())

	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	capabilityLastOK := ""
	if !s.capabilityLastOKAt.IsZero() {
		capabilityLastOK = s.capabilityLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:             status,
		UptimeSeconds:      uptime,
		CapabilityEnabled:  s.capability != nil,
		CapabilityLastOKAt: capabilityLastOK,
		CapabilityLastErr:  s.capabilityLastErr,
		StoreLastErr:       s.storeLastErr,
		Channels:           channels,
	}
}

// isReady requires a running channel and a reachable store. The capability
// counts only when one is configured.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}
	if !anyRunning {
		return false
	}

	if s.storeLastErr != "" {
		return false
	}

	if s.capability == nil {
		return true
	}

	return !s.capabilityLastOKAt.IsZero() && s.capabilityLastErr == ""
}

func (s *Service) checkCapabilityHealth(ctx context.Context) error {
	if err := s.capability.Health(ctx); err != nil {
		s.mu.Lock()
		s.capabilityLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("capability health check failed: %w", err)
	}

	s.mu.Lock()
	s.capabilityLastErr = ""
	s.capabilityLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) checkStore(ctx context.Context) {
	err := s.kv.Ping(ctx)
	if err != nil {
		s.log.Warn("Store ping failed", "error", err)
	}

	s.mu.Lock()
	s.storeLastErr = errorString(err)
	s.mu.Unlock()
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
