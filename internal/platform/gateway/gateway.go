// Package gateway maintains the websocket session to the platform and turns
// inbound frames into typed events for the dispatcher.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/go-warden/voice/internal/config"
	"github.com/go-warden/voice/internal/model"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 1 << 20
)

// frame is the platform's wire envelope. The op selects which payload field
// is populated.
type frame struct {
	Op          string                  `json:"op"`
	Presence    *model.PresenceEvent    `json:"presence,omitempty"`
	Interaction *model.InteractionEvent `json:"interaction,omitempty"`
}

const (
	opPresence    = "presence"
	opInteraction = "interaction"
)

// Session owns the connection to the platform event stream. It reconnects on
// failure and pushes decoded events onto its output channels until the
// context is cancelled.
type Session struct {
	cfg          config.GatewayConfig
	presence     chan *model.PresenceEvent
	interactions chan *model.InteractionEvent
	logger       *zap.Logger
}

func NewSession(cfg config.GatewayConfig, logger *zap.Logger) *Session {
	return &Session{
		cfg:          cfg,
		presence:     make(chan *model.PresenceEvent, 256),
		interactions: make(chan *model.InteractionEvent, 256),
		logger:       logger,
	}
}

// Presence returns the decoded presence event stream.
func (s *Session) Presence() <-chan *model.PresenceEvent {
	return s.presence
}

// Interactions returns the decoded interaction event stream.
func (s *Session) Interactions() <-chan *model.InteractionEvent {
	return s.interactions
}

// Run connects and reads until the context is cancelled, reconnecting after
// transient failures. The output channels are closed on return.
func (s *Session) Run(ctx context.Context) {
	defer close(s.presence)
	defer close(s.interactions)

	for {
		if err := s.connectAndRead(ctx); err != nil {
			s.logger.Warn("Gateway session ended", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectWait):
		}
		s.logger.Info("Reconnecting to platform gateway", zap.String("url", s.cfg.URL))
	}
}

func (s *Session) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bot "+s.cfg.Token)

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.cfg.URL, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.logger.Info("Connected to platform gateway", zap.String("url", s.cfg.URL))

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Keepalive pings; the platform answers with pongs that extend the read
	// deadline above.
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleFrame(ctx, data)
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("Dropping undecodable gateway frame", zap.Error(err))
		return
	}

	switch f.Op {
	case opPresence:
		if f.Presence == nil {
			return
		}
		select {
		case s.presence <- f.Presence:
		case <-ctx.Done():
		}
	case opInteraction:
		if f.Interaction == nil {
			return
		}
		select {
		case s.interactions <- f.Interaction:
		case <-ctx.Done():
		}
	default:
		s.logger.Debug("Ignoring gateway frame", zap.String("op", f.Op))
	}
}
