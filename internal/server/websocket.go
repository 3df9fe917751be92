package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/lexiqai/speech-translator/internal/audio"
	"github.com/lexiqai/speech-translator/internal/observability"
	"github.com/lexiqai/speech-translator/internal/orchestrator"
)

// ClipHeader is the text frame sent before each binary clip
type ClipHeader struct {
	InputLang  string `json:"input_lang"`
	OutputLang string `json:"output_lang"`
	Format     string `json:"format"`
}

// wsResponse mirrors the HTTP body; Status is set only on errors
type wsResponse struct {
	*orchestrator.Result
	Error  string `json:"error,omitempty"`
	Status int    `json:"status,omitempty"`
}

// clipSession processes clips from one connection strictly in order
type clipSession struct {
	h      *Handler
	conn   *websocket.Conn
	ctx    context.Context
	logger zerolog.Logger

	pending *ClipHeader
}

func (h *Handler) upgrader() *websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]bool, len(h.cfg.CORSAllowedOrigins))
	for _, o := range h.cfg.CORSAllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(o)] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[strings.ToLower(origin)]
		},
	}
}

// TranslateWS handles GET /ws/translate
func (h *Handler) TranslateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(h.cfg.MaxUploadBytes + 4096)

	s := &clipSession{
		h:      h,
		conn:   conn,
		ctx:    r.Context(),
		logger: hlog.FromRequest(r).With().Str("transport", "websocket").Logger(),
	}
	s.logger.Info().Msg("WebSocket session started")
	s.serve()
	s.logger.Info().Msg("WebSocket session ended")
}

func (s *clipSession) serve() {
	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			var header ClipHeader
			if err := json.Unmarshal(message, &header); err != nil {
				if !s.replyError(http.StatusBadRequest, "invalid clip header: "+err.Error()) {
					return
				}
				continue
			}
			s.pending = &header

		case websocket.BinaryMessage:
			header := s.pending
			s.pending = nil
			if header == nil {
				header = &ClipHeader{}
			}
			if !s.reply(s.translate(header, message)) {
				return
			}
		}
	}
}

func (s *clipSession) translate(header *ClipHeader, clip []byte) wsResponse {
	cfg := s.h.cfg
	req := orchestrator.Request{
		RequestID:  observability.NewRequestID(),
		Audio:      clip,
		Format:     audio.DetectFormat(clip, header.Format, cfg.DefaultUploadFormat),
		InputLang:  orDefault(header.InputLang, cfg.DefaultInputLang),
		OutputLang: orDefault(header.OutputLang, cfg.DefaultOutputLang),
	}

	ctx, cancel := context.WithTimeout(s.logger.WithContext(s.ctx), s.h.pipelineTimeout())
	defer cancel()

	result, err := s.h.runner.Run(ctx, req)
	if err != nil {
		status, body := pipelineError(err)
		return wsResponse{Error: body["error"], Status: status}
	}
	return wsResponse{Result: result}
}

func (s *clipSession) replyError(status int, message string) bool {
	return s.reply(wsResponse{Error: message, Status: status})
}

func (s *clipSession) reply(resp wsResponse) bool {
	if err := s.conn.WriteJSON(resp); err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket write error")
		return false
	}
	return true
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
