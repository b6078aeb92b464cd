package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kchat/internal/constants"
	"kchat/internal/database"
	apperrors "kchat/internal/errors"
	"kchat/internal/httputil"
	"kchat/internal/metrics"
	"kchat/internal/middleware"
	"kchat/internal/models"
	"kchat/internal/service"
	"kchat/internal/validation"
	"kchat/internal/versioning"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxRequestBodyBytes = 64 * 1024

type Server struct {
	cfg         *models.Config
	router      *mux.Router
	logger      *logrus.Logger
	db          *database.Database
	hub         *Hub
	push        *service.PushService
	rateLimiter *RateLimiter
	server      *http.Server
}

func NewServer(cfg *models.Config, db *database.Database, hub *Hub, push *service.PushService, logger *logrus.Logger) *Server {
	ratePerMinute := cfg.Server.WriteRatePerMinute
	if ratePerMinute <= 0 {
		ratePerMinute = constants.DefaultWriteRatePerMinute
	}

	s := &Server{
		cfg:         cfg,
		router:      mux.NewRouter(),
		logger:      logger,
		db:          db,
		hub:         hub,
		push:        push,
		rateLimiter: NewRateLimiter(ratePerMinute, time.Minute),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))
	s.router.Use(versioning.Middleware)

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requireAPIKey)
	api.HandleFunc("/rooms/{roomID}/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{roomID}/messages", s.handlePostMessage()).Methods(http.MethodPost)
	api.HandleFunc("/push/subscriptions", s.handleSavePushSubscription()).Methods(http.MethodPost)
	api.HandleFunc("/push/subscriptions/{id}", s.handleDeletePushSubscription()).Methods(http.MethodDelete)
	api.HandleFunc("/push/send", s.handleSendPush()).Methods(http.MethodPost)

	ws := s.router.PathPrefix("/ws").Subrouter()
	ws.Use(s.requireAPIKey)
	ws.HandleFunc("/rooms/{roomID}", s.handleRoomSocket()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	port := s.cfg.Server.Port
	if port <= 0 {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requireAPIKey enforces the shared API key when one is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Chat.APIKey != "" && r.Header.Get("X-Api-Key") != s.cfg.Chat.APIKey {
			s.writeError(w, http.StatusUnauthorized, apperrors.ErrCodeValidationFailed, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (s *Server) handleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(versioning.Get(Version, BuildTime, GitCommit))
	}
}

// handleListMessages returns room messages strictly newer than the optional
// "after" watermark, ascending by creation time.
func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomID"]

		var after time.Time
		if raw := r.URL.Query().Get("after"); raw != "" {
			parsed, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "invalid after timestamp")
				return
			}
			after = parsed
		}

		messages, err := s.db.ListMessagesAfter(r.Context(), roomID, after)
		if err != nil {
			s.logger.WithError(err).WithField("room", roomID).Error("Failed to list messages")
			s.writeError(w, http.StatusInternalServerError, apperrors.ErrCodeDatabaseQuery, "failed to list messages")
			return
		}

		if messages == nil {
			messages = []models.Message{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messages)
	}
}

// handlePostMessage persists a new message, assigns the server identity and
// timestamp, and fans the insert out to the room's websocket subscribers.
func (s *Server) handlePostMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := httputil.GetClientIP(r)
		if !s.rateLimiter.Allow(clientIP) {
			metrics.IncrementCounter("writes_rate_limited", nil, "Message posts rejected by rate limiting")
			s.writeError(w, http.StatusTooManyRequests, apperrors.ErrCodeRateLimit, "rate limit exceeded")
			return
		}

		var req models.SendMessageRequest
		body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "invalid request body")
			return
		}

		roomID := mux.Vars(r)["roomID"]
		if err := validation.ValidateSendRequest(roomID, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, apperrors.GetCode(err), apperrors.GetUserMessage(err))
			return
		}

		msg := models.Message{
			ID:            uuid.NewString(),
			RoomID:        roomID,
			AuthorID:      req.AuthorID,
			Body:          req.Body,
			AttachmentURL: req.AttachmentURL,
			CreatedAt:     time.Now().UTC(),
			DeliveryState: models.DeliverySent,
		}

		if err := s.db.InsertMessage(r.Context(), &msg); err != nil {
			s.logger.WithError(err).WithField("room", roomID).Error("Failed to insert message")
			s.writeError(w, http.StatusInternalServerError, apperrors.ErrCodeDatabaseQuery, "failed to store message")
			return
		}

		s.hub.Broadcast(msg)
		metrics.IncrementCounter("messages_stored", map[string]string{"room": roomID}, "Messages persisted")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(msg)
	}
}

// handleRoomSocket upgrades the connection and streams the room's insert
// events until the client goes away or the hub drops it.
func (s *Server) handleRoomSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomID"]

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).WithField("room", roomID).Warn("Websocket upgrade failed")
			return
		}

		sub := s.hub.Subscribe(roomID)
		defer s.hub.Unsubscribe(sub)

		// CloseRead surfaces client disconnects through ctx cancellation.
		ctx := conn.CloseRead(r.Context())

		s.logger.WithField("room", roomID).Debug("Websocket subscriber attached")

		for {
			select {
			case event, ok := <-sub.Events():
				if !ok {
					conn.Close(websocket.StatusTryAgainLater, "dropped for slow consumption")
					return
				}
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := wsjson.Write(writeCtx, conn, event)
				cancel()
				if err != nil {
					s.logger.WithError(err).WithField("room", roomID).Debug("Websocket write failed")
					conn.CloseNow()
					return
				}
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

// handleSavePushSubscription registers or refreshes a web-push endpoint.
func (s *Server) handleSavePushSubscription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.push == nil {
			s.writeError(w, http.StatusServiceUnavailable, apperrors.ErrCodePushDelivery, "push delivery is disabled")
			return
		}

		var sub models.PushSubscription
		body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		if err := json.NewDecoder(body).Decode(&sub); err != nil {
			s.writeError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "invalid request body")
			return
		}

		if err := validation.ValidatePushSubscription(&sub); err != nil {
			s.writeError(w, http.StatusBadRequest, apperrors.GetCode(err), apperrors.GetUserMessage(err))
			return
		}

		if sub.ID == "" {
			sub.ID = uuid.NewString()
		}
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = time.Now().UTC()
		}

		if err := s.db.SavePushSubscription(r.Context(), &sub); err != nil {
			s.logger.WithError(err).Error("Failed to save push subscription")
			s.writeError(w, http.StatusInternalServerError, apperrors.ErrCodeDatabaseQuery, "failed to save subscription")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sub)
	}
}

func (s *Server) handleDeletePushSubscription() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := s.db.DeletePushSubscription(r.Context(), id); err != nil {
			s.logger.WithError(err).WithField("subscription", id).Error("Failed to delete push subscription")
			s.writeError(w, http.StatusInternalServerError, apperrors.ErrCodeDatabaseQuery, "failed to delete subscription")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSendPush fans a notification out to every subscription of the target
// user and reports per-subscription outcomes.
func (s *Server) handleSendPush() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.push == nil {
			s.writeError(w, http.StatusServiceUnavailable, apperrors.ErrCodePushDelivery, "push delivery is disabled")
			return
		}

		var msg models.PushMessage
		body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		if err := json.NewDecoder(body).Decode(&msg); err != nil {
			s.writeError(w, http.StatusBadRequest, apperrors.ErrCodeInvalidInput, "invalid request body")
			return
		}

		results, err := s.push.SendToUser(r.Context(), msg)
		if err != nil {
			status := http.StatusInternalServerError
			switch apperrors.GetCode(err) {
			case apperrors.ErrCodeValidationFailed, apperrors.ErrCodeInvalidInput:
				status = http.StatusBadRequest
			case apperrors.ErrCodeNotFound:
				status = http.StatusNotFound
			}
			s.writeError(w, status, apperrors.GetCode(err), apperrors.GetUserMessage(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code apperrors.ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  string(code),
	})
}
