package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	apperrors "chatwire/errors"

	"chatwire/contract"
	"chatwire/domain"
	"chatwire/observability"
	"chatwire/repositories"
	"chatwire/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

// IIdentityResolver is the credential collaborator: it turns the token
// presented in connection metadata into a verified user record.
type IIdentityResolver interface {
	Resolve(token string) (repositories.User, error)
}

// session is the explicit per-connection identity record handed to
// every event handler, instead of a closure over mutable state.
type session struct {
	id     string
	userID string
}

// Handler upgrades HTTP requests into authenticated chat sessions.
// Each inbound event is dispatched on its own goroutine; the read loop
// never waits on a store operation.
type Handler struct {
	log      *slog.Logger
	resolver IIdentityResolver
	chat     services.IChatService
	monitor  *observability.Monitor
	validate *validator.Validate
	upgrader websocket.Upgrader

	bufferSize   int
	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewHandler(log *slog.Logger, resolver IIdentityResolver, chat services.IChatService,
	monitor *observability.Monitor, bufferSize int,
	writeTimeout, pingInterval, handshakeTimeout time.Duration) *Handler {
	return &Handler{
		log:      log,
		resolver: resolver,
		chat:     chat,
		monitor:  monitor,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			// The browser client connects from a different origin;
			// tokens, not origins, gate access.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	user, err := h.resolver.Resolve(r.URL.Query().Get("token"))
	if err != nil {
		// Rejected before any session or presence state exists.
		h.monitor.ConnectionRejected()
		h.log.Warn("connection rejected", "remote", r.RemoteAddr, "error", err)
		h.reject(ws)
		return
	}

	conn := NewConnection(h.log, user.ID, ws, h.bufferSize, h.writeTimeout, h.pingInterval)
	conn.Start()

	ctx := r.Context()
	h.chat.Connect(ctx, conn.ID, user, conn)
	h.log.Info("session started", "user", user.ID, "session", conn.ID)

	defer func() {
		h.chat.Disconnect(ctx, conn.ID, user.ID)
		conn.Close()
		h.log.Info("session ended", "user", user.ID, "session", conn.ID)
	}()

	h.readLoop(ctx, conn)
}

// reject surfaces an error event to the failed connection, then forces
// the disconnect. Other users never observe the attempt.
func (h *Handler) reject(ws *websocket.Conn) {
	deadline := time.Now().Add(h.writeTimeout)
	data, err := encodeEnvelope(contract.OutboundEvent{
		Name:    contract.EventError,
		Payload: contract.ErrorPayload{Message: "authentication failed"},
	})
	if err == nil {
		_ = ws.SetWriteDeadline(deadline)
		_ = ws.WriteMessage(websocket.TextMessage, data)
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"), deadline)
	_ = ws.Close()
}

func (h *Handler) readLoop(ctx context.Context, conn *Connection) {
	sess := session{id: conn.ID, userID: conn.UserID}
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			h.log.Debug("read loop ended", "session", conn.ID, "error", err)
			return
		}

		var envelope contract.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			h.log.Warn("malformed envelope, ignoring", "session", conn.ID, "error", err)
			continue
		}
		// Independent goroutine per event: a slow store operation on
		// one event must not stall the connection's other events.
		go h.dispatch(ctx, sess, envelope)
	}
}

func (h *Handler) dispatch(ctx context.Context, sess session, envelope contract.Envelope) {
	var err error

	switch envelope.Event {
	case contract.EventMessagePage:
		var payload contract.MessagePagePayload
		if !h.decode(sess, envelope, &payload) {
			return
		}
		err = h.chat.OpenThread(ctx, sess.id, sess.userID, payload.UserID)

	case contract.EventNewMessage:
		var payload contract.NewMessagePayload
		if !h.decode(sess, envelope, &payload) {
			return
		}
		if payload.Sender != sess.userID {
			err = apperrors.ErrSenderMismatch
			break
		}
		err = h.chat.SendMessage(ctx, domain.SendMessageCommand{
			SenderID:   payload.Sender,
			ReceiverID: payload.Receiver,
			Text:       payload.Text,
			ImageURL:   payload.ImageURL,
			VideoURL:   payload.VideoURL,
		})

	case contract.EventSidebar:
		// The requester is always the session identity; any payload
		// the client sends along is ignored.
		err = h.chat.ListThreads(ctx, sess.id, sess.userID)

	case contract.EventSeen:
		var payload contract.SeenPayload
		if !h.decode(sess, envelope, &payload) {
			return
		}
		err = h.chat.MarkSeen(ctx, sess.userID, payload.UserID)

	case contract.EventSearch:
		var payload contract.SearchPayload
		if !h.decode(sess, envelope, &payload) {
			return
		}
		err = h.chat.Search(ctx, sess.id, domain.SearchCommand{
			RequesterID: sess.userID,
			OtherID:     payload.UserID,
			Terms:       payload.Query,
		})

	default:
		h.log.Warn("unknown inbound event", "session", sess.id, "event", envelope.Event)
		return
	}

	if err != nil {
		// Fire-and-forget contract: the event dies here, the
		// connection and its other events live on.
		h.log.Error("event handling failed",
			"event", envelope.Event, "user", sess.userID, "error", err)
	}
}

func (h *Handler) decode(sess session, envelope contract.Envelope, payload any) bool {
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		h.log.Warn("malformed payload, ignoring",
			"session", sess.id, "event", envelope.Event, "error", err)
		return false
	}
	if err := h.validate.Struct(payload); err != nil {
		h.log.Warn("invalid payload, ignoring",
			"session", sess.id, "event", envelope.Event, "error", err)
		return false
	}
	return true
}
