package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameBytes  = 64 * 1024
	sendMessageErr = "Failed to send message"
)

// Authenticate maps a bearer token to a user id.
type Authenticate func(token string) (string, error)

// MessageSender sends a Messenger reply on behalf of a user from the user's
// connected fanpage and stores it.
type MessageSender interface {
	SendAsOwner(ctx context.Context, userId string, data SendMessageData) (*model.Message, error)
}

type SocketHandler struct {
	hub          *Hub
	authenticate Authenticate
	sender       MessageSender
	upgrader     websocket.Upgrader
}

// NewSocketHandler builds the /socket endpoint. allowedOrigin empty accepts
// any origin.
func NewSocketHandler(hub *Hub, authenticate Authenticate, sender MessageSender, allowedOrigin string) *SocketHandler {
	return &SocketHandler{
		hub:          hub,
		authenticate: authenticate,
		sender:       sender,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// Handle authenticates before upgrading, an unauthenticated client never gets
// a websocket.
func (s *SocketHandler) Handle(c *gin.Context) {
	token := tokenFromRequest(c.Request)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Authentication error"})
		return
	}
	userId, err := s.authenticate(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Authentication error"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		Log.WithField("user_id", userId).Warn("websocket upgrade failed: ", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := s.hub.Join(ctx, userId)
	Log.WithFields(map[string]interface{}{"user_id": userId, "conn_id": conn.Id}).Infoln("client connected")

	go s.writeLoop(ctx, cancel, ws, conn)
	s.readLoop(ctx, cancel, ws, conn)
	Log.WithFields(map[string]interface{}{"user_id": userId, "conn_id": conn.Id}).Infoln("client disconnected")
}

func (s *SocketHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-conn.Send():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *SocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, conn *Conn) {
	defer cancel()

	ws.SetReadLimit(maxFrameBytes)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.WithField("conn_id", conn.Id).Infoln("websocket closed: ", err)
			}
			return
		}
		s.dispatch(ctx, conn, frame)
	}
}

func (s *SocketHandler) dispatch(ctx context.Context, conn *Conn, frame Frame) {
	switch frame.Event {
	case ClientMessageSend:
		s.onMessageSend(ctx, conn, frame.Data)
	case ClientTypingStart:
		s.onTyping(conn, frame.Data, EventTypingStarted)
	case ClientTypingStop:
		s.onTyping(conn, frame.Data, EventTypingStopped)
	default:
		Log.WithFields(map[string]interface{}{"conn_id": conn.Id, "event": frame.Event}).Debug("ignoring unknown client event")
	}
}

func (s *SocketHandler) onMessageSend(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var data SendMessageData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationId == "" || data.Message == "" {
		s.hub.emitToConn(conn, EventError, ErrorPayload{Message: sendMessageErr})
		return
	}

	msg, err := s.sender.SendAsOwner(ctx, conn.UserId, data)
	if err != nil {
		Log.WithFields(map[string]interface{}{"user_id": conn.UserId, "conversation_id": data.ConversationId}).
			Errorln("socket message send failed: ", err)
		message := sendMessageErr
		if e, ok := apperr.As(err); ok && e.Kind != apperr.KindInternal {
			message = e.Message
		}
		s.hub.emitToConn(conn, EventError, ErrorPayload{Message: message})
		return
	}

	if data.RecipientId != "" {
		s.hub.EmitToUser(data.RecipientId, EventMessageReceived, MessagePayload{
			SenderId:       conn.UserId,
			ConversationId: data.ConversationId,
			FanpageId:      msg.FanpageID,
			MessageId:      msg.MessageId,
			Message:        msg.Body,
			Timestamp:      msg.CreatedTime,
		})
	}
}

func (s *SocketHandler) onTyping(conn *Conn, raw json.RawMessage, event string) {
	var data TypingData
	if err := json.Unmarshal(raw, &data); err != nil || data.RecipientId == "" {
		return
	}
	s.hub.EmitToUser(data.RecipientId, event, TypingPayload{SenderId: conn.UserId})
}
