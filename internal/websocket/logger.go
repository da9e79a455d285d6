package websocket

import (
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketLogger provides structured logging for socket lifecycle events
type WebSocketLogger struct {
	logger *zap.Logger
}

func NewWebSocketLogger(l *logger.Logger) *WebSocketLogger {
	return &WebSocketLogger{
		logger: l.Logger.With(zap.String("component", "websocket")),
	}
}

func (l *WebSocketLogger) fields(event string, userID uuid.UUID, clientID, channel string) []zap.Field {
	return []zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
		zap.String("channel", channel),
	}
}

func (l *WebSocketLogger) Info(event string, userID uuid.UUID, clientID, channel string, fields ...zap.Field) {
	l.logger.Info("websocket_event", append(l.fields(event, userID, clientID, channel), fields...)...)
}

func (l *WebSocketLogger) Warn(event string, userID uuid.UUID, clientID, channel string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", append(l.fields(event, userID, clientID, channel), fields...)...)
}

func (l *WebSocketLogger) Error(event string, userID uuid.UUID, clientID, channel string, err error, fields ...zap.Field) {
	all := append(l.fields(event, userID, clientID, channel), zap.Error(err))
	l.logger.Error("websocket_error", append(all, fields...)...)
}
