package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"financing_api/types"
)

const (
	SubjectSessionCompleted = "verification.session.completed"
	SubjectRequestDecided   = "financing.request.decided"
)

// Publisher pushes terminal-state events out. Consumers are advisory: the
// agent UI still polls, and the state machines do not depend on delivery.
type Publisher interface {
	PublishSessionCompleted(ctx context.Context, session *types.VerificationSession) error
	PublishRequestDecided(ctx context.Context, request *types.FinancingRequest) error
	SubscribeToSessionCompleted(ctx context.Context, handler func(*SessionCompletedMessage)) error
	Close()
}

type natsClient struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSClient(url string, logger *zap.Logger) (Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return &natsClient{
		conn:   conn,
		logger: logger,
	}, nil
}

type SessionCompletedMessage struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Passed    bool   `json:"passed"`
	Error     string `json:"error,omitempty"`
}

type RequestDecidedMessage struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	ClientID  string `json:"client_id,omitempty"`
}

func (c *natsClient) PublishSessionCompleted(ctx context.Context, session *types.VerificationSession) error {
	msg := SessionCompletedMessage{
		SessionID: session.ID,
		Status:    string(session.Status),
	}
	if session.Result != nil {
		msg.Passed = session.Result.Passed
	}
	if session.FailureReason != nil {
		msg.Error = *session.FailureReason
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal session completed message", zap.Error(err))
		return fmt.Errorf("failed to marshal session completed message: %w", err)
	}

	err = c.conn.Publish(SubjectSessionCompleted, data)
	if err != nil {
		c.logger.Error("failed to publish session completed message", zap.Error(err), zap.String("session_id", session.ID))
		return fmt.Errorf("failed to publish session completed message: %w", err)
	}

	c.logger.Info("session completed message published", zap.String("session_id", session.ID), zap.String("status", string(session.Status)))
	return nil
}

func (c *natsClient) PublishRequestDecided(ctx context.Context, request *types.FinancingRequest) error {
	msg := RequestDecidedMessage{
		RequestID: request.ID,
		Status:    string(request.Status),
	}
	if request.ClientID != nil {
		msg.ClientID = *request.ClientID
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal request decided message", zap.Error(err))
		return fmt.Errorf("failed to marshal request decided message: %w", err)
	}

	err = c.conn.Publish(SubjectRequestDecided, data)
	if err != nil {
		c.logger.Error("failed to publish request decided message", zap.Error(err), zap.String("request_id", request.ID))
		return fmt.Errorf("failed to publish request decided message: %w", err)
	}

	c.logger.Info("request decided message published", zap.String("request_id", request.ID), zap.String("status", string(request.Status)))
	return nil
}

func (c *natsClient) SubscribeToSessionCompleted(ctx context.Context, handler func(*SessionCompletedMessage)) error {
	_, err := c.conn.Subscribe(SubjectSessionCompleted, func(msg *nats.Msg) {
		var completedMsg SessionCompletedMessage
		if err := json.Unmarshal(msg.Data, &completedMsg); err != nil {
			c.logger.Error("failed to unmarshal session completed message", zap.Error(err))
			return
		}

		handler(&completedMsg)
		c.logger.Info("session completed message processed", zap.String("session_id", completedMsg.SessionID), zap.String("status", completedMsg.Status))
	})

	if err != nil {
		c.logger.Error("failed to subscribe to session completed", zap.Error(err))
		return fmt.Errorf("failed to subscribe to session completed: %w", err)
	}

	c.logger.Info("subscribed to session completed messages")
	return nil
}

func (c *natsClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.logger.Info("NATS connection closed")
	}
}
