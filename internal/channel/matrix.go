// ABOUTME: Matrix adapter delivering replies into rooms via mautrix
// ABOUTME: The recipient ID is the Matrix room ID

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// textSender is the slice of *mautrix.Client the adapter needs.
type textSender interface {
	SendText(ctx context.Context, roomID id.RoomID, text string) (*mautrix.RespSendEvent, error)
}

// MatrixAdapter sends plain-text messages to Matrix rooms.
type MatrixAdapter struct {
	channel string
	client  textSender
	logger  *slog.Logger
}

// NewMatrixAdapter logs in with an access token. No sync loop is started;
// the adapter only sends.
func NewMatrixAdapter(channel, homeserver, userID, accessToken string, logger *slog.Logger) (*MatrixAdapter, error) {
	if homeserver == "" || userID == "" || accessToken == "" {
		return nil, errors.New("matrix adapter: homeserver, user_id and access_token required")
	}

	client, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	return newMatrixAdapter(channel, client, logger), nil
}

func newMatrixAdapter(channel string, client textSender, logger *slog.Logger) *MatrixAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatrixAdapter{
		channel: channel,
		client:  client,
		logger:  logger.With("component", "matrix", "channel", channel),
	}
}

// Deliver sends body to the room identified by recipientID.
func (a *MatrixAdapter) Deliver(ctx context.Context, recipientID, body string) error {
	resp, err := a.client.SendText(ctx, id.RoomID(recipientID), body)
	if err != nil {
		return &DeliveryError{Channel: a.channel, Reason: err.Error(), Err: err}
	}

	a.logger.Debug("message delivered", "room_id", recipientID, "event_id", resp.EventID)
	return nil
}
