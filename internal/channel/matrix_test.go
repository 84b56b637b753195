// ABOUTME: Tests for the Matrix adapter using a fake mautrix sender

package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

type fakeTextSender struct {
	roomID id.RoomID
	text   string
	err    error
}

func (f *fakeTextSender) SendText(ctx context.Context, roomID id.RoomID, text string) (*mautrix.RespSendEvent, error) {
	f.roomID = roomID
	f.text = text
	if f.err != nil {
		return nil, f.err
	}
	return &mautrix.RespSendEvent{EventID: "$event1"}, nil
}

func TestMatrixAdapter_Deliver(t *testing.T) {
	sender := &fakeTextSender{}
	a := newMatrixAdapter("matrix", sender, nil)

	require.NoError(t, a.Deliver(context.Background(), "!room:example.org", "hello"))
	assert.Equal(t, id.RoomID("!room:example.org"), sender.roomID)
	assert.Equal(t, "hello", sender.text)
}

func TestMatrixAdapter_Failure(t *testing.T) {
	a := newMatrixAdapter("matrix", &fakeTextSender{err: errors.New("M_FORBIDDEN: not in room")}, nil)

	err := a.Deliver(context.Background(), "!room:example.org", "hello")
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "M_FORBIDDEN: not in room", de.Reason)
}

func TestNewMatrixAdapter_RequiresCredentials(t *testing.T) {
	_, err := NewMatrixAdapter("matrix", "https://matrix.example.org", "", "tok", nil)
	assert.Error(t, err)
}
