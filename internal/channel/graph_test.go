// ABOUTME: Tests for the Graph Send API adapter
// ABOUTME: Uses httptest to verify request shape, error surfacing and retries

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphAdapter_Deliver(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody graphSendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"recipient_id":"psid-1","message_id":"mid.1"}`))
	}))
	defer srv.Close()

	a, err := NewGraphAdapter(GraphConfig{
		Channel:     "instagram",
		BaseURL:     srv.URL,
		PageID:      "page-9",
		AccessToken: "tok",
	}, srv.Client(), nil)
	require.NoError(t, err)

	require.NoError(t, a.Deliver(context.Background(), "psid-1", "Thanks for reaching out"))

	assert.Equal(t, "/v21.0/page-9/messages", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "psid-1", gotBody.Recipient.ID)
	assert.Equal(t, "Thanks for reaching out", gotBody.Message.Text)
	assert.Equal(t, "RESPONSE", gotBody.MessagingType)
}

func TestGraphAdapter_SurfacesProviderError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"(#551) This person isn't available right now.","type":"OAuthException","code":551}}`))
	}))
	defer srv.Close()

	a, err := NewGraphAdapter(GraphConfig{
		Channel: "facebook", BaseURL: srv.URL, PageID: "p", AccessToken: "t", MaxAttempts: 3,
	}, srv.Client(), nil)
	require.NoError(t, err)

	err = a.Deliver(context.Background(), "psid", "hi")
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "facebook", de.Channel)
	assert.Equal(t, "(#551) This person isn't available right now.", de.Reason)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}

func TestGraphAdapter_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a, err := NewGraphAdapter(GraphConfig{
		Channel: "messenger", BaseURL: srv.URL, PageID: "p", AccessToken: "t",
		MaxAttempts: 3, Backoff: time.Millisecond,
	}, srv.Client(), nil)
	require.NoError(t, err)

	require.NoError(t, a.Deliver(context.Background(), "psid", "hi"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGraphAdapter_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a, err := NewGraphAdapter(GraphConfig{
		Channel: "messenger", BaseURL: srv.URL, PageID: "p", AccessToken: "t",
		MaxAttempts: 2, Backoff: time.Millisecond,
	}, srv.Client(), nil)
	require.NoError(t, err)

	err = a.Deliver(context.Background(), "psid", "hi")
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "HTTP 502", de.Reason)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGraphAdapter_CancelDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := NewGraphAdapter(GraphConfig{
		Channel: "messenger", BaseURL: srv.URL, PageID: "p", AccessToken: "t",
		MaxAttempts: 3, Backoff: time.Hour,
	}, srv.Client(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = a.Deliver(ctx, "psid", "hi")
	assert.Less(t, time.Since(start), 5*time.Second, "backoff wait stops on cancel")

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestNewGraphAdapter_RequiresCredentials(t *testing.T) {
	_, err := NewGraphAdapter(GraphConfig{AccessToken: "t"}, nil, nil)
	assert.Error(t, err)

	_, err = NewGraphAdapter(GraphConfig{PageID: "p"}, nil, nil)
	assert.Error(t, err)
}
