package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/listing"
)

func TestConfigured(t *testing.T) {
	t.Parallel()

	assert.False(t, Config{}.Configured())
	assert.False(t, Config{Token: "t"}.Configured())
	assert.False(t, Config{ChatID: "c", Token: "  "}.Configured())
	assert.True(t, Config{Token: "t", ChatID: "c"}.Configured())

	_, err := New(Config{Token: "t"})
	assert.Error(t, err)
}

func TestSendPostsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n, err := New(Config{Token: "123:abc", ChatID: "-10042", APIBase: srv.URL + "/", Timeout: time.Second})
	require.NoError(t, err)

	err = n.Send(context.Background(), listing.Alert{Text: "URGENT\n\nRoom & board"})
	require.NoError(t, err)
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "-10042", gotChat)
	assert.Equal(t, "URGENT\n\nRoom & board", gotText)
}

func TestSendNon2xxIsNotifyError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n, err := New(Config{Token: "t", ChatID: "c", APIBase: srv.URL})
	require.NoError(t, err)

	err = n.Send(context.Background(), listing.Alert{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	kind, ok := apperrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindNotify, kind)
}

func TestSendTransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	n, err := New(Config{Token: "secret-token", ChatID: "c", APIBase: base, Timeout: time.Second})
	require.NoError(t, err)

	err = n.Send(context.Background(), listing.Alert{Text: "x"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}
