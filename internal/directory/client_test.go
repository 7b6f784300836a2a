package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gameontext/gameon-room-go/internal/config"
	"github.com/gameontext/gameon-room-go/internal/room"
	"github.com/gameontext/gameon-room-go/internal/signing"
)

func testDescriptor() room.Descriptor {
	return room.Descriptor{
		Name:        "SimpleRoom",
		FullName:    "A Very Simple Room.",
		Description: "Nothing to do here.",
		Doors: map[string]string{
			"n": "A Large doorway to the north",
			"s": "A winding path leading off to the south",
		},
	}
}

func testClient(url string) *Client {
	c := NewClient(config.DirectoryConfig{
		Enabled:     true,
		URL:         url,
		OwnerID:     "dummy.DevUser",
		Key:         "sfP8wMcjTPyt8I71Gl6o0j+wnMdwxEQ3r0VaybsSn0c=",
		CallbackURL: "ws://simpleroom:9080/room",
		Timeout:     5 * time.Second,
	}, zap.NewNop())
	c.now = func() time.Time { return time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestEnsureRegistered_AlreadyRegistered(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "SimpleRoom", r.URL.Query().Get("name"))
			assert.Equal(t, "dummy.DevUser", r.URL.Query().Get("owner"))
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			posts++
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	require.NoError(t, c.EnsureRegistered(context.Background(), testDescriptor()))
	assert.Zero(t, posts, "a room the directory already knows must not be re-registered")
}

func TestEnsureRegistered_RegistersWithSignedHeaders(t *testing.T) {
	type captured struct {
		headers http.Header
		body    []byte
	}
	var got captured

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			got = captured{headers: r.Header.Clone(), body: body}
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	require.NoError(t, c.EnsureRegistered(context.Background(), testDescriptor()))
	require.NotNil(t, got.body)

	// Body carries the descriptor plus the websocket connection details.
	var payload struct {
		Name              string            `json:"name"`
		FullName          string            `json:"fullName"`
		Description       string            `json:"description"`
		Doors             map[string]string `json:"doors"`
		ConnectionDetails struct {
			Type   string `json:"type"`
			Target string `json:"target"`
		} `json:"connectionDetails"`
	}
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "SimpleRoom", payload.Name)
	assert.Equal(t, "websocket", payload.ConnectionDetails.Type)
	assert.Equal(t, "ws://simpleroom:9080/room", payload.ConnectionDetails.Target)
	assert.Equal(t, "A Large doorway to the north", payload.Doors["n"])

	// The signature headers must verify against the body actually sent.
	assert.Equal(t, "dummy.DevUser", got.headers.Get("gameon-id"))
	assert.Equal(t, "2016-01-01T00:00:00Z", got.headers.Get("gameon-date"))

	wantHash := signing.HashBody(string(got.body))
	assert.Equal(t, wantHash, got.headers.Get("gameon-sig-body"))

	wantSig := signing.Sign(
		[]string{"dummy.DevUser", "2016-01-01T00:00:00Z", wantHash},
		"sfP8wMcjTPyt8I71Gl6o0j+wnMdwxEQ3r0VaybsSn0c=",
	)
	assert.Equal(t, wantSig, got.headers.Get("gameon-signature"))
}

func TestEnsureRegistered_RegistrationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, "signature mismatch", http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	err := c.EnsureRegistered(context.Background(), testDescriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestEnsureRegistered_DirectoryUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately: nothing is listening any more

	c := testClient(srv.URL)
	err := c.EnsureRegistered(context.Background(), testDescriptor())
	require.Error(t, err, "an unreachable directory is a handshake failure, not a panic")
	assert.Contains(t, err.Error(), "directory lookup")
}

func TestEnsureRegistered_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(srv.URL)
	assert.Error(t, c.EnsureRegistered(ctx, testDescriptor()))
}
