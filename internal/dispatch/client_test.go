package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/reconciler"
)

// fakeManager is a minimal in-memory manager API: JWT login plus the
// channel and stream endpoints the facade uses.
type fakeManager struct {
	t *testing.T

	validToken string
	logins     atomic.Int64

	channels map[int]wireChannel
	nextID   int
	streams  map[string][]Stream
	epgLinks map[string]string
}

func newFakeManager(t *testing.T) *fakeManager {
	return &fakeManager{
		t:          t,
		validToken: "tok-1",
		channels:   map[int]wireChannel{},
		streams:    map[string][]Stream{},
		epgLinks:   map[string]string{},
	}
}

func (f *fakeManager) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/accounts/token/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin" || creds["password"] != "hunter2" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		f.logins.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"access": f.validToken})
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+f.validToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			assert.NotEmpty(f.t, r.Header.Get("X-Request-ID"))
			next(w, r)
		}
	}

	mux.HandleFunc("GET /api/channels/channels/", authed(func(w http.ResponseWriter, r *http.Request) {
		out := make([]wireChannel, 0, len(f.channels))
		for _, ch := range f.channels {
			out = append(out, ch)
		}
		json.NewEncoder(w).Encode(out)
	}))
	mux.HandleFunc("POST /api/channels/channels/", authed(func(w http.ResponseWriter, r *http.Request) {
		var ch wireChannel
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&ch))
		f.nextID++
		ch.ID = f.nextID
		f.channels[ch.ID] = ch
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(ch)
	}))
	mux.HandleFunc("DELETE /api/channels/channels/{id}/", authed(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		if _, ok := f.channels[id]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		delete(f.channels, id)
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("POST /api/channels/channels/{id}/epg/", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.epgLinks[r.PathValue("id")] = body["tvg_id"]
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	mux.HandleFunc("GET /api/channels/streams/", authed(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(f.streams[r.URL.Query().Get("channel_group")])
	}))
	return mux
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	c := NewClient(Config{
		BaseURL:           srv.URL,
		Username:          "admin",
		Password:          "hunter2",
		RequestsPerSecond: 1000,
	}, zerolog.Nop())
	c.http = srv.Client()
	return c
}

func TestCreateListDeleteChannel(t *testing.T) {
	mgr := newFakeManager(t)
	srv := httptest.NewServer(mgr.handler())
	defer srv.Close()
	c := newTestClient(t, srv)

	id, err := c.CreateChannel(t.Context(), reconciler.ChannelSpec{
		Name: "NYG @ NE", Number: 500, Group: "Teamarr NFL", Profile: "hd",
		StreamIDs: []string{"11", "12"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	require.NoError(t, c.SetChannelEPG(t.Context(), id, "nflgrp.401772821"))
	assert.Equal(t, "nflgrp.401772821", mgr.epgLinks["1"])

	got, err := c.ListChannels(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, reconciler.ManagerChannel{
		ID: "1", Name: "NYG @ NE", Number: 500, Group: "Teamarr NFL", Profile: "hd",
	}, got[0])

	require.NoError(t, c.DeleteChannel(t.Context(), id))
	got, err = c.ListChannels(t.Context())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpiredTokenIsRefreshedOnce(t *testing.T) {
	mgr := newFakeManager(t)
	srv := httptest.NewServer(mgr.handler())
	defer srv.Close()
	c := newTestClient(t, srv)

	_, err := c.ListChannels(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), mgr.logins.Load())

	// The manager rotates its secret; the stale client token now 401s.
	mgr.validToken = "tok-2"
	_, err = c.ListChannels(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), mgr.logins.Load())
	assert.Equal(t, "tok-2", c.currentToken())
}

func TestBadCredentialsSurfaceStatusError(t *testing.T) {
	mgr := newFakeManager(t)
	srv := httptest.NewServer(mgr.handler())
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Username: "admin", Password: "wrong", RequestsPerSecond: 1000}, zerolog.Nop())
	c.http = srv.Client()

	_, err := c.ListChannels(t.Context())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestNonNumericStreamIDRejectedClientSide(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused", Username: "a", Password: "b"}, zerolog.Nop())
	_, err := c.CreateChannel(t.Context(), reconciler.ChannelSpec{Name: "x", StreamIDs: []string{"not-a-number"}})
	assert.ErrorContains(t, err, "not numeric")
}

func TestSourcePrefersManagerGroup(t *testing.T) {
	mgr := newFakeManager(t)
	mgr.streams["NFL Games"] = []Stream{
		{ID: 11, Name: "Giants at Patriots", Group: "NFL Games"},
		{ID: 12, Name: "Eagles at Cowboys", Group: "NFL Games"},
	}
	srv := httptest.NewServer(mgr.handler())
	defer srv.Close()

	src := NewSource(newTestClient(t, srv))
	group := &epg.EventGroup{ID: "nflgrp", Name: "NFL Games", M3UGroup: "NFL Games"}

	streams, err := src.Streams(t.Context(), group)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "nflgrp", streams[0].GroupID)
	assert.Equal(t, "11", streams[0].StreamID)
	assert.Equal(t, "Giants at Patriots", streams[0].Name)
}

func TestSourceFallsBackToDirectPlaylist(t *testing.T) {
	playlist := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXTINF:-1 group-title=\"UFC\",UFC 311 Prelims\nhttp://host/s/1\n"))
	}))
	defer playlist.Close()

	src := &Source{http: playlist.Client()}
	group := &epg.EventGroup{ID: "ufcgrp", Name: "UFC", M3UURL: playlist.URL}

	streams, err := src.Streams(t.Context(), group)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	assert.Equal(t, "UFC 311 Prelims", streams[0].Name)

	_, err = src.Streams(t.Context(), &epg.EventGroup{ID: "empty", Name: "Empty"})
	assert.ErrorContains(t, err, "no stream source")
}
