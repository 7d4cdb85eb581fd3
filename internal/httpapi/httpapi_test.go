package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tourney/internal/docstore/memstore"
	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/replicated"
	"github.com/DoyleJ11/tourney/internal/tournament"
	"github.com/DoyleJ11/tourney/internal/ws"
)

const createBody = `{"creator":"host","gameType":"match","questions":[{"id":"q1","text":"uno","audioUrl":"1.mp3"},{"id":"q2","text":"dos","audioUrl":"2.mp3"}]}`

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(SetupRoutes(hub.NewHub(ctx), deps))
	t.Cleanup(srv.Close)
	return srv
}

func create(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/tournaments", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCreateAndGetTournament(t *testing.T) {
	srv := newTestServer(t, Deps{})

	resp, out := create(t, srv, createBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, hub.ValidCode(out["code"]))
	assert.Equal(t, "host", out["creatorId"])

	get, err := http.Get(srv.URL + "/tournaments/" + out["code"])
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)

	var snap snapshotResponse
	require.NoError(t, json.NewDecoder(get.Body).Decode(&snap))
	assert.Equal(t, out["code"], snap.State.ID)
	assert.Equal(t, tournament.StatusWaiting, snap.State.Status)
	assert.Len(t, snap.State.Questions, 2)
}

func TestCreateTournament_Validation(t *testing.T) {
	srv := newTestServer(t, Deps{})

	cases := map[string]string{
		"bad json":      `{`,
		"no questions":  `{"creator":"host","questions":[]}`,
		"no creator":    `{"questions":[{"id":"q1"}]}`,
		"bad game type": `{"creator":"host","gameType":"chess","questions":[{"id":"q1"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, out := create(t, srv, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestGetTournament_Errors(t *testing.T) {
	srv := newTestServer(t, Deps{})

	resp, err := http.Get(srv.URL + "/tournaments/NOPE00")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/tournaments/bad!")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatorPlaysOverWebsocket(t *testing.T) {
	srv := newTestServer(t, Deps{})
	_, out := create(t, srv, createBody)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := ws.Dial(ctx, srv.URL, out["code"])
	require.NoError(t, err)
	defer conn.Close()

	// the creator binds its connection by joining under the creator name
	require.NoError(t, conn.Send(ctx, protocol.JoinRequest{Name: "host"}))
	require.NoError(t, conn.Send(ctx, protocol.StartRequest{PlayerID: "host"}))

	for {
		m, err := conn.Receive(ctx)
		require.NoError(t, err)
		if su, ok := m.(protocol.StateUpdate); ok && su.State.Status == tournament.StatusPlaying {
			assert.Equal(t, 2, su.Version)
			return
		}
	}
}

func TestListLobby(t *testing.T) {
	client := replicated.NewClient(memstore.New())
	srv := newTestServer(t, Deps{Lobbies: client, LobbyLimit: 20})

	ctx := context.Background()
	qs := []tournament.Question{{ID: "q1", Text: "uno"}}
	open, err := client.Create(ctx, "ana", tournament.GameSpeak, qs)
	require.NoError(t, err)
	started, err := client.Create(ctx, "bo", tournament.GameMatch, qs)
	require.NoError(t, err)
	_, err = client.Start(ctx, started.ID, "bo")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/lobby")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []lobbyEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, open.ID, entries[0].ID)
	assert.Equal(t, "ana", entries[0].CreatorID)
	assert.Equal(t, tournament.GameSpeak, entries[0].GameType)
	assert.Equal(t, 1, entries[0].Players)
}

func TestListLobby_NotMountedWithoutStore(t *testing.T) {
	srv := newTestServer(t, Deps{})
	resp, err := http.Get(srv.URL + "/lobby")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, Deps{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]healthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["hub"].Status)
}

func TestHealthz_FailingCheck(t *testing.T) {
	srv := newTestServer(t, Deps{Checks: map[string]Checker{
		"store": CheckerFunc(func(context.Context) error { return errors.New("down") }),
	}})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var out map[string]healthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "error", out["store"].Status)
	assert.Equal(t, "ok", out["hub"].Status)
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{tournament.ErrValidation, http.StatusBadRequest},
		{tournament.ErrNotFound, http.StatusNotFound},
		{tournament.ErrJoinClosed, http.StatusConflict},
		{tournament.ErrConnection, http.StatusServiceUnavailable},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}
