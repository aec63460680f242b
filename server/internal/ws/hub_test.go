package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/store"
	wsHub "github.com/plantlens/plantlens/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

type envelope struct {
	Event   string          `json:"event"`
	Dataset string          `json:"dataset"`
	Data    json.RawMessage `json:"data"`
}

func newStore(t *testing.T, ids ...string) *store.Store {
	t.Helper()
	st := store.New(time.Hour, 0)
	for _, id := range ids {
		if err := st.Put(id, []types.Row{{"entity_id": "M1"}}); err != nil {
			t.Fatalf("Put(%q): %v", id, err)
		}
	}
	return st
}

func report(id string) *types.Report {
	return &types.Report{
		ID:        id,
		Scope:     types.ScopeSingleFacility,
		Dimension: types.FieldEntityID,
		Benchmark: 0.09,
		Groups:    []types.Group{{Key: "M1", MeanOEE: 0.8, Rank: 1}},
	}
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// URL, the hub, and a cancel function.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads messages from conn until one with the given event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage waiting for %q: %v", event, err)
		}
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("unmarshal %s: %v", msg, err)
		}
		if env.Event == event {
			return env
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ------------------------------------------------------------------

func TestHub_SendsDatasetsOnConnect(t *testing.T) {
	url, _, _ := startHub(t, newStore(t, "line-a", "line-b"))
	conn := dial(t, url)

	env := readEvent(t, conn, wsHub.EventDatasets)
	var infos []store.Info
	if err := json.Unmarshal(env.Data, &infos); err != nil {
		t.Fatalf("unmarshal datasets: %v", err)
	}
	if len(infos) != 2 || infos[0].ID != "line-a" || infos[1].ID != "line-b" {
		t.Errorf("datasets = %+v, want line-a and line-b", infos)
	}
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	url, hub, _ := startHub(t, newStore(t, "line-a"))
	c1 := dial(t, url)
	c2 := dial(t, url)
	waitFor(t, "two clients", func() bool { return hub.Count() == 2 })

	hub.Publish("line-a", report("r-1"))

	for i, conn := range []*websocket.Conn{c1, c2} {
		env := readEvent(t, conn, wsHub.EventReport)
		if env.Dataset != "line-a" {
			t.Errorf("client %d: dataset = %q, want line-a", i, env.Dataset)
		}
		var r types.Report
		if err := json.Unmarshal(env.Data, &r); err != nil {
			t.Fatalf("client %d: unmarshal report: %v", i, err)
		}
		if r.ID != "r-1" || len(r.Groups) != 1 || r.Groups[0].Key != "M1" {
			t.Errorf("client %d: report = %+v", i, r)
		}
	}
}

func TestHub_LateClientGetsLatestReport(t *testing.T) {
	url, hub, _ := startHub(t, newStore(t, "line-a"))

	hub.Publish("line-a", report("old"))
	hub.Publish("line-a", report("new"))

	conn := dial(t, url)
	env := readEvent(t, conn, wsHub.EventReport)
	var r types.Report
	if err := json.Unmarshal(env.Data, &r); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if r.ID != "new" {
		t.Errorf("catch-up report = %q, want new", r.ID)
	}
}

func TestHub_ForgetDropsCatchUp(t *testing.T) {
	url, hub, _ := startHub(t, newStore(t))

	hub.Publish("gone", report("r-1"))
	hub.Forget("gone")

	conn := dial(t, url)
	readEvent(t, conn, wsHub.EventDatasets)

	// Nothing but dataset ticks should follow.
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env envelope
		if err := json.Unmarshal(msg, &env); err == nil && env.Event == wsHub.EventReport {
			t.Fatalf("got report after Forget: %s", msg)
		}
	}
}

func TestHub_PeriodicDatasets(t *testing.T) {
	st := newStore(t)
	url, _, _ := startHub(t, st)
	conn := dial(t, url)
	readEvent(t, conn, wsHub.EventDatasets)

	if err := st.Put("fresh", []types.Row{{"entity_id": "M1"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env := readEvent(t, conn, wsHub.EventDatasets)
		var infos []store.Info
		if err := json.Unmarshal(env.Data, &infos); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(infos) == 1 && infos[0].ID == "fresh" {
			return
		}
	}
	t.Fatal("ticker never broadcast the new dataset")
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	url, hub, _ := startHub(t, newStore(t))
	conn := dial(t, url)
	waitFor(t, "client registered", func() bool { return hub.Count() == 1 })

	conn.Close()
	waitFor(t, "client unregistered", func() bool { return hub.Count() == 0 })
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	url, hub, cancel := startHub(t, newStore(t))
	conn := dial(t, url)
	waitFor(t, "client registered", func() bool { return hub.Count() == 1 })

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after shutdown = %d, want 0", n)
	}
}
