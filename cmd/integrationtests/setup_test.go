package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"antique-auction/internal/auth"
	bidding "antique-auction/internal/biddingService"
	"antique-auction/internal/clock"
	"antique-auction/internal/realtime"
	"antique-auction/internal/repository"
	"antique-auction/internal/scheduler"
	"antique-auction/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	testSecret = "integration-secret"
	// short enough that lifecycle tests finish quickly on the real clock
	testEndingSoonLead = 150 * time.Millisecond
)

// TestEnv is a full server over the in-memory store, listening on a real port
// so websocket clients can connect to it.
type TestEnv struct {
	Server   *httptest.Server
	Service  *bidding.BiddingService
	Sched    *scheduler.Scheduler
	Verifier *auth.Verifier
}

// SetupTestEnv wires the same components main does, minus the external brokers.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clk := clock.New()
	hub := realtime.NewHub(ctx, 0)
	svc := bidding.NewBiddingService(repository.NewMemoryRepo(),
		bidding.WithPublisher(hub),
		bidding.WithClock(clk),
		bidding.WithEndingSoonLead(testEndingSoonLead),
	)
	sched := scheduler.New(svc, clk, testEndingSoonLead)
	t.Cleanup(sched.Stop)

	verifier := auth.NewVerifier(testSecret)
	router := server.SetupRouter(server.Deps{
		Service:       svc,
		Tracker:       sched,
		Hub:           hub,
		Verifier:      verifier,
		BidsPerMinute: 1000,
		WSReadTimeout: 5 * time.Second,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &TestEnv{Server: srv, Service: svc, Sched: sched, Verifier: verifier}
}

// Token issues a bearer token for userID
func (e *TestEnv) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.Verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// ExecuteRequestAndParse sends a JSON request as userID (anonymous when empty)
// and decodes the response envelope.
func (e *TestEnv) ExecuteRequestAndParse(t *testing.T, method, path, userID string, body any) (map[string]any, int) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	token := ""
	if userID != "" {
		token = e.Token(t, userID)
	}
	parsed, code, err := e.do(method, path, token, reqBody)
	require.NoError(t, err)
	return parsed, code
}

// do performs the request without touching t, so goroutines can use it
func (e *TestEnv) do(method, path, token string, body []byte) (map[string]any, int, error) {
	req, err := http.NewRequest(method, e.Server.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.Server.Client().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return parsed, resp.StatusCode, nil
}

// CreateAuction creates an auction through the API and returns its id
func (e *TestEnv) CreateAuction(t *testing.T, itemID, startingBid string, start, end time.Time) string {
	t.Helper()
	resp, code := e.ExecuteRequestAndParse(t, http.MethodPost, "/auctions", "seller", map[string]any{
		"item_id":      itemID,
		"title":        "Lot " + itemID,
		"starting_bid": startingBid,
		"start_time":   start.UTC().Format(time.RFC3339Nano),
		"end_time":     end.UTC().Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusCreated, code, resp)
	return resp["data"].(map[string]any)["auction_id"].(string)
}

type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DialWS opens an authenticated websocket as userID
func (e *TestEnv) DialWS(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(e.Server.URL, "http") + "/ws?token=" + e.Token(t, userID)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func wsSend(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

// wsReadUntil skips frames until one of the wanted type arrives
func wsReadUntil(t *testing.T, conn *websocket.Conn, typ string) wsFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var f wsFrame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for %s", typ)
		if f.Type == typ {
			return f
		}
	}
}

func wsJoin(t *testing.T, conn *websocket.Conn, auctionID string) wsFrame {
	t.Helper()
	wsSend(t, conn, map[string]any{"type": "join_auction", "auctionId": auctionID})
	return wsReadUntil(t, conn, "joined")
}
