package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/codecraft-edu/comms-backend/internal/config"
	"github.com/codecraft-edu/comms-backend/internal/domain"
	"github.com/codecraft-edu/comms-backend/internal/repo"
	"github.com/codecraft-edu/comms-backend/internal/ws"
	"gorm.io/gorm"
)

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/comms",
		RateRPS:     1000,
		RateBurst:   1000,
		WS: config.WSConfig{
			ReadLimit:      4 << 10,
			SendBuffer:     32,
			WriteWait:      2 * time.Second,
			PongWait:       10 * time.Second,
			PingPeriod:     9 * time.Second,
			AllowAnonymous: true,
		},
		OTEL: config.OTELConfig{ServiceName: "comms-backend-test"},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := []domain.User{
		{ID: 3, Username: "nina", FirstName: "nina", LastName: "petrova", UserType: domain.UserTypeStudent},
		{ID: 7, Username: "omar", FirstName: "omar", LastName: "haddad", UserType: domain.UserTypeTeacher},
	}
	for i := range users {
		if err := db.Create(&users[i]).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	tokens := []domain.Token{
		{Key: "key-nina", UserID: 3},
		{Key: "key-omar", UserID: 7},
	}
	for i := range tokens {
		if err := db.Create(&tokens[i]).Error; err != nil {
			t.Fatalf("seed token: %v", err)
		}
	}

	r := gin.New()
	RegisterRoutes(r, db, ws.NewMemoryBroker(), testConfig())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, db
}

func authedGet(t *testing.T, srv *httptest.Server, path, key string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if key != "" {
		req.Header.Set("Authorization", "Token "+key)
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/health", "/metrics"} {
		resp := authedGet(t, srv, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestRouter_UnknownRouteEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := authedGet(t, srv, "/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "not_found" {
		t.Errorf("code = %v, want not_found", body["code"])
	}
}

func TestRouter_HistoryEndToEnd(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	room, err := repo.GetOrCreateRoom(ctx, db, 7, 3)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, content := range []string{"hello", "how is the assignment going"} {
		if _, err := repo.CreateMessage(ctx, db, room.ID, 7, content); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	// Unauthenticated request is rejected before reaching the handler.
	if resp := authedGet(t, srv, "/comms/chat/"+room.ID, "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", resp.StatusCode)
	}

	resp := authedGet(t, srv, "/comms/chat/"+room.ID, "key-nina", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag header")
	}

	var history struct {
		Messages []struct {
			Content string `json:"content"`
			Sender  uint   `json:"sender"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history.Messages) != 2 {
		t.Fatalf("len = %d, want 2", len(history.Messages))
	}
	if history.Messages[0].Content != "hello" || history.Messages[0].Sender != 7 {
		t.Errorf("first message = %+v", history.Messages[0])
	}

	// Conditional re-read returns 304 until a new message lands.
	inm := http.Header{"If-None-Match": []string{etag}}
	if resp := authedGet(t, srv, "/comms/chat/"+room.ID, "key-nina", inm); resp.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional: status = %d, want 304", resp.StatusCode)
	}
	if _, err := repo.CreateMessage(ctx, db, room.ID, 3, "fine!"); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if resp := authedGet(t, srv, "/comms/chat/"+room.ID, "key-nina", inm); resp.StatusCode != http.StatusOK {
		t.Fatalf("after write: status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_SearchEndToEnd(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	room, err := repo.GetOrCreateRoom(ctx, db, 3, 7)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, content := range []string{"the exam is friday", "see you at lunch"} {
		if _, err := repo.CreateMessage(ctx, db, room.ID, 3, content); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	resp := authedGet(t, srv, "/comms/chat/"+room.ID+"/search?q=exam", "key-omar", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Results []struct {
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 1 || !strings.Contains(body.Results[0].Snippet, "exam") {
		t.Fatalf("results = %+v", body.Results)
	}
}

func TestRouter_WebSocketMount(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/3?token=key-omar"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %v)", err, resp)
	}
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"msg":"over the full stack"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out ws.OutboundMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	if out.Content != "over the full stack" || out.Sender != 7 {
		t.Fatalf("out = %+v", out)
	}

	// The handshake created the pair room; the message was persisted.
	room, err := repo.GetOrCreateRoom(ctx, db, 3, 7)
	if err != nil {
		t.Fatalf("room lookup: %v", err)
	}
	waitMessages(t, db, room.ID, 1)
}

// waitMessages polls until the room holds n messages, failing after a bound.
// The WS pipeline persists asynchronously relative to the test goroutine.
func waitMessages(t *testing.T, db *gorm.DB, roomID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		count, err := repo.CountMessages(context.Background(), db, roomID)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if int(count) == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("room %s: %d messages, want %d", roomID, count, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
