package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lalith-99/areachat/internal/auth"
	"github.com/lalith-99/areachat/internal/event"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/repository/memory"
)

const testSecret = "test-secret"

type testEnv struct {
	srv   *httptest.Server
	hub   *Hub
	users map[string]models.User // keyed by name
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	laura := models.User{ID: "u-jefe", CompanyID: "demo-company", Name: "Laura", Email: "jefe@demo.local", Role: models.RoleBoss, PasswordHash: string(hash)}
	ana := models.User{ID: "u-ana", CompanyID: "demo-company", Name: "Ana", Email: "ana@demo.local", Role: models.RoleEmployee, PasswordHash: string(hash)}
	marco := models.User{ID: "u-marco", CompanyID: "demo-company", Name: "Marco", Email: "marco@demo.local", Role: models.RoleEmployee, PasswordHash: string(hash)}

	users := memory.NewUserStore(laura, ana, marco)
	chatRepo := memory.NewChatStore()
	hub := NewHub(chatRepo, NewMemoryPresence(), zap.NewNop())
	router := NewRouter(Config{JWTSecret: testSecret, TokenTTL: time.Hour, Env: "test"}, chatRepo, users, hub, zap.NewNop())

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return &testEnv{
		srv:   srv,
		hub:   hub,
		users: map[string]models.User{"laura": laura, "ana": ana, "marco": marco},
	}
}

func (e *testEnv) token(t *testing.T, name string) string {
	t.Helper()
	u := e.users[name]
	tok, err := auth.GenerateToken(&u, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (e *testEnv) wsURL(token string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
}

func (e *testEnv) connect(t *testing.T, name string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(e.token(t, name)), nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", name, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one with the given event name arrives,
// skipping everything else (presence churn mostly).
func readUntil(t *testing.T, conn *websocket.Conn, name string) event.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f event.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", name, err)
		}
		if f.Event == name {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, name string, payload any) {
	t.Helper()
	f, err := event.NewFrame(name, payload)
	if err != nil {
		t.Fatalf("build %s frame: %v", name, err)
	}
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestWSHandshakeRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(tt.token), nil)
			if err == nil {
				t.Fatal("handshake succeeded with a bad token")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("handshake response = %+v, want 401", resp)
			}
		})
	}
}

func TestJoinDeliversSnapshotThenDeltas(t *testing.T) {
	env := newTestEnv(t)

	laura := env.connect(t, "laura")
	f := readUntil(t, laura, event.OnlineList)
	var online []models.ID
	if err := f.Decode(&online); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(online) != 1 || online[0] != "u-jefe" {
		t.Fatalf("first joiner snapshot = %v, want [u-jefe]", online)
	}

	ana := env.connect(t, "ana")
	f = readUntil(t, ana, event.OnlineList)
	if err := f.Decode(&online); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(online) != 2 {
		t.Fatalf("second joiner snapshot = %v, want both users", online)
	}

	// The user already there sees a delta, not a new snapshot.
	f = readUntil(t, laura, event.UserOnline)
	var delta event.PresenceDelta
	if err := f.Decode(&delta); err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	if delta.UserID != "u-ana" {
		t.Errorf("usuario-online for %s, want u-ana", delta.UserID)
	}

	ana.Close()
	f = readUntil(t, laura, event.UserOffline)
	if err := f.Decode(&delta); err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	if delta.UserID != "u-ana" {
		t.Errorf("usuario-offline for %s, want u-ana", delta.UserID)
	}
}

func TestGroupMessageReachesEveryoneAndPersists(t *testing.T) {
	env := newTestEnv(t)

	laura := env.connect(t, "laura")
	ana := env.connect(t, "ana")
	readUntil(t, laura, event.OnlineList)
	readUntil(t, ana, event.OnlineList)

	send(t, laura, event.SendGroupMessage, event.GroupMessageSend{Body: "hi"})

	for name, conn := range map[string]*websocket.Conn{"laura": laura, "ana": ana} {
		f := readUntil(t, conn, event.NewGroupMessage)
		var m models.Message
		if err := f.Decode(&m); err != nil {
			t.Fatalf("%s decode message: %v", name, err)
		}
		if m.Body != "hi" || !m.SentBy("u-jefe") {
			t.Errorf("%s got %+v, want body=hi from u-jefe", name, m)
		}
		if m.ID.IsZero() || m.CreatedAt.IsZero() {
			t.Errorf("%s got message without server-assigned id/timestamp", name)
		}
	}

	// And the backlog endpoint serves it afterwards.
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/chat/grupal", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, "ana"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("history request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	var backlog []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&backlog); err != nil {
		t.Fatalf("decode backlog: %v", err)
	}
	if len(backlog) != 1 || backlog[0].Body != "hi" {
		t.Errorf("backlog = %+v, want the one sent message", backlog)
	}
}

func TestEmptyGroupMessageDropped(t *testing.T) {
	env := newTestEnv(t)

	laura := env.connect(t, "laura")
	readUntil(t, laura, event.OnlineList)

	send(t, laura, event.SendGroupMessage, event.GroupMessageSend{Body: "   "})

	laura.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var f event.Frame
	if err := laura.ReadJSON(&f); err == nil {
		t.Fatalf("blank message produced %s frame", f.Event)
	}
}

func TestPrivateMessageDeliveryAndBossInbox(t *testing.T) {
	env := newTestEnv(t)

	laura := env.connect(t, "laura")
	ana := env.connect(t, "ana")
	marco := env.connect(t, "marco")
	readUntil(t, laura, event.OnlineList)
	readUntil(t, ana, event.OnlineList)
	readUntil(t, marco, event.OnlineList)

	send(t, laura, event.SendPrivateMessage, event.PrivateMessageSend{Body: "ven a mi oficina", To: "u-ana"})

	// Both pair members get the message; the recipient of a boss message
	// gets the inbox event on top.
	var m models.Message
	f := readUntil(t, ana, event.NewPrivateMessage)
	if err := f.Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Body != "ven a mi oficina" || m.RecipientID != "u-ana" {
		t.Errorf("ana got %+v", m)
	}
	f = readUntil(t, ana, event.NewBossMessage)
	if err := f.Decode(&m); err != nil {
		t.Fatalf("decode boss message: %v", err)
	}
	if m.RecipientID != "u-ana" {
		t.Errorf("boss message addressed to %s, want u-ana", m.RecipientID)
	}

	readUntil(t, laura, event.NewPrivateMessage)

	// A third party sees none of it.
	marco.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var stray event.Frame
	if err := marco.ReadJSON(&stray); err == nil {
		t.Fatalf("third party received %s frame", stray.Event)
	}
}

func TestEmployeePrivateMessageHasNoInboxEvent(t *testing.T) {
	env := newTestEnv(t)

	ana := env.connect(t, "ana")
	marco := env.connect(t, "marco")
	readUntil(t, ana, event.OnlineList)
	readUntil(t, marco, event.OnlineList)

	send(t, ana, event.SendPrivateMessage, event.PrivateMessageSend{Body: "hola", To: "u-marco"})

	readUntil(t, marco, event.NewPrivateMessage)

	marco.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var f event.Frame
	for {
		if err := marco.ReadJSON(&f); err != nil {
			return // timed out with no inbox event, as it should
		}
		if f.Event == event.NewBossMessage {
			t.Fatal("employee private message produced a boss inbox event")
		}
	}
}

func TestGroupTypingRelayedToOthersOnly(t *testing.T) {
	env := newTestEnv(t)

	laura := env.connect(t, "laura")
	ana := env.connect(t, "ana")
	readUntil(t, laura, event.OnlineList)
	readUntil(t, ana, event.OnlineList)
	readUntil(t, laura, event.UserOnline) // ana's join delta

	send(t, laura, event.TypingStart, event.TypingSignal{ChatID: "demo-company", ChatType: event.ChatTypeGroup})

	f := readUntil(t, ana, event.DisplayTyping)
	var notice event.TypingNotice
	if err := f.Decode(&notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.User.ID != "u-jefe" || notice.User.Name != "Laura" {
		t.Errorf("notice user = %+v, want Laura", notice.User)
	}

	// The typist never sees their own indicator.
	laura.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var echo event.Frame
	if err := laura.ReadJSON(&echo); err == nil {
		t.Fatalf("typist received %s frame", echo.Event)
	}
}

func TestPrivateTypingReachesCounterpartOnly(t *testing.T) {
	env := newTestEnv(t)

	laura := env.connect(t, "laura")
	ana := env.connect(t, "ana")
	marco := env.connect(t, "marco")
	readUntil(t, laura, event.OnlineList)
	readUntil(t, ana, event.OnlineList)
	readUntil(t, marco, event.OnlineList)

	send(t, laura, event.TypingStartPrivate, event.TypingSignal{ChatID: "demo-company", OtherUserID: "u-ana"})
	readUntil(t, ana, event.DisplayTypingPrivate)

	send(t, laura, event.TypingStopPrivate, event.TypingSignal{ChatID: "demo-company", OtherUserID: "u-ana"})
	readUntil(t, ana, event.HideTypingPrivate)

	marco.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var stray event.Frame
	if err := marco.ReadJSON(&stray); err == nil {
		t.Fatalf("uninvolved user received %s frame", stray.Event)
	}
}

func TestLoginIssuesUsableToken(t *testing.T) {
	env := newTestEnv(t)

	body := bytes.NewBufferString(`{"email":"jefe@demo.local","password":"password"}`)
	resp, err := http.Post(env.srv.URL+"/api/auth/login", "application/json", body)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	var out struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if out.User.ID != "u-jefe" || out.User.Role != models.RoleBoss {
		t.Errorf("login user = %+v", out.User)
	}

	claims, err := auth.ParseToken(out.Token, testSecret)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.UserID != "u-jefe" || claims.CompanyID != "demo-company" {
		t.Errorf("claims = %+v", claims)
	}

	// The token opens the socket.
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(out.Token), nil)
	if err != nil {
		t.Fatalf("dial with issued token: %v", err)
	}
	conn.Close()
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"email":"jefe@demo.local","password":"wrong"}`,
		`{"email":"nobody@demo.local","password":"password"}`,
	} {
		resp, err := http.Post(env.srv.URL+"/api/auth/login", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("login request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("login %s status = %d, want 401", body, resp.StatusCode)
		}
	}
}

func TestHistoryEndpointRequiresBearer(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/chat/grupal")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated history status = %d, want 401", resp.StatusCode)
	}
}
