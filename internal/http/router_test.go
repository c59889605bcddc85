package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-bot/internal/bot"
	"github.com/tbourn/go-chat-bot/internal/commands"
	"github.com/tbourn/go-chat-bot/internal/config"
	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/http/handlers"
	"github.com/tbourn/go-chat-bot/internal/http/middleware"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/services"
	"github.com/tbourn/go-chat-bot/internal/target"
)

const devID = 1

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"), repo.WithLogger(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		Bot:         config.BotConfig{Alias: "test", Username: "testbot", WebhookSecret: "s3cret"},
		OTEL:        config.OTELConfig{ServiceName: "test-bot"},
	}
}

// newStack wires the full bot behind the router, the way main does.
func newStack(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	ctx := context.Background()

	global, err := repo.LoadSetting(ctx, db, domain.Setting{Alias: cfg.Bot.Alias, TelegramDefaultAdminUserID: devID})
	if err != nil {
		t.Fatalf("LoadSetting: %v", err)
	}
	catalog := repo.NewSchemaCatalog(db)
	settings := repo.NewSettingsStore(db, catalog)
	reg := bot.NewRegistry()
	if err := commands.RegisterAll(reg); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	d := bot.NewDispatcher(reg, bot.Deps{
		DB:       db,
		Settings: settings,
		Targets:  target.NewResolver(db),
		Global:   global,
	}, bot.Options{BotUsername: cfg.Bot.Username})

	r := gin.New()
	RegisterRoutes(r, db, services.NewUpdateService(db, d, settings, time.Hour), cfg)
	return r, db
}

func deliver(r http.Handler, secret string, upd any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(upd)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1"+WebhookPath, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(middleware.HeaderWebhookSecret, secret)
	}
	r.ServeHTTP(w, req)
	return w
}

func textUpdate(id int64, from domain.PlatformUser, text string) domain.Update {
	return domain.Update{
		UpdateID: id,
		Message: &domain.Message{
			MessageID: id * 10,
			From:      &from,
			Chat:      domain.Chat{ID: -100, Type: domain.ChatSupergroup, Title: "Gophers"},
			Text:      text,
		},
	}
}

var (
	dev   = domain.PlatformUser{ID: devID, FirstName: "Dev", Username: "dev"}
	alice = domain.PlatformUser{ID: 42, FirstName: "Alice", Username: "alice"}
)

func TestWebhook_EndToEnd(t *testing.T) {
	r, db := newStack(t, testConfig())

	w := deliver(r, "s3cret", textUpdate(1, alice, "/whoami@testbot"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var msg handlers.SendMessage
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Method != handlers.MethodSendMessage || msg.ChatID != -100 || msg.ReplyToMessageID != 10 {
		t.Fatalf("reply = %+v", msg)
	}
	if !strings.Contains(msg.Text, "Alice") || !strings.Contains(msg.Text, "42") {
		t.Fatalf("whoami text = %q", msg.Text)
	}
	if _, err := repo.UserByPlatformID(context.Background(), db, 42); err != nil {
		t.Fatalf("sender not tracked: %v", err)
	}

	// platform retry of the same update is acknowledged without a reply
	if w := deliver(r, "s3cret", textUpdate(1, alice, "/whoami@testbot")); w.Code != http.StatusNoContent {
		t.Fatalf("duplicate status = %d", w.Code)
	}

	// command addressed to another bot is ignored
	if w := deliver(r, "s3cret", textUpdate(2, alice, "/whoami@otherbot")); w.Code != http.StatusNoContent {
		t.Fatalf("foreign command status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestWebhook_GroundFlow(t *testing.T) {
	r, db := newStack(t, testConfig())

	// alice must be known before she can be targeted
	deliver(r, "s3cret", textUpdate(1, alice, "hi"))

	w := deliver(r, "s3cret", textUpdate(2, dev, "/ground @alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("ground status = %d", w.Code)
	}
	u, err := repo.UserByPlatformID(context.Background(), db, 42)
	if err != nil || !u.Grounded {
		t.Fatalf("alice should be grounded: %+v %v", u, err)
	}

	// grounded users are ignored
	if w := deliver(r, "s3cret", textUpdate(3, alice, "/whoami")); w.Code != http.StatusNoContent {
		t.Fatalf("grounded status = %d body=%s", w.Code, w.Body.String())
	}

	// non-admins cannot ground
	if w := deliver(r, "s3cret", textUpdate(4, domain.PlatformUser{ID: 7, FirstName: "Eve"}, "/ground @dev")); w.Code != http.StatusNoContent {
		t.Fatalf("unauthorized status = %d", w.Code)
	}
}

func TestWebhook_InlineQuery(t *testing.T) {
	r, _ := newStack(t, testConfig())
	w := deliver(r, "s3cret", domain.Update{
		UpdateID:    5,
		InlineQuery: &domain.InlineQuery{ID: "iq", From: alice, Query: "whoami"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var ans handlers.AnswerInlineQuery
	if err := json.Unmarshal(w.Body.Bytes(), &ans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ans.InlineQueryID != "iq" || len(ans.Results) != 1 || ans.Results[0].Type != "article" {
		t.Fatalf("answer = %+v", ans)
	}
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	r, _ := newStack(t, testConfig())
	for _, secret := range []string{"", "wrong"} {
		if w := deliver(r, secret, textUpdate(1, alice, "/help")); w.Code != http.StatusUnauthorized {
			t.Fatalf("secret %q: status = %d", secret, w.Code)
		}
	}
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r, db := newStack(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("middleware headers missing: %v", w.Header())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" && got != "*" {
		t.Fatalf("unexpected ACAO %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "chatbot_http_requests_total") {
		t.Fatalf("GET /metrics code=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), handlers.ErrCodeNotFound) {
		t.Fatalf("GET /nope = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", w.Code)
	}

	// database gone: health degrades
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	_ = sqlDB.Close()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health with closed db = %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowlist(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com", "https://admin.example.org"}
	r, _ := newStack(t, cfg)

	// httptest requests target host example.com: the first origin is same-host.
	for _, origin := range cfg.CORS.AllowedOrigins {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", origin)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("%s: ACAO = %q", origin, got)
		}
		if !strings.Contains(strings.Join(w.Header().Values("Vary"), ","), "Origin") {
			t.Fatalf("%s: Vary = %v", origin, w.Header().Values("Vary"))
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin status = %d", w.Code)
	}
}

func TestRegisterRoutes_GzipWhenAccepted(t *testing.T) {
	r, _ := newStack(t, testConfig())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, headers=%v", w.Header())
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
