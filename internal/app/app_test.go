package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-chat-bot/internal/config"
	"github.com/tbourn/go-chat-bot/internal/domain"
	httpapi "github.com/tbourn/go-chat-bot/internal/http"
	"github.com/tbourn/go-chat-bot/internal/repo"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:              "0",
		ReadTimeout:       time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		MaxHeaderBytes:    1 << 20,
		GinMode:           "test",
		APIBasePath:       "/api/v1",
		DBPath:            filepath.Join(t.TempDir(), "bot.db"),
		Bot: config.BotConfig{
			Alias:              "test",
			APIKey:             "123:abc",
			Username:           "testbot",
			DefaultAdminUserID: 1,
			CommandRPS:         100,
			CommandBurst:       10,
			UpdateDedupTTL:     time.Hour,
		},
	}
}

func newApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestNew_ServesWebhook(t *testing.T) {
	a := newApp(t, testConfig(t))

	upd := domain.Update{
		UpdateID: 7,
		Message: &domain.Message{
			MessageID: 3,
			From:      &domain.PlatformUser{ID: 42, FirstName: "Alice", Username: "alice"},
			Chat:      domain.Chat{ID: 42, Type: domain.ChatPrivate},
			Text:      "/whoami",
		},
	}
	body, _ := json.Marshal(upd)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1"+httpapi.WebhookPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	a.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Id: 42") {
		t.Fatalf("body = %s", w.Body.String())
	}
	if a.Dispatcher() == nil {
		t.Fatal("dispatcher not wired")
	}
}

func TestNew_SeedsGlobalSetting(t *testing.T) {
	cfg := testConfig(t)
	a := newApp(t, cfg)

	var s domain.Setting
	if err := a.db.Where("Alias = ?", "test").First(&s).Error; err != nil {
		t.Fatalf("settings row: %v", err)
	}
	if s.TelegramBotAPIKey != "123:abc" || s.TelegramDefaultAdminUserID != 1 {
		t.Fatalf("seeded setting = %+v", s)
	}
}

func TestNew_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = filepath.Join(t.TempDir(), "missing", "dir", "bot.db")
	if _, err := New(context.Background(), cfg, "test"); err == nil {
		t.Fatal("expected error for unreachable database path")
	}
}

func TestPrune_RemovesExpiredUpdates(t *testing.T) {
	a := newApp(t, testConfig(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := repo.MarkUpdate(ctx, a.db, 1, time.Minute, base); err != nil {
		t.Fatalf("mark 1: %v", err)
	}
	if err := repo.MarkUpdate(ctx, a.db, 2, time.Hour, base); err != nil {
		t.Fatalf("mark 2: %v", err)
	}
	a.now = func() time.Time { return base.Add(10 * time.Minute) }
	a.prune(ctx)

	var ids []int64
	if err := a.db.Model(&domain.ProcessedUpdate{}).Order("update_id").Pluck("update_id", &ids).Error; err != nil {
		t.Fatalf("list updates: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("remaining updates = %v, want [2]", ids)
	}
	if err := repo.MarkUpdate(ctx, a.db, 2, time.Minute, a.now()); !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("live update: err = %v, want ErrDuplicate", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := newApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
