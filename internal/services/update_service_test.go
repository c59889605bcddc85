package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-bot/internal/bot"
	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"), repo.WithLogger(logger.Default.LogMode(logger.Silent)))
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

// stubDispatcher echoes the request text and records every call.
type stubDispatcher struct {
	mu    sync.Mutex
	calls []bot.Request
	resp  func(bot.Request) (bot.Response, bool)
}

func (d *stubDispatcher) Dispatch(_ context.Context, req bot.Request) (bot.Response, bool) {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	d.mu.Unlock()
	if d.resp != nil {
		return d.resp(req)
	}
	return bot.Reply("echo: " + req.Text), true
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*UpdateService, *stubDispatcher, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	d := &stubDispatcher{}
	svc := NewUpdateService(db, d, repo.NewSettingsStore(db, repo.NewSchemaCatalog(db)), time.Hour)
	svc.Now = func() time.Time { return fixedNow }
	return svc, d, db
}

func groupText(updateID int64, from domain.PlatformUser, text string) domain.Update {
	return domain.Update{
		UpdateID: updateID,
		Message: &domain.Message{
			MessageID: 10,
			From:      &from,
			Chat:      domain.Chat{ID: -500, Type: domain.ChatSupergroup, Title: "Gophers"},
			Text:      text,
		},
	}
}

var alice = domain.PlatformUser{ID: 42, FirstName: "Alice", Username: "alice"}

func TestHandle_MessageTracksAndDispatches(t *testing.T) {
	svc, d, db := newService(t)
	ctx := context.Background()

	reply, err := svc.Handle(ctx, groupText(1, alice, "/help"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Kind != ReplyMessage || reply.ChatID != -500 || reply.ReplyToMessageID != 10 {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Response.Text != "echo: /help" {
		t.Fatalf("text = %q", reply.Response.Text)
	}

	u, err := repo.UserByPlatformID(ctx, db, 42)
	if err != nil {
		t.Fatalf("user not tracked: %v", err)
	}
	if u.Name != "Alice" || u.UserName != "alice" || !u.LastHeard.Equal(fixedNow) {
		t.Fatalf("tracked user = %+v", u)
	}
	g, err := repo.GroupByPlatformID(ctx, db, -500)
	if err != nil || g.Name != "Gophers" {
		t.Fatalf("group not tracked: %v %+v", err, g)
	}

	if len(d.calls) != 1 {
		t.Fatalf("dispatch calls = %d", len(d.calls))
	}
	req := d.calls[0]
	if req.Source == nil || req.Source.UserID != 42 || req.Group == nil || req.Group.GroupID != -500 || req.Message == nil {
		t.Fatalf("request = %+v", req)
	}
}

func TestHandle_PrivateChatHasNoGroup(t *testing.T) {
	svc, d, _ := newService(t)
	upd := groupText(1, alice, "/whoami")
	upd.Message.Chat = domain.Chat{ID: 42, Type: domain.ChatPrivate}

	if _, err := svc.Handle(context.Background(), upd); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if d.calls[0].Group != nil {
		t.Fatalf("private chat must not carry a group")
	}
}

func TestHandle_DuplicateUpdate(t *testing.T) {
	svc, d, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Handle(ctx, groupText(7, alice, "/help")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.Handle(ctx, groupText(7, alice, "/help")); !errors.Is(err, ErrDuplicateUpdate) {
		t.Fatalf("second: want ErrDuplicateUpdate, got %v", err)
	}
	if len(d.calls) != 1 {
		t.Fatalf("retry must not dispatch again, calls = %d", len(d.calls))
	}

	// remembered only for DedupTTL
	svc.Now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	if _, err := svc.Handle(ctx, groupText(7, alice, "/help")); err != nil {
		t.Fatalf("after ttl: %v", err)
	}
}

func TestHandle_SilentCases(t *testing.T) {
	svc, d, _ := newService(t)
	d.resp = func(bot.Request) (bot.Response, bool) { return bot.Response{}, false }
	ctx := context.Background()

	robot := domain.PlatformUser{ID: 9, FirstName: "Bot", IsBot: true}
	cases := map[string]domain.Update{
		"no payload":    {UpdateID: 1},
		"no sender":     {UpdateID: 2, Message: &domain.Message{Chat: domain.Chat{ID: 1}, Text: "/help"}},
		"bot sender":    groupText(3, robot, "/help"),
		"blank text":    groupText(4, alice, "   "),
		"not a command": groupText(5, alice, "hello there"),
	}
	for name, upd := range cases {
		reply, err := svc.Handle(ctx, upd)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if reply.Kind != ReplyNone {
			t.Fatalf("%s: reply = %+v", name, reply)
		}
	}
	if len(d.calls) != 1 || d.calls[0].Text != "hello there" {
		t.Fatalf("only the plain text should reach the dispatcher, got %+v", d.calls)
	}
}

func TestHandle_InlineQuery(t *testing.T) {
	svc, d, db := newService(t)
	ctx := context.Background()

	reply, err := svc.Handle(ctx, domain.Update{
		UpdateID:    11,
		InlineQuery: &domain.InlineQuery{ID: "q1", From: alice, Query: "whoami"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Kind != ReplyInline || reply.InlineQueryID != "q1" || reply.Response.Text != "echo: whoami" {
		t.Fatalf("reply = %+v", reply)
	}
	if d.calls[0].Message != nil || d.calls[0].Group != nil {
		t.Fatalf("inline request must have no message or group: %+v", d.calls[0])
	}
	if _, err := repo.UserByPlatformID(ctx, db, alice.ID); err != nil {
		t.Fatalf("inline sender not tracked: %v", err)
	}
}

func TestHandle_WelcomesNewMembers(t *testing.T) {
	svc, d, db := newService(t)
	ctx := context.Background()

	join := func(id int64, members ...domain.PlatformUser) domain.Update {
		upd := groupText(id, alice, "")
		upd.Message.NewChatMembers = members
		return upd
	}
	bob := domain.PlatformUser{ID: 77, FirstName: "Bob"}
	carol := domain.PlatformUser{ID: 78, FirstName: "Carol", LastName: "C"}

	// greetings off by default
	reply, err := svc.Handle(ctx, join(1, bob))
	if err != nil || reply.Kind != ReplyNone {
		t.Fatalf("disabled welcome: %+v %v", reply, err)
	}
	if _, err := repo.UserByPlatformID(ctx, db, bob.ID); err != nil {
		t.Fatalf("new member not tracked: %v", err)
	}

	g, err := repo.GroupByPlatformID(ctx, db, -500)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if !svc.Settings.SetBool(ctx, g, "WelcomeEnabled", false, true) {
		t.Fatalf("enable welcome")
	}

	reply, err = svc.Handle(ctx, join(2, bob, domain.PlatformUser{ID: 79, FirstName: "Robo", IsBot: true}, carol))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if reply.Kind != ReplyMessage || reply.ReplyToMessageID != 0 {
		t.Fatalf("reply = %+v", reply)
	}
	if want := "Welcome, Bob!\nWelcome, Carol C!"; reply.Response.Text != want {
		t.Fatalf("text = %q, want %q", reply.Response.Text, want)
	}
	if len(d.calls) != 0 {
		t.Fatalf("join messages must not be dispatched")
	}
}

func TestHandle_WelcomeSkipsMemberWhoseGreetingFails(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	svc.Greet = func(_ context.Context, _ *repo.SettingsStore, _ *domain.Group, name string) (string, error) {
		if name == "Bob" {
			return "", errors.New("database is locked")
		}
		return "Hi " + name, nil
	}

	upd := groupText(1, alice, "")
	upd.Message.NewChatMembers = []domain.PlatformUser{
		{ID: 77, FirstName: "Bob"},
		{ID: 78, FirstName: "Carol"},
		{ID: 80, FirstName: "Dave"},
	}
	reply, err := svc.Handle(ctx, upd)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if want := "Hi Carol\nHi Dave"; reply.Kind != ReplyMessage || reply.Response.Text != want {
		t.Fatalf("reply = %+v, want text %q", reply, want)
	}
}

type failingRepo struct {
	repoShim
	touchErr error
	marked   int
}

func (f *failingRepo) TouchUser(ctx context.Context, db *gorm.DB, pu domain.PlatformUser, now time.Time) (*domain.User, error) {
	if f.touchErr != nil {
		return nil, f.touchErr
	}
	return f.repoShim.TouchUser(ctx, db, pu, now)
}

func (f *failingRepo) MarkUpdate(ctx context.Context, db *gorm.DB, updateID int64, ttl time.Duration, now time.Time) error {
	f.marked++
	return f.repoShim.MarkUpdate(ctx, db, updateID, ttl, now)
}

func TestHandle_TrackingFailureLeavesUpdateRetryable(t *testing.T) {
	svc, d, _ := newService(t)
	fr := &failingRepo{touchErr: errors.New("database is locked")}
	svc.Repo = fr

	if _, err := svc.Handle(context.Background(), groupText(5, alice, "/help")); err == nil {
		t.Fatalf("expected tracking error")
	}
	if fr.marked != 0 || len(d.calls) != 0 {
		t.Fatalf("failed update must not be marked or dispatched (marked=%d calls=%d)", fr.marked, len(d.calls))
	}

	fr.touchErr = nil
	reply, err := svc.Handle(context.Background(), groupText(5, alice, "/help"))
	if err != nil || reply.Kind != ReplyMessage {
		t.Fatalf("retry: %+v %v", reply, err)
	}
}
