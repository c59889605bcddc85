// Package services – UpdateService
//
// UpdateService turns one webhook update into at most one reply. It tracks
// the sender (and group), drops platform retries by update id, greets new
// group members and hands text to the command dispatcher.
//
// Tracking runs before the update is marked processed, so a storage failure
// there leaves the update eligible for the platform's retry.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/bot"
	"github.com/tbourn/go-chat-bot/internal/commands"
	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
)

// UpdateRepo is the persistence used by UpdateService.
type UpdateRepo interface {
	TouchUser(ctx context.Context, db *gorm.DB, pu domain.PlatformUser, now time.Time) (*domain.User, error)
	TouchGroup(ctx context.Context, db *gorm.DB, chat domain.Chat) (*domain.Group, error)
	MarkUpdate(ctx context.Context, db *gorm.DB, updateID int64, ttl time.Duration, now time.Time) error
}

// CommandDispatcher runs a command candidate.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, req bot.Request) (bot.Response, bool)
}

// ReplyKind selects how the transport delivers a Reply.
type ReplyKind int

const (
	// ReplyNone acknowledges the update without answering.
	ReplyNone ReplyKind = iota
	// ReplyMessage posts into ChatID, replying to ReplyToMessageID.
	ReplyMessage
	// ReplyInline answers InlineQueryID.
	ReplyInline
)

// Reply is the single answer to an update.
type Reply struct {
	Kind             ReplyKind
	ChatID           int64
	ReplyToMessageID int64
	InlineQueryID    string
	Response         bot.Response
}

// repoShim adapts the repo free functions to UpdateRepo.
type repoShim struct{}

func (repoShim) TouchUser(ctx context.Context, db *gorm.DB, pu domain.PlatformUser, now time.Time) (*domain.User, error) {
	return repo.TouchUser(ctx, db, pu, now)
}

func (repoShim) TouchGroup(ctx context.Context, db *gorm.DB, chat domain.Chat) (*domain.Group, error) {
	return repo.TouchGroup(ctx, db, chat)
}

func (repoShim) MarkUpdate(ctx context.Context, db *gorm.DB, updateID int64, ttl time.Duration, now time.Time) error {
	return repo.MarkUpdate(ctx, db, updateID, ttl, now)
}

// UpdateService processes webhook updates. It is safe for concurrent use.
type UpdateService struct {
	DB         *gorm.DB
	Repo       UpdateRepo
	Dispatcher CommandDispatcher
	Settings   *repo.SettingsStore
	// DedupTTL is how long an update id is remembered.
	DedupTTL time.Duration
	Now      func() time.Time
	// Greet renders the welcome line for one new member of g.
	Greet func(ctx context.Context, settings *repo.SettingsStore, g *domain.Group, name string) (string, error)
}

// NewUpdateService wires the service to the repo package.
func NewUpdateService(db *gorm.DB, d CommandDispatcher, settings *repo.SettingsStore, dedupTTL time.Duration) *UpdateService {
	return &UpdateService{
		DB:         db,
		Repo:       repoShim{},
		Dispatcher: d,
		Settings:   settings,
		DedupTTL:   dedupTTL,
		Now:        time.Now,
		Greet:      commands.WelcomeText,
	}
}

// Handle processes upd. It returns ErrDuplicateUpdate for a retry of an
// already processed update; unsupported update kinds yield ReplyNone.
func (s *UpdateService) Handle(ctx context.Context, upd domain.Update) (Reply, error) {
	ctx, span := otel.Tracer("services/UpdateService").Start(ctx, "HandleUpdate",
		trace.WithAttributes(attribute.Int64("update.id", upd.UpdateID)),
	)
	defer span.End()

	now := s.Now().UTC()
	switch {
	case upd.Message != nil:
		return s.handleMessage(ctx, upd.UpdateID, upd.Message, now)
	case upd.InlineQuery != nil:
		return s.handleInline(ctx, upd.UpdateID, upd.InlineQuery, now)
	default:
		return Reply{}, nil
	}
}

func (s *UpdateService) handleMessage(ctx context.Context, updateID int64, msg *domain.Message, now time.Time) (Reply, error) {
	if msg.From == nil || msg.From.IsBot {
		return Reply{}, nil
	}
	source, err := s.Repo.TouchUser(ctx, s.DB, *msg.From, now)
	if err != nil {
		return Reply{}, err
	}
	var group *domain.Group
	if msg.Chat.IsGroup() {
		if group, err = s.Repo.TouchGroup(ctx, s.DB, msg.Chat); err != nil {
			return Reply{}, err
		}
	}
	if err := s.mark(ctx, updateID, now); err != nil {
		return Reply{}, err
	}

	reply := Reply{Kind: ReplyMessage, ChatID: msg.Chat.ID, ReplyToMessageID: msg.MessageID}
	if len(msg.NewChatMembers) > 0 {
		reply.Response = s.welcome(ctx, group, msg.NewChatMembers, now)
		reply.ReplyToMessageID = 0
	} else if strings.TrimSpace(msg.Text) != "" {
		reply.Response, _ = s.Dispatcher.Dispatch(ctx, bot.Request{
			Text:    msg.Text,
			Message: msg,
			Source:  source,
			Group:   group,
		})
	}
	if reply.Response.Empty() {
		return Reply{}, nil
	}
	return reply, nil
}

func (s *UpdateService) handleInline(ctx context.Context, updateID int64, q *domain.InlineQuery, now time.Time) (Reply, error) {
	if q.From.IsBot {
		return Reply{}, nil
	}
	source, err := s.Repo.TouchUser(ctx, s.DB, q.From, now)
	if err != nil {
		return Reply{}, err
	}
	if err := s.mark(ctx, updateID, now); err != nil {
		return Reply{}, err
	}
	resp, ok := s.Dispatcher.Dispatch(ctx, bot.Request{Text: q.Query, Source: source})
	if !ok || resp.Empty() {
		return Reply{}, nil
	}
	return Reply{Kind: ReplyInline, InlineQueryID: q.ID, Response: resp}, nil
}

func (s *UpdateService) mark(ctx context.Context, updateID int64, now time.Time) error {
	err := s.Repo.MarkUpdate(ctx, s.DB, updateID, s.DedupTTL, now)
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicateUpdate
	}
	return err
}

// welcome tracks every joining human and greets them in one message when the
// group has greetings enabled.
func (s *UpdateService) welcome(ctx context.Context, g *domain.Group, members []domain.PlatformUser, now time.Time) bot.Response {
	var lines []string
	for _, m := range members {
		if m.IsBot {
			continue
		}
		if _, err := s.Repo.TouchUser(ctx, s.DB, m, now); err != nil {
			log.Error().Err(err).Int64("platform_user_id", m.ID).Msg("track new member")
		}
		if g == nil || s.Settings == nil || s.Greet == nil {
			continue
		}
		text, err := s.Greet(ctx, s.Settings, g, m.DisplayName())
		if err != nil {
			log.Error().Err(err).Int64("group_id", g.GroupID).Int64("platform_user_id", m.ID).Msg("welcome text")
			continue
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return bot.Reply(strings.Join(lines, "\n"))
}
