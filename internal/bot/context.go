package bot

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/target"
)

// Deps are the collaborators handed to every command.
type Deps struct {
	DB       *gorm.DB
	Settings *repo.SettingsStore
	Targets  *target.Resolver
	// Global is the settings row of this bot instance.
	Global *domain.Setting
}

// Context is the per-invocation input of a handler.
type Context struct {
	Deps

	// Source is the calling user, already tracked in the users table.
	Source *domain.User
	// Group is the chat group the command was sent in, nil in private chats
	// and inline queries.
	Group *domain.Group
	// Trigger is the normalized token that selected the command.
	Trigger string
	// Args is the raw text after the trigger.
	Args string
	// Message is the inbound message; nil on the inline path.
	Message *domain.Message
	// Role is the caller's effective privilege.
	Role Role
	// Registry lists every registered command.
	Registry *Registry
}

// Inline reports whether the command runs without a message.
func (c *Context) Inline() bool { return c.Message == nil }

// Target resolves the subject of the command; it never returns nil.
func (c *Context) Target(ctx context.Context) *domain.User {
	return c.Targets.Resolve(ctx, c.Message, c.Args, c.Source)
}

// FindTarget resolves the subject of the command and reports whether a user
// other than the implicit fallback was matched.
func (c *Context) FindTarget(ctx context.Context) (*domain.User, bool, error) {
	return c.Targets.Find(ctx, c.Message, c.Args, c.Source)
}
