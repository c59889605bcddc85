// Package target decides which user a command acts upon.
//
// The subject of a command is taken, in order, from:
//
//  1. nothing at all when there is no message (inline queries): the caller;
//  2. the message being replied to (its forwarded-from author if any);
//  3. nothing when the arguments are blank: the caller;
//  4. a @mention or a text mention inside the message;
//  5. the arguments read verbatim as a platform id or a @handle.
//
// Resolve never returns nil: whenever a lookup finds no row it falls back to
// the caller. Find applies the same rules but also reports whether another
// user was actually matched, so commands can reject typos.
package target

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
)

// UserFinder defines the lookups the resolver needs from the user table.
// Each returns repo.ErrNotFound when no row matches.
type UserFinder interface {
	UserByPlatformID(ctx context.Context, db *gorm.DB, platformID int64) (*domain.User, error)
	UserByUserName(ctx context.Context, db *gorm.DB, name string) (*domain.User, error)
	UserByIDOrName(ctx context.Context, db *gorm.DB, arg string) (*domain.User, error)
}

// repoUsers adapts the repo free functions to UserFinder.
type repoUsers struct{}

func (repoUsers) UserByPlatformID(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	return repo.UserByPlatformID(ctx, db, id)
}

func (repoUsers) UserByUserName(ctx context.Context, db *gorm.DB, name string) (*domain.User, error) {
	return repo.UserByUserName(ctx, db, name)
}

func (repoUsers) UserByIDOrName(ctx context.Context, db *gorm.DB, arg string) (*domain.User, error) {
	return repo.UserByIDOrName(ctx, db, arg)
}

// Resolver resolves command targets against the user table.
type Resolver struct {
	// DB is the GORM handle used for lookups.
	DB *gorm.DB
	// Users performs the lookups.
	Users UserFinder
}

// NewResolver returns a Resolver backed by the repo package.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{DB: db, Users: repoUsers{}}
}

// Resolve returns the subject user of a command. It falls back to source
// whenever no other user can be determined, including on storage errors.
func (r *Resolver) Resolve(ctx context.Context, msg *domain.Message, args string, source *domain.User) *domain.User {
	u, _, _ := r.Find(ctx, msg, args, source)
	return u
}

// Find works like Resolve but reports whether the returned user came from a
// successful lookup (found) and surfaces storage errors other than
// not-found. The returned user is never nil.
func (r *Resolver) Find(ctx context.Context, msg *domain.Message, args string, source *domain.User) (*domain.User, bool, error) {
	if msg == nil {
		return source, false, nil
	}

	if reply := msg.ReplyToMessage; reply != nil {
		author := reply.ForwardFrom
		if author == nil {
			author = reply.From
		}
		if author == nil {
			return source, false, nil
		}
		return r.settle(source, func() (*domain.User, error) {
			return r.Users.UserByPlatformID(ctx, r.DB, author.ID)
		})
	}

	if strings.TrimSpace(args) == "" {
		return source, false, nil
	}

	if e, ok := msg.FirstEntity(domain.EntityMention); ok {
		if name := strings.TrimPrefix(msg.EntityText(e), "@"); name != "" {
			return r.settle(source, func() (*domain.User, error) {
				return r.Users.UserByUserName(ctx, r.DB, name)
			})
		}
	} else if e, ok := msg.FirstEntity(domain.EntityTextMention); ok && e.User != nil && e.User.ID != 0 {
		return r.settle(source, func() (*domain.User, error) {
			return r.Users.UserByPlatformID(ctx, r.DB, e.User.ID)
		})
	}

	arg := strings.TrimSpace(args)
	return r.settle(source, func() (*domain.User, error) {
		return r.Users.UserByIDOrName(ctx, r.DB, arg)
	})
}

// settle runs lookup and applies the fallback policy.
func (r *Resolver) settle(source *domain.User, lookup func() (*domain.User, error)) (*domain.User, bool, error) {
	u, err := lookup()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return source, false, nil
	case err != nil:
		return source, false, err
	case u == nil:
		return source, false, nil
	}
	return u, true, nil
}
