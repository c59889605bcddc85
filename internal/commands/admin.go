package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/go-chat-bot/internal/bot"
	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/utils"
)

var targetParams = []string{"<userid>", "<@username>", "as a reply"}

// errNoStatement is returned by sql/query when called without arguments.
var errNoStatement = errors.New("usage: give me a statement to run")

// RegisterAdmin registers user moderation and database maintenance commands.
func RegisterAdmin(reg *bot.Registry) error {
	return register(reg, []bot.Descriptor{
		{
			Name:       "ground",
			Triggers:   []string{"ground", "finishhim!", "kthxbai"},
			Role:       bot.RoleBotAdmin,
			Parameters: targetParams,
			HelpText:   "Stops a user from using the bot",
			Handler:    groundUser,
		},
		{
			Name:       "unground",
			Triggers:   []string{"unground", "izoknaow"},
			Role:       bot.RoleBotAdmin,
			Parameters: targetParams,
			HelpText:   "Allows user to use the bot again",
			Handler:    ungroundUser,
		},
		{
			Name:       "sql",
			Triggers:   []string{"sql"},
			Role:       bot.RoleDeveloper,
			Parameters: []string{"<sql command>"},
			HelpText:   "Runs a statement and reports changed rows",
			Handler:    runSQL,
		},
		{
			Name:       "query",
			Triggers:   []string{"query"},
			Role:       bot.RoleDeveloper,
			Parameters: []string{"<select statement>"},
			HelpText:   "Runs a query and prints the rows",
			Handler:    runQuery,
		},
		{
			Name:     "cleandb",
			Triggers: []string{"cleandb"},
			Role:     bot.RoleDeveloper,
			HelpText: "Cleans all users with UserID (0)",
			Handler:  cleanDatabase,
		},
		{
			Name:       "addbotadmin",
			Triggers:   []string{"addbotadmin", "addadmin"},
			Role:       bot.RoleDeveloper,
			Parameters: targetParams,
			HelpText:   "Makes a user a bot admin",
			Handler:    setBotAdmin(true),
		},
		{
			Name:       "rembotadmin",
			Triggers:   []string{"rembotadmin", "remadmin"},
			Role:       bot.RoleDeveloper,
			Parameters: targetParams,
			HelpText:   "Removes a user's bot admin rights",
			Handler:    setBotAdmin(false),
		},
		{
			Name:     "rescan",
			Triggers: []string{"rescan"},
			Role:     bot.RoleDeveloper,
			HelpText: "Forgets cached table layouts after manual schema changes",
			Handler:  rescanSchema,
		},
	})
}

func groundUser(ctx context.Context, c *bot.Context) (bot.Response, error) {
	target := c.Target(ctx)
	if target.UserID == c.Source.UserID {
		return bot.Reply("Invalid target."), nil
	}
	if target.Grounded {
		return bot.Reply(fmt.Sprintf("%s is already grounded by %s", target.Name, target.GroundedBy)), nil
	}
	target.Grounded = true
	target.GroundedBy = c.Source.Name
	if err := repo.Save(ctx, c.DB, target); err != nil {
		return bot.Response{}, err
	}
	return bot.Reply(fmt.Sprintf("%s is grounded!", target.Name)), nil
}

func ungroundUser(ctx context.Context, c *bot.Context) (bot.Response, error) {
	target := c.Target(ctx)
	if target.UserID == c.Source.UserID {
		return bot.Reply("Invalid target."), nil
	}
	if !target.Grounded {
		return bot.Reply(fmt.Sprintf("%s isn't grounded anyways...", target.Name)), nil
	}
	target.Grounded = false
	target.GroundedBy = ""
	if err := repo.Save(ctx, c.DB, target); err != nil {
		return bot.Response{}, err
	}
	return bot.Reply(fmt.Sprintf("%s is ungrounded!", target.Name)), nil
}

func runSQL(ctx context.Context, c *bot.Context) (bot.Response, error) {
	if strings.TrimSpace(c.Args) == "" {
		return bot.Response{}, errNoStatement
	}
	n, err := repo.ExecuteNonQuery(ctx, c.DB, c.Args)
	if err != nil {
		return bot.Response{}, err
	}
	return bot.Reply(fmt.Sprintf("%d records changed", n)), nil
}

func runQuery(ctx context.Context, c *bot.Context) (bot.Response, error) {
	if strings.TrimSpace(c.Args) == "" {
		return bot.Response{}, errNoStatement
	}
	out, err := repo.ExecuteQuery(ctx, c.DB, c.Args)
	if err != nil {
		return bot.Response{}, err
	}
	return bot.Reply(utils.Clip(out, utils.MaxMessageRunes)), nil
}

func cleanDatabase(ctx context.Context, c *bot.Context) (bot.Response, error) {
	start, err := repo.CountUsers(ctx, c.DB)
	if err != nil {
		return bot.Response{}, err
	}
	if _, err := repo.ExecuteNonQuery(ctx, c.DB, `DELETE FROM users WHERE UserId = 0`); err != nil {
		return bot.Response{}, err
	}
	end, err := repo.CountUsers(ctx, c.DB)
	if err != nil {
		return bot.Response{}, err
	}
	return bot.Reply(fmt.Sprintf("Database cleaned. Removed %d users.", start-end)), nil
}

// setBotAdmin grants or revokes the bot-admin flag. Unknown targets and
// self-targeting get no reply.
func setBotAdmin(grant bool) bot.HandlerFunc {
	return func(ctx context.Context, c *bot.Context) (bot.Response, error) {
		target, found, err := c.FindTarget(ctx)
		if err != nil {
			return bot.Response{}, err
		}
		if !found || sameUser(target, c.Source) {
			return bot.Response{}, nil
		}
		target.IsBotAdmin = grant
		if err := repo.Save(ctx, c.DB, target); err != nil {
			return bot.Response{}, err
		}
		if grant {
			return bot.Reply(fmt.Sprintf("%s is now a bot admin.", target.Name)), nil
		}
		return bot.Reply(fmt.Sprintf("%s is no longer a bot admin.", target.Name)), nil
	}
}

func rescanSchema(_ context.Context, c *bot.Context) (bot.Response, error) {
	c.Settings.Catalog().InvalidateAll()
	return bot.Reply("Schema cache cleared."), nil
}

func sameUser(a, b *domain.User) bool {
	if a.ID != nil && b.ID != nil {
		return *a.ID == *b.ID
	}
	return a.UserID == b.UserID
}
