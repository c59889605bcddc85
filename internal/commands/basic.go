package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tbourn/go-chat-bot/internal/bot"
	"github.com/tbourn/go-chat-bot/internal/domain"
	"github.com/tbourn/go-chat-bot/internal/repo"
	"github.com/tbourn/go-chat-bot/internal/sysutil"
	"github.com/tbourn/go-chat-bot/internal/utils"
)

// Dynamic setting names used by this module.
const (
	settingAfk        = "Afk"
	settingAfkReason  = "AfkReason"
	settingWelcome    = "WelcomeEnabled"
	settingWelcomeMsg = "WelcomeText"
)

const helpPageSize = 15

// RegisterBasic registers help, profile and per-entity preference commands.
func RegisterBasic(reg *bot.Registry) error {
	return register(reg, []bot.Descriptor{
		{
			Name:       "help",
			Triggers:   []string{"help", "commands"},
			Parameters: []string{"<page>", "<command>"},
			HelpText:   "Lists the commands you can use",
			Handler:    help,
		},
		{
			Name:       "whoami",
			Triggers:   []string{"whoami", "whois"},
			Parameters: targetParams,
			HelpText:   "Shows what the bot knows about a user",
			Handler:    whoami,
		},
		{
			Name:             "afk",
			Triggers:         []string{"afk"},
			Parameters:       []string{"<reason>"},
			HelpText:         "Marks you as away",
			DontSearchInline: true,
			Handler:          afk,
		},
		{
			Name:             "back",
			Triggers:         []string{"back"},
			HelpText:         "Clears your away status",
			DontSearchInline: true,
			Handler:          back,
		},
		{
			Name:             "welcome",
			Triggers:         []string{"welcome"},
			Role:             bot.RoleBotAdmin,
			Parameters:       []string{"on", "off", "<greeting text>"},
			HelpText:         "Configures the greeting for new group members",
			DontSearchInline: true,
			Handler:          welcome,
		},
	})
}

func help(_ context.Context, c *bot.Context) (bot.Response, error) {
	arg := strings.TrimSpace(c.Args)
	if arg != "" {
		if _, err := strconv.Atoi(arg); err != nil {
			d, ok := c.Registry.Lookup(strings.TrimLeft(arg, "/!"))
			if !ok || !c.Role.Allows(d.Role) {
				return bot.Reply(fmt.Sprintf("No such command: %s", arg)), nil
			}
			text := d.Usage()
			if len(d.Triggers) > 1 {
				text += "\nAliases: " + strings.Join(d.Triggers[1:], ", ")
			}
			if d.HelpText != "" {
				text += "\n" + d.HelpText
			}
			return bot.Reply(text), nil
		}
	}

	var lines []string
	for _, d := range c.Registry.Descriptors() {
		if !c.Role.Allows(d.Role) || (c.Inline() && d.DontSearchInline) {
			continue
		}
		line := "/" + d.Triggers[0]
		if d.HelpText != "" {
			line += " - " + d.HelpText
		}
		lines = append(lines, line)
	}

	lo, hi, pages := utils.Page(len(lines), utils.AtoiDefault(arg, 1), helpPageSize)
	if pages == 0 {
		return bot.Reply("No commands available."), nil
	}
	text := strings.Join(lines[lo:hi], "\n")
	if pages > 1 {
		text += fmt.Sprintf("\n\nPage %d/%d", lo/helpPageSize+1, pages)
	}
	return bot.Reply(text), nil
}

func whoami(ctx context.Context, c *bot.Context) (bot.Response, error) {
	u := c.Target(ctx)
	away, err := c.Settings.GetBool(ctx, u, settingAfk, false)
	if err != nil {
		return bot.Response{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", sysutil.FirstNonEmpty(u.Name, u.UserName, strconv.FormatInt(u.UserID, 10)))
	fmt.Fprintf(&b, "Id: %d\n", u.UserID)
	if u.UserName != "" {
		fmt.Fprintf(&b, "Username: @%s\n", u.UserName)
	}
	if !u.FirstSeen.IsZero() {
		fmt.Fprintf(&b, "First seen: %s\n", u.FirstSeen.UTC().Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Points: %d\n", u.Points)
	if u.IsBotAdmin {
		b.WriteString("Bot admin\n")
	}
	if u.Grounded {
		fmt.Fprintf(&b, "Grounded by %s\n", u.GroundedBy)
	}
	if away {
		reason, err := c.Settings.GetText(ctx, u, settingAfkReason, "")
		if err != nil {
			return bot.Response{}, err
		}
		b.WriteString("Away")
		if reason != "" {
			b.WriteString(": " + reason)
		}
		b.WriteString("\n")
	}
	return bot.Reply(strings.TrimRight(b.String(), "\n")), nil
}

func afk(ctx context.Context, c *bot.Context) (bot.Response, error) {
	reason := strings.TrimSpace(c.Args)
	if !c.Settings.SetBool(ctx, c.Source, settingAfk, false, true) ||
		!c.Settings.SetText(ctx, c.Source, settingAfkReason, "", reason) {
		return bot.Reply("Could not save your status, try again later."), nil
	}
	if reason == "" {
		return bot.Reply(fmt.Sprintf("%s is now away.", c.Source.Name)), nil
	}
	return bot.Reply(fmt.Sprintf("%s is now away: %s", c.Source.Name, reason)), nil
}

func back(ctx context.Context, c *bot.Context) (bot.Response, error) {
	away, err := c.Settings.GetBool(ctx, c.Source, settingAfk, false)
	if err != nil {
		return bot.Response{}, err
	}
	if !away {
		return bot.Response{}, nil
	}
	if !c.Settings.SetBool(ctx, c.Source, settingAfk, false, false) {
		return bot.Reply("Could not save your status, try again later."), nil
	}
	return bot.Reply(fmt.Sprintf("Welcome back, %s!", c.Source.Name)), nil
}

func welcome(ctx context.Context, c *bot.Context) (bot.Response, error) {
	if c.Group == nil {
		return bot.Reply("This command only works in groups."), nil
	}
	arg := strings.TrimSpace(c.Args)
	switch {
	case arg == "":
		on, err := c.Settings.GetBool(ctx, c.Group, settingWelcome, false)
		if err != nil {
			return bot.Response{}, err
		}
		text, err := c.Settings.GetText(ctx, c.Group, settingWelcomeMsg, "")
		if err != nil {
			return bot.Response{}, err
		}
		state := "off"
		if on {
			state = "on"
		}
		if text == "" {
			return bot.Reply(fmt.Sprintf("Welcome messages are %s.", state)), nil
		}
		return bot.Reply(fmt.Sprintf("Welcome messages are %s: %s", state, text)), nil
	case sysutil.IsTruthy(arg), sysutil.IsFalsy(arg):
		on := sysutil.IsTruthy(arg)
		if !c.Settings.SetBool(ctx, c.Group, settingWelcome, false, on) {
			return bot.Reply("Could not save the group setting."), nil
		}
		if on {
			return bot.Reply("Welcome messages enabled."), nil
		}
		return bot.Reply("Welcome messages disabled."), nil
	default:
		if !c.Settings.SetText(ctx, c.Group, settingWelcomeMsg, "", arg) ||
			!c.Settings.SetBool(ctx, c.Group, settingWelcome, false, true) {
			return bot.Reply("Could not save the group setting."), nil
		}
		return bot.Reply("Welcome message saved."), nil
	}
}

// WelcomeText returns the greeting configured for g, with "{name}" replaced
// by name, or "" when welcome messages are disabled.
func WelcomeText(ctx context.Context, settings *repo.SettingsStore, g *domain.Group, name string) (string, error) {
	if g == nil {
		return "", nil
	}
	on, err := settings.GetBool(ctx, g, settingWelcome, false)
	if err != nil || !on {
		return "", err
	}
	text, err := settings.GetText(ctx, g, settingWelcomeMsg, "")
	if err != nil {
		return "", err
	}
	if text == "" {
		text = "Welcome, {name}!"
	}
	return strings.ReplaceAll(text, "{name}", name), nil
}
