package bot

import (
	"context"
	"strings"
)

// Role is the privilege a descriptor requires from its caller.
type Role int

const (
	// RoleNone lets anyone run the command.
	RoleNone Role = iota
	// RoleBotAdmin requires the caller's IsBotAdmin flag (developers qualify too).
	RoleBotAdmin
	// RoleDeveloper requires the caller to be a configured developer.
	RoleDeveloper
)

func (r Role) String() string {
	switch r {
	case RoleBotAdmin:
		return "bot-admin"
	case RoleDeveloper:
		return "developer"
	default:
		return "none"
	}
}

// Allows reports whether a caller holding r may run a command requiring need.
func (r Role) Allows(need Role) bool { return r >= need }

// HandlerFunc executes a command. A returned error becomes the reply text.
type HandlerFunc func(ctx context.Context, c *Context) (Response, error)

// Descriptor declares a command. Descriptors are registered once at startup
// and never change afterwards.
type Descriptor struct {
	// Name identifies the command in logs, metrics and help output.
	// Defaults to the first trigger.
	Name string
	// Triggers are the tokens that select the command, without the leading
	// "/" or "!". Matching is case-insensitive.
	Triggers []string
	// Role is the privilege required to run the command.
	Role Role
	// Parameters document accepted arguments; they are not validated.
	Parameters []string
	// HelpText is a one-line description shown by help.
	HelpText string
	// DontSearchInline hides the command from inline queries.
	DontSearchInline bool
	// Handler runs the command.
	Handler HandlerFunc
}

// Usage renders "/trigger <param> | <param>" for help output.
func (d Descriptor) Usage() string {
	if len(d.Triggers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(d.Triggers[0])
	if len(d.Parameters) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(d.Parameters, " | "))
	}
	return b.String()
}
