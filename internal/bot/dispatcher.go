package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-bot/internal/domain"
)

const tracerName = "github.com/tbourn/go-chat-bot/internal/bot"

// Options tune dispatcher policy.
type Options struct {
	// BotUsername is the bot's handle, used to accept "/cmd@handle".
	BotUsername string
	// DeveloperIDs are platform user ids granted the developer role in
	// addition to the global setting's default admin.
	DeveloperIDs []int64
	// RejectUnauthorized replies with RejectionText instead of staying silent
	// when a caller lacks the required role.
	RejectUnauthorized bool
	RejectionText      string
	// Limiter throttles commands per user; nil disables throttling.
	Limiter *Limiter
}

// Request is one inbound command candidate.
type Request struct {
	// Text is the message text or the inline query.
	Text string
	// Message is the inbound message; nil on the inline path.
	Message *domain.Message
	// Source is the tracked calling user. Required.
	Source *domain.User
	// Group is the tracked group, nil outside groups.
	Group *domain.Group
}

// Dispatcher matches requests to descriptors, enforces roles and runs
// handlers. Each call to Dispatch is independent and may run concurrently.
type Dispatcher struct {
	reg    *Registry
	deps   Deps
	opts   Options
	tracer trace.Tracer
}

// NewDispatcher seals reg and returns a dispatcher over it.
func NewDispatcher(reg *Registry, deps Deps, opts Options) *Dispatcher {
	reg.Seal()
	if opts.RejectionText == "" {
		opts.RejectionText = "You are not allowed to use this command."
	}
	return &Dispatcher{
		reg:    reg,
		deps:   deps,
		opts:   opts,
		tracer: otel.Tracer(tracerName),
	}
}

// Registry returns the dispatcher's (sealed) registry.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// RoleOf returns the effective role of u.
func (d *Dispatcher) RoleOf(u *domain.User) Role {
	if u == nil {
		return RoleNone
	}
	if d.deps.Global != nil && d.deps.Global.TelegramDefaultAdminUserID != 0 &&
		u.UserID == d.deps.Global.TelegramDefaultAdminUserID {
		return RoleDeveloper
	}
	if slices.Contains(d.opts.DeveloperIDs, u.UserID) {
		return RoleDeveloper
	}
	if u.IsBotAdmin {
		return RoleBotAdmin
	}
	return RoleNone
}

// Dispatch runs the command in req, if any. It reports false when nothing
// should be sent back: unknown trigger, silent rejection, throttling or an
// empty response. Handler errors and panics are turned into a reply.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, bool) {
	inline := req.Message == nil
	trigger, args, ok := ParseCommand(req.Text, d.opts.BotUsername, inline)
	if !ok || req.Source == nil {
		return Response{}, false
	}

	desc, ok := d.reg.Lookup(trigger)
	if !ok || (inline && desc.DontSearchInline) {
		unmatchedTotal.Inc()
		return Response{}, false
	}

	ctx, span := d.tracer.Start(ctx, "command "+desc.Name, trace.WithAttributes(
		attribute.String("bot.command", desc.Name),
		attribute.String("bot.trigger", trigger),
		attribute.Int64("bot.user_id", req.Source.UserID),
		attribute.Bool("bot.inline", inline),
	))
	defer span.End()

	lg := log.With().
		Str("command", desc.Name).
		Int64("user_id", req.Source.UserID).
		Bool("inline", inline).
		Logger()

	role := d.RoleOf(req.Source)
	if !role.Allows(desc.Role) {
		commandsTotal.WithLabelValues(desc.Name, outcomeDenied).Inc()
		span.SetAttributes(attribute.String("bot.outcome", outcomeDenied))
		lg.Info().Str("required", desc.Role.String()).Msg("command denied")
		if d.opts.RejectUnauthorized {
			return Reply(d.opts.RejectionText), true
		}
		return Response{}, false
	}
	if req.Source.Grounded && role < RoleDeveloper {
		commandsTotal.WithLabelValues(desc.Name, outcomeGrounded).Inc()
		span.SetAttributes(attribute.String("bot.outcome", outcomeGrounded))
		lg.Debug().Msg("grounded user ignored")
		return Response{}, false
	}
	if d.opts.Limiter != nil && !d.opts.Limiter.Allow(req.Source.UserID) {
		commandsTotal.WithLabelValues(desc.Name, outcomeThrottled).Inc()
		span.SetAttributes(attribute.String("bot.outcome", outcomeThrottled))
		lg.Debug().Msg("command throttled")
		return Response{}, false
	}

	c := &Context{
		Deps:     d.deps,
		Source:   req.Source,
		Group:    req.Group,
		Trigger:  trigger,
		Args:     args,
		Message:  req.Message,
		Role:     role,
		Registry: d.reg,
	}

	start := time.Now()
	resp, outcome := d.run(ctx, desc, c)
	commandDuration.WithLabelValues(desc.Name).Observe(time.Since(start).Seconds())
	if outcome == outcomeOK && resp.Empty() {
		outcome = outcomeSilent
	}
	commandsTotal.WithLabelValues(desc.Name, outcome).Inc()
	span.SetAttributes(attribute.String("bot.outcome", outcome))
	if outcome == outcomeError || outcome == outcomePanic {
		span.SetStatus(codes.Error, resp.Text)
	}
	lg.Debug().Str("outcome", outcome).Dur("latency", time.Since(start)).Msg("command")

	if resp.Empty() {
		return Response{}, false
	}
	return resp, true
}

// run invokes the handler, converting errors and panics into a reply.
func (d *Dispatcher) run(ctx context.Context, desc Descriptor, c *Context) (resp Response, outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("command", desc.Name).
				Msg("command panicked")
			resp, outcome = Reply(failureText(fmt.Sprint(rec))), outcomePanic
		}
	}()

	resp, err := desc.Handler(ctx, c)
	if err != nil {
		log.Warn().Err(err).Str("command", desc.Name).Msg("command failed")
		return Reply(failureText(err.Error())), outcomeError
	}
	return resp, outcomeOK
}

// failureText keeps a failed command from producing an empty reply.
func failureText(detail string) string {
	if strings.TrimSpace(detail) == "" {
		return "command failed"
	}
	return detail
}
