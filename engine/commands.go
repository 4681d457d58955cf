package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zzpDavid2/discord-entities/internal/util"
	"github.com/zzpDavid2/discord-entities/persona"
	"github.com/zzpDavid2/discord-entities/platform"
	"github.com/zzpDavid2/discord-entities/scheduler"
)

const commandPrefix = "!"

// handleCommand dispatches a "!"-prefixed message. Unknown commands are
// ignored so the prefix stays shareable with other bots in the channel.
func (e *Engine) handleCommand(ctx context.Context, msg platform.Message) error {
	fields := strings.Fields(msg.Content)
	if len(fields) == 0 {
		return nil
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], commandPrefix))
	args := fields[1:]

	switch cmd {
	case "list":
		return e.cmdList(ctx, msg.ChannelID)
	case "reload":
		return e.cmdReload(ctx, msg.ChannelID, args)
	case "status":
		return e.cmdStatus(ctx, msg.ChannelID)
	case "stop":
		return e.cmdStop(ctx, msg.ChannelID)
	case "speak":
		return e.cmdSpeak(ctx, msg.ChannelID, args)
	case "chat":
		return e.cmdChat(ctx, msg.ChannelID, args)
	case "commands":
		return e.cmdCommands(ctx, msg.ChannelID)
	default:
		return nil
	}
}

func (e *Engine) cmdList(ctx context.Context, channelID string) error {
	personas := e.ListPersonas()
	if len(personas) == 0 {
		return e.adapter.Send(ctx, channelID, "No personas are loaded.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Personas** (%d):\n", len(personas))
	for _, p := range personas {
		desc := util.Shorten(p.Description, 60)
		if desc == "" {
			desc = "no description"
		}
		fmt.Fprintf(&b, "- `@%s` %s: %s\n", p.Handle, p.Name, desc)
	}
	return e.adapter.Send(ctx, channelID, b.String())
}

func (e *Engine) cmdReload(ctx context.Context, channelID string, args []string) error {
	strict := len(args) > 0 && strings.EqualFold(args[0], "strict")
	reg, err := e.Reload(strict)
	if err != nil {
		return e.adapter.Send(ctx, channelID, fmt.Sprintf("Reload failed: %v", err))
	}
	text := fmt.Sprintf("Reloaded %d personas.", reg.Len())
	if conflicts := reg.Conflicts(); len(conflicts) > 0 {
		text += fmt.Sprintf(" %d definition conflict(s) resolved:", len(conflicts))
		for _, c := range conflicts {
			text += fmt.Sprintf("\n- `%s`: %s over %s (%s)", c.Handle, c.Winner, c.Loser, c.Reason)
		}
	}
	return e.adapter.Send(ctx, channelID, text)
}

func (e *Engine) cmdStatus(ctx context.Context, channelID string) error {
	st := e.Status(channelID)
	var b strings.Builder
	fmt.Fprintf(&b, "**Channel status**\nPersonas loaded: %d\n", st.PersonaCount)
	models := make([]string, 0, len(st.ModelCounts))
	for m := range st.ModelCounts {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		fmt.Fprintf(&b, "- %s: %d\n", m, st.ModelCounts[m])
	}
	if st.Stopped {
		fmt.Fprintf(&b, "Cooldown: active, %s remaining\n", st.StopRemaining.Round(time.Second))
	} else {
		b.WriteString("Cooldown: inactive\n")
	}
	if len(st.Participants) > 0 {
		fmt.Fprintf(&b, "In chat: %s\n", strings.Join(st.Participants, ", "))
	} else {
		b.WriteString("In chat: nobody\n")
	}
	return e.adapter.Send(ctx, channelID, b.String())
}

func (e *Engine) cmdStop(ctx context.Context, channelID string) error {
	e.Stop(channelID)
	return e.adapter.Send(ctx, channelID, "Stopping persona activity here for a while.")
}

// cmdSpeak runs the named personas in the given order; with no arguments
// the whole roster speaks once in a shuffled order.
func (e *Engine) cmdSpeak(ctx context.Context, channelID string, args []string) error {
	go e.runSpeak(ctx, channelID, args)
	return nil
}

func (e *Engine) runSpeak(ctx context.Context, channelID string, handles []string) {
	report, unknown, err := e.SpeakSequence(ctx, channelID, handles)
	if len(unknown) > 0 {
		_ = e.adapter.Send(ctx, channelID, "Unknown personas: "+strings.Join(unknown, ", "))
	}
	switch {
	case errors.Is(err, persona.ErrNotFound):
		// already reported via unknown handles
	case errors.Is(err, scheduler.ErrSessionActive):
		_ = e.adapter.Send(ctx, channelID, "A chat session is already running here. `!stop` it first.")
	case err != nil:
		e.logger.Warn("speak sequence failed", "channel_id", channelID, "error", err)
	default:
		e.logger.Debug("speak sequence finished",
			"channel_id", channelID, "turns", report.Turns, "reason", report.Reason)
	}
}

// cmdChat accepts an optional turn count anywhere among the arguments,
// plus persona handles. With no handles the whole roster chats.
func (e *Engine) cmdChat(ctx context.Context, channelID string, args []string) error {
	turns, handles, err := chatArgs(args)
	if err != nil {
		return e.adapter.Send(ctx, channelID, "Turn count must be at least 1.")
	}
	go e.runChat(ctx, channelID, handles, turns)
	return nil
}

// chatArgs splits command arguments into a turn count and handles. The
// first argument that parses as an integer sets the turn count wherever it
// appears; every other argument is a handle.
func chatArgs(args []string) (int, []string, error) {
	turns := DefaultChatTurns
	parsed := false
	var handles []string
	for _, a := range args {
		if !parsed {
			if n, err := strconv.Atoi(a); err == nil {
				if n < 1 {
					return 0, nil, fmt.Errorf("turn count %d out of range", n)
				}
				turns = n
				parsed = true
				continue
			}
		}
		handles = append(handles, a)
	}
	return turns, handles, nil
}

func (e *Engine) runChat(ctx context.Context, channelID string, handles []string, turns int) {
	report, unknown, err := e.StartChat(ctx, channelID, handles, turns)
	if len(unknown) > 0 {
		_ = e.adapter.Send(ctx, channelID, "Unknown personas: "+strings.Join(unknown, ", "))
	}
	switch {
	case errors.Is(err, scheduler.ErrNeedTwoPersonas):
		_ = e.adapter.Send(ctx, channelID, "A chat needs at least two personas.")
	case errors.Is(err, scheduler.ErrSessionActive):
		_ = e.adapter.Send(ctx, channelID, "A chat session is already running here. `!stop` it first.")
	case err != nil:
		e.logger.Warn("chat session failed", "channel_id", channelID, "error", err)
	default:
		e.logger.Debug("chat session finished",
			"channel_id", channelID, "turns", report.Turns, "reason", report.Reason)
	}
}

func (e *Engine) cmdCommands(ctx context.Context, channelID string) error {
	lines := []string{
		"`!list` - show loaded personas",
		"`!speak <handle> [handle...]` - have personas speak once each",
		"`!chat [turns] [handle...]` - start a multi-turn persona chat",
		"`!stop` - pause persona activity in this channel",
		"`!status` - show this channel's state",
		"`!reload [strict]` - reload persona definitions",
		"`!commands` - show this help",
	}
	return e.adapter.Send(ctx, channelID, "**Commands**\n"+strings.Join(lines, "\n"))
}
