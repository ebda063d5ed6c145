package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ex-sniper/internal/bump"
	"ex-sniper/internal/llm"
	"ex-sniper/pkg/sniper"
)

// Categories shown by help.
const (
	CategoryGeneral  = "General"
	CategoryUtility  = "Utility"
	CategoryFun      = "Fun"
	CategoryRequests = "Requests"
)

const (
	purgePageSize = 100
	clearLines    = 60
	// blankLine is a braille blank, which the client renders but does not trim.
	blankLine = "⠀\n"
	askTimeout    = 90 * time.Second
	lookupTimeout = 10 * time.Second
)

// Snipes reads the history cache.
type Snipes interface {
	Get(messageID string) (sniper.Message, bool)
	GetDeleted(channelID string) (sniper.Message, bool)
	GetUpdates(channelID string) ([]sniper.Message, bool)
}

// Bumps manages recurring messages.
type Bumps interface {
	Add(id, channelID, payload string, delay time.Duration) (bool, error)
	AddSchedule(id, channelID, payload, schedule string) (bool, error)
	Remove(id string) (bool, error)
	Start(id string) (bool, error)
	Stop(id string) (bool, error)
	List() []bump.Job
}

// Spies manages the watch list.
type Spies interface {
	Add(id string) (bool, error)
	Remove(id string) (bool, error)
	List() []string
}

// SessionControl exposes the live session to status and reconnect.
type SessionControl interface {
	Status() string
	Reconnect() error
}

// Asker answers prompts for a named provider.
type Asker interface {
	Ask(ctx context.Context, provider string, prompt string) (string, error)
}

// Dependencies are the collaborators of the builtin commands. Nil
// collaborators make their commands answer with a usage error.
type Dependencies struct {
	Users    sniper.UserResolver
	Snipes   Snipes
	Bumps    Bumps
	Spies    Spies
	Profile  sniper.ProfileEditor
	Session  SessionControl
	Asker    Asker
	Notifier sniper.Notifier
	Logger   *slog.Logger
	// SelfID returns the authenticated account id.
	SelfID func() string
}

type builtins struct {
	deps Dependencies
}

// Builtins returns the builtin command specs in help order.
func Builtins(deps Dependencies) []Spec {
	if deps.Notifier == nil {
		deps.Notifier = sniper.NopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SelfID == nil {
		deps.SelfID = func() string { return "" }
	}
	b := &builtins{deps: deps}

	return []Spec{
		{Name: "help", Category: CategoryGeneral, MaxArgs: 1, Handler: b.help,
			Description: "Shows all commands with their descriptions or shows help for a specific command.",
			Usage:       "help <command>"},
		{Name: "ping", Category: CategoryGeneral, Handler: b.ping,
			Description: "Checks the latency of message edits.",
			Usage:       "ping"},
		{Name: "esnipe", Category: CategoryGeneral, Handler: b.esnipe,
			Description: "Snipe last edited message.",
			Usage:       "esnipe"},
		{Name: "dsnipe", Category: CategoryGeneral, Handler: b.dsnipe,
			Description: "Snipe last deleted message.",
			Usage:       "dsnipe"},
		{Name: "status", Category: CategoryGeneral, Handler: b.status,
			Description: "Shows the gateway session state.",
			Usage:       "status"},
		{Name: "reconnect", Category: CategoryGeneral, Handler: b.reconnect,
			Description: "Restarts the gateway session.",
			Usage:       "reconnect"},
		{Name: "edit", Category: CategoryFun, MinArgs: 1, MaxArgs: 1, Handler: b.edit,
			Description: "Edits the last message.",
			Usage:       `edit <"message">`},
		{Name: "valid", Category: CategoryFun, Handler: b.verdict("This opinion has been validated and confirmed by AI."),
			Description: "Validates the last message jokingly.",
			Usage:       "valid"},
		{Name: "invalid", Category: CategoryFun, Handler: b.verdict("This opinion is invalid and not confirmed by AI."),
			Description: "Invalidates the last message jokingly.",
			Usage:       "invalid"},
		{Name: "gottem", Category: CategoryFun, Handler: b.verdict("**Got'em good!** 💥👊😎 LMFAO 🚀🌟💯"),
			Description: "Got'em LMFAO.",
			Usage:       "gottem"},
		{Name: "clear", Category: CategoryFun, Handler: b.clear,
			Description: "Clears the chat.",
			Usage:       "clear"},
		{Name: "info", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.info,
			Description: "Gets information about a user.",
			Usage:       "info <user_id>"},
		{Name: "avatar", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.avatar,
			Description: "Returns a user's avatar and banner.",
			Usage:       "avatar <user_id>"},
		{Name: "setpfp", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.setAvatar,
			Description: "Change profile picture.",
			Usage:       "setpfp <image_url>"},
		{Name: "purge", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.purge,
			Description: "Purge your own messages.",
			Usage:       "purge <num_of_messages>"},
		{Name: "bump_add", Category: CategoryUtility, MinArgs: 4, MaxArgs: 4, Handler: b.bumpAdd,
			Description: "Add a new bump message.",
			Usage:       `bump_add <bump_id> <channel_id> <delay> <"Example Message">`},
		{Name: "bump_cron", Category: CategoryUtility, MinArgs: 4, MaxArgs: 4, Handler: b.bumpCron,
			Description: "Add a new bump message sent on a cron schedule.",
			Usage:       `bump_cron <bump_id> <channel_id> <"*/30 * * * *"> <"Example Message">`},
		{Name: "bump_delete", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.bumpDelete,
			Description: "Delete a bump message.",
			Usage:       "bump_delete <bump_id>"},
		{Name: "bump_start", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.bumpStart,
			Description: "Start a bump message.",
			Usage:       "bump_start <bump_id>"},
		{Name: "bump_stop", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.bumpStop,
			Description: "Stop a bump message.",
			Usage:       "bump_stop <bump_id>"},
		{Name: "bump_list", Category: CategoryUtility, Handler: b.bumpList,
			Description: "List all bump messages.",
			Usage:       "bump_list"},
		{Name: "spy_add", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.spyAdd,
			Description: "Add a new id to spy on.",
			Usage:       "spy_add <user_id>"},
		{Name: "spy_remove", Category: CategoryUtility, MinArgs: 1, MaxArgs: 1, Handler: b.spyRemove,
			Description: "Remove a spy.",
			Usage:       "spy_remove <user_id>"},
		{Name: "spy_list", Category: CategoryUtility, Handler: b.spyList,
			Description: "List all spies.",
			Usage:       "spy_list"},
		{Name: llm.ProviderOpenAI, Category: CategoryRequests, MinArgs: 1, MaxArgs: 1, Handler: b.ask(llm.ProviderOpenAI),
			Description: "Asks GPT a question.",
			Usage:       `gpt <"prompt">`},
		{Name: llm.ProviderGemini, Category: CategoryRequests, MinArgs: 1, MaxArgs: 1, Handler: b.ask(llm.ProviderGemini),
			Description: "Asks Gemini a question.",
			Usage:       `gemini <"prompt">`},
	}
}

func (b *builtins) help(ctx context.Context, call *Call) error {
	if name := call.Arg(0); name != "" {
		spec, ok := call.Table.Lookup(name)
		if !ok {
			if suggestion := call.Table.Suggest(name); suggestion != "" {
				return usageError("Unknown command '%s'. Did you mean '%s'?", name, suggestion)
			}
			return usageError("Unknown command '%s'", name)
		}
		return call.Reply(ctx, titleCommands, fmt.Sprintf("%s: %s\n> Usage: %s", spec.Name, spec.Description, spec.Usage))
	}

	var categories []string
	grouped := make(map[string][]Spec)
	for _, spec := range call.Table.Specs() {
		if _, seen := grouped[spec.Category]; !seen {
			categories = append(categories, spec.Category)
		}
		grouped[spec.Category] = append(grouped[spec.Category], spec)
	}

	var body strings.Builder
	for _, category := range categories {
		fmt.Fprintf(&body, "> ### %s ###\n", category)
		for _, spec := range grouped[category] {
			fmt.Fprintf(&body, "> - %s: %s\n", spec.Name, spec.Description)
		}
	}

	return call.Reply(ctx, titleCommands, body.String())
}

func (b *builtins) ping(ctx context.Context, call *Call) error {
	const rounds = 2

	var total, lowest, highest time.Duration
	for round := 0; round < rounds; round++ {
		started := time.Now()
		if err := call.EditReply(ctx, "🏓 Pong!"); err != nil {
			return err
		}
		latency := time.Since(started)
		total += latency
		if round == 0 || latency < lowest {
			lowest = latency
		}
		highest = max(highest, latency)
	}

	return call.EditReply(ctx, fmt.Sprintf(
		"🏓 Average Ping: %dms\n🏆 Lowest Ping: %dms\n🥇 Highest Ping: %dms",
		(total / rounds).Milliseconds(),
		lowest.Milliseconds(),
		highest.Milliseconds(),
	))
}

func (b *builtins) edit(ctx context.Context, call *Call) error {
	if _, err := call.client.EditMessage(ctx, call.Origin.ChannelID, call.Origin.ID, "[Edited] "+call.Arg(0)); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}

	return nil
}

func (b *builtins) verdict(text string) Handler {
	return func(ctx context.Context, call *Call) error {
		return call.EditReply(ctx, text)
	}
}

func (b *builtins) clear(ctx context.Context, call *Call) error {
	return call.Send(ctx, strings.Repeat(blankLine, clearLines))
}

func (b *builtins) esnipe(ctx context.Context, call *Call) error {
	const title = "Sniper"
	if b.deps.Snipes == nil {
		return usageError("History cache is not available")
	}

	history, ok := b.deps.Snipes.GetUpdates(call.Origin.ChannelID)
	if !ok || len(history) == 0 {
		return call.Reply(ctx, title, "No recent updated message found.")
	}
	latest := history[len(history)-1]
	if selfID := b.deps.SelfID(); selfID != "" && latest.AuthorID() == selfID {
		return call.Reply(ctx, title, "No recent updated message found.")
	}

	versions := make([]string, 0, len(history)+1)
	for _, snapshot := range history {
		versions = append(versions, fmt.Sprintf("[Edited] **%s**: %s", snapshot.AuthorTag(), snapshot.Content))
	}
	if current, live := b.deps.Snipes.Get(latest.ID); live {
		versions = append(versions, fmt.Sprintf("[Current] **%s**: %s", current.AuthorTag(), current.Content))
	}

	return call.Reply(ctx, title, strings.Join(versions, " -> "))
}

func (b *builtins) dsnipe(ctx context.Context, call *Call) error {
	const title = "Sniper"
	if b.deps.Snipes == nil {
		return usageError("History cache is not available")
	}

	deleted, ok := b.deps.Snipes.GetDeleted(call.Origin.ChannelID)
	selfID := b.deps.SelfID()
	if !ok || deleted.Author == nil || (selfID != "" && deleted.AuthorID() == selfID) {
		return call.Reply(ctx, title, "No recent deleted message found.")
	}

	return call.Reply(ctx, title, fmt.Sprintf("[Deleted] **%s**: %s%s", deleted.AuthorTag(), deleted.Content, deleted.AttachmentSuffix()))
}

func (b *builtins) status(ctx context.Context, call *Call) error {
	if b.deps.Session == nil {
		return usageError("Session control is not available")
	}

	return call.Reply(ctx, "Status", "Gateway: "+b.deps.Session.Status())
}

func (b *builtins) reconnect(ctx context.Context, call *Call) error {
	if b.deps.Session == nil {
		return usageError("Session control is not available")
	}
	if err := call.Reply(ctx, "Status", "Reconnecting..."); err != nil {
		return err
	}
	if err := b.deps.Session.Reconnect(); err != nil {
		return fmt.Errorf("reconnect session: %w", err)
	}

	return nil
}

func (b *builtins) resolveUser(ctx context.Context, raw string) (sniper.User, error) {
	userID, ok := ParseUserID(raw)
	if !ok {
		return sniper.User{}, usageError("Invalid user ID or mention.")
	}
	if b.deps.Users == nil {
		return sniper.User{}, usageError("User lookup is not available")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	user, err := b.deps.Users.User(lookupCtx, userID)
	if err != nil {
		if errors.Is(err, sniper.ErrUnknownUser) || sniper.IsNotFound(err) {
			return sniper.User{}, usageError("User '%s' not found.", raw)
		}
		return sniper.User{}, fmt.Errorf("lookup user %s: %w", userID, err)
	}

	return user, nil
}

func (b *builtins) info(ctx context.Context, call *Call) error {
	user, err := b.resolveUser(ctx, call.Arg(0))
	if err != nil {
		return err
	}

	lines := []string{
		"User ID: " + user.ID,
		"Username: " + user.Tag(),
	}
	if created, err := sniper.SnowflakeTime(user.ID); err == nil {
		lines = append(lines, "Account Created: "+created.Format(time.DateTime))
	}
	if user.GlobalName != "" {
		lines = append(lines, "Global Name: "+user.GlobalName)
	}
	if user.Bot {
		lines = append(lines, "Bot: yes")
	}
	if avatar := user.AvatarURL(); avatar != "" {
		lines = append(lines, "Avatar: "+avatar)
	}
	if banner := user.BannerURL(); banner != "" {
		lines = append(lines, "Banner: "+banner)
	}

	return call.Reply(ctx, "User Information", strings.Join(lines, "\n"))
}

func (b *builtins) avatar(ctx context.Context, call *Call) error {
	user, err := b.resolveUser(ctx, call.Arg(0))
	if err != nil {
		return err
	}

	lines := []string{"User ID: " + user.ID}
	if avatar := user.AvatarURL(); avatar != "" {
		lines = append(lines, "Avatar: "+avatar)
	}
	if banner := user.BannerURL(); banner != "" {
		lines = append(lines, "Banner: "+banner)
	}
	if len(lines) == 1 {
		lines = append(lines, "No avatar or banner set.")
	}

	return call.Reply(ctx, "User Avatar", strings.Join(lines, "\n"))
}

func (b *builtins) setAvatar(ctx context.Context, call *Call) error {
	if b.deps.Profile == nil {
		return usageError("Profile editing is not available")
	}

	err := b.deps.Profile.SetAvatar(ctx, call.Arg(0))
	if errors.Is(err, sniper.ErrInvalidOutboundRequest) {
		return usageError("Invalid image URL: %s", call.Arg(0))
	}
	if err != nil {
		b.deps.Logger.WarnContext(ctx, "set avatar failed", "error", err)
		return call.Reply(ctx, "Avatar", "Failed to change profile picture.")
	}

	return call.Reply(ctx, "Avatar", "Successfully changed profile picture.")
}

func (b *builtins) purge(ctx context.Context, call *Call) error {
	count, err := strconv.Atoi(strings.Trim(call.Arg(0), `"`))
	if err != nil || count <= 0 {
		return usageError("Purge count must be a positive number")
	}
	selfID := b.deps.SelfID()
	if selfID == "" {
		return usageError("Session is not authenticated")
	}

	channelID := call.Origin.ChannelID
	var doomed []string
	before := call.Origin.ID
	for len(doomed) < count {
		page, err := call.client.ListMessages(ctx, channelID, purgePageSize, before)
		if err != nil {
			return fmt.Errorf("list messages before %s: %w", before, err)
		}
		if len(page) == 0 {
			break
		}
		for _, message := range page {
			if message.AuthorID() == selfID && len(doomed) < count {
				doomed = append(doomed, message.ID)
			}
		}
		before = page[len(page)-1].ID
	}

	call.deleteOrigin(ctx)
	if len(doomed) < count {
		b.deps.Notifier.Notify(ctx, sniper.Notification{
			Level:  sniper.LevelNotification,
			Source: commandSource,
			Text:   fmt.Sprintf("Could only find %d of your messages in the channel history.", len(doomed)),
		})
	}

	var failures []error
	for _, messageID := range doomed {
		if err := call.client.DeleteMessage(ctx, channelID, messageID); err != nil {
			failures = append(failures, fmt.Errorf("delete %s: %w", messageID, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("purge: %d of %d deletions failed: %w", len(failures), len(doomed), errors.Join(failures...))
	}

	return nil
}

func (b *builtins) bumpAdd(ctx context.Context, call *Call) error {
	if b.deps.Bumps == nil {
		return usageError("Bumps are not available")
	}
	seconds, err := strconv.Atoi(call.Arg(2))
	if err != nil || seconds <= 0 {
		return usageError("Delay must be a positive number of seconds")
	}
	id, channelID := call.Arg(0), ParseChannelID(call.Arg(1))

	added, err := b.deps.Bumps.Add(id, channelID, call.Arg(3), time.Duration(seconds)*time.Second)
	return b.replyBumpAdded(ctx, call, id, added, err)
}

func (b *builtins) bumpCron(ctx context.Context, call *Call) error {
	if b.deps.Bumps == nil {
		return usageError("Bumps are not available")
	}
	id, channelID := call.Arg(0), ParseChannelID(call.Arg(1))

	added, err := b.deps.Bumps.AddSchedule(id, channelID, call.Arg(3), call.Arg(2))
	return b.replyBumpAdded(ctx, call, id, added, err)
}

func (b *builtins) replyBumpAdded(ctx context.Context, call *Call, id string, added bool, err error) error {
	if errors.Is(err, bump.ErrInvalidJob) {
		return usageError("Invalid bump: %v", err)
	}
	if err != nil {
		return fmt.Errorf("add bump %s: %w", id, err)
	}
	if !added {
		return call.Reply(ctx, "Bumper", fmt.Sprintf("A Bump with ID: %s already exists.", id))
	}

	return call.Reply(ctx, "Bumper", fmt.Sprintf("Successfully added bump message with ID: %s", id))
}

func (b *builtins) bumpDelete(ctx context.Context, call *Call) error {
	if b.deps.Bumps == nil {
		return usageError("Bumps are not available")
	}

	return b.bumpToggle(ctx, call, b.deps.Bumps.Remove, "Successfully deleted bump message with ID: %s", "No bump message found with ID: %s")
}

func (b *builtins) bumpStart(ctx context.Context, call *Call) error {
	if b.deps.Bumps == nil {
		return usageError("Bumps are not available")
	}

	return b.bumpToggle(ctx, call, b.deps.Bumps.Start, "Bumper started for ID: %s", "No Bump found with ID: %s")
}

func (b *builtins) bumpStop(ctx context.Context, call *Call) error {
	if b.deps.Bumps == nil {
		return usageError("Bumps are not available")
	}

	return b.bumpToggle(ctx, call, b.deps.Bumps.Stop, "Bumper stopped for ID: %s", "No Bump found with ID: %s")
}

func (b *builtins) bumpToggle(ctx context.Context, call *Call, apply func(string) (bool, error), found string, missing string) error {
	id := call.Arg(0)
	ok, err := apply(id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", call.Name, id, err)
	}
	if !ok {
		return call.Reply(ctx, "Bumper", fmt.Sprintf(missing, id))
	}

	return call.Reply(ctx, "Bumper", fmt.Sprintf(found, id))
}

func (b *builtins) bumpList(ctx context.Context, call *Call) error {
	if b.deps.Bumps == nil {
		return usageError("Bumps are not available")
	}
	jobs := b.deps.Bumps.List()
	if len(jobs) == 0 {
		return call.Reply(ctx, "Bumper", "No registered bumps found.")
	}

	var body strings.Builder
	body.WriteString("Registered bumps:\n")
	for _, job := range jobs {
		status := "Inactive"
		if job.Active {
			status = "Active"
		}
		timing := fmt.Sprintf("Delay: %d", int64(job.Delay/time.Second))
		if job.Schedule != "" {
			timing = "Schedule: " + job.Schedule
		}
		fmt.Fprintf(&body, "> Bump ID: %s, Target Channel: %s, %s, Status: %s\n", job.ID, job.ChannelID, timing, status)
	}

	return call.Reply(ctx, "Bumper", body.String())
}

func (b *builtins) spyAdd(ctx context.Context, call *Call) error {
	if b.deps.Spies == nil {
		return usageError("Spy list is not available")
	}
	userID, ok := ParseUserID(call.Arg(0))
	if !ok {
		return call.Reply(ctx, "Spy", "Invalid user ID or mention.")
	}
	if userID == b.deps.SelfID() {
		return call.Reply(ctx, "Spy", "You cannot add yourself as a spy.")
	}

	added, err := b.deps.Spies.Add(userID)
	if err != nil {
		return fmt.Errorf("add spy %s: %w", userID, err)
	}
	if !added {
		return call.Reply(ctx, "Spy", fmt.Sprintf("A spy with user ID: %s already exists.", userID))
	}

	return call.Reply(ctx, "Spy", fmt.Sprintf("Successfully added spy with user ID: %s", userID))
}

func (b *builtins) spyRemove(ctx context.Context, call *Call) error {
	if b.deps.Spies == nil {
		return usageError("Spy list is not available")
	}
	userID, ok := ParseUserID(call.Arg(0))
	if !ok {
		userID = call.Arg(0)
	}

	removed, err := b.deps.Spies.Remove(userID)
	if err != nil {
		return fmt.Errorf("remove spy %s: %w", userID, err)
	}
	if !removed {
		return call.Reply(ctx, "Spy", fmt.Sprintf("No spy with user ID: %s found.", userID))
	}

	return call.Reply(ctx, "Spy", fmt.Sprintf("Successfully removed spy with user ID: %s", userID))
}

func (b *builtins) spyList(ctx context.Context, call *Call) error {
	if b.deps.Spies == nil {
		return usageError("Spy list is not available")
	}
	spies := b.deps.Spies.List()
	if len(spies) == 0 {
		return call.Reply(ctx, "Spy", "Current spied people: none")
	}

	return call.Reply(ctx, "Spy", "Current spied people: "+strings.Join(spies, ", "))
}

func (b *builtins) ask(provider string) Handler {
	return func(ctx context.Context, call *Call) error {
		if b.deps.Asker == nil {
			return usageError("Provide an API key to use this command")
		}
		prompt := call.Arg(0)

		askCtx, cancel := context.WithTimeout(ctx, askTimeout)
		defer cancel()

		answer, err := b.deps.Asker.Ask(askCtx, provider, prompt)
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			return usageError("Provide an API key to use this command")
		case errors.Is(err, llm.ErrEmptyPrompt):
			return usageError("Prompt must not be empty")
		case err != nil:
			return fmt.Errorf("ask %s: %w", provider, err)
		}

		return call.Send(ctx, fmt.Sprintf("```Prompt: %s\n\nAnswer: %s```", prompt, answer))
	}
}

// ParseUserID accepts a raw numeric id or a <@id> / <@!id> mention.
func ParseUserID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "<@") && strings.HasSuffix(raw, ">") {
		raw = strings.TrimPrefix(raw[2:len(raw)-1], "!")
	}
	if raw == "" {
		return "", false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	return raw, true
}

// ParseChannelID strips the <#id> channel mention form.
func ParseChannelID(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "<#") && strings.HasSuffix(raw, ">") {
		return raw[2 : len(raw)-1]
	}

	return raw
}
