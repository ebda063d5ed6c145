package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"ex-sniper/internal/command"
	"ex-sniper/internal/session"
	"ex-sniper/internal/settings"
	"ex-sniper/pkg/sniper"
)

const (
	consolePrompt      = "sniper> "
	consoleHistoryFile = ".sniper_history"
)

var errQuit = errors.New("quit")

const consoleHelp = `Commands:
  start [token]                 start the session, optionally with a new token
  stop                          stop the session
  restart                       reconnect with the current token
  status                        show the session state
  presence <status> [afk]       set online, idle, dnd or invisible
  prefix [prefix]               show or set the command prefix
  show [flag on|off]            show or toggle display flags
  webhook [url|off]             show, set, or disable the webhook
  webhook trigger <name> on|off toggle a webhook trigger (connect, updated, deleted)
  relationships                 list friends, blocks, and pending requests
  unfriend <user_id>            remove a friend, block, or request
  quit                          exit`

// consoleNotifier echoes notifications to the console output.
type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleNotifier() *consoleNotifier {
	return &consoleNotifier{out: os.Stdout}
}

func (n *consoleNotifier) setOutput(out io.Writer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.out = out
}

func (n *consoleNotifier) printf(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, format, args...)
}

// Notify implements sniper.Notifier. Debug notifications stay in the log.
func (n *consoleNotifier) Notify(_ context.Context, notification sniper.Notification) {
	if notification.Level == sniper.LevelDebug {
		return
	}
	n.printf("%s\n", formatNotification(notification))
}

func formatNotification(notification sniper.Notification) string {
	var line strings.Builder
	fmt.Fprintf(&line, "[%s]", notification.Level)
	if notification.Spy {
		line.WriteString("[spy]")
	}
	if notification.Source != "" {
		fmt.Fprintf(&line, " %s:", notification.Source)
	}
	line.WriteString(" ")
	line.WriteString(notification.Text)
	if notification.Link != "" {
		fmt.Fprintf(&line, " (%s)", notification.Link)
	}

	return line.String()
}

// sessionClient is the façade surface the console drives.
type sessionClient interface {
	Start(ctx context.Context, token string) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Status() string
	SetPresence(presence string, afk bool) error
	Settings() settings.Settings
	Webhook() settings.Webhook
	SetPrefix(prefix string) error
	SetShow(flag string, enabled bool) error
	SetWebhookURL(rawURL string) error
	SetWebhookTrigger(trigger string, enabled bool) error
}

var _ sessionClient = (*session.Client)(nil)

type console struct {
	client    sessionClient
	relations sniper.RelationshipManager
	out       *consoleNotifier
}

func newConsole(client sessionClient, relations sniper.RelationshipManager, out *consoleNotifier) *console {
	return &console{client: client, relations: relations, out: out}
}

// execute runs one console line. It returns errQuit when the operator exits.
func (c *console) execute(ctx context.Context, line string) error {
	args, err := command.Split(line)
	if errors.Is(err, command.ErrEmptyLine) {
		return nil
	}
	if err != nil {
		return err
	}

	name, args := strings.ToLower(args[0]), args[1:]
	switch name {
	case "help", "?":
		c.out.printf("%s\n", consoleHelp)
	case "quit", "exit":
		return errQuit
	case "start":
		token := ""
		if len(args) > 0 {
			token = args[0]
		}
		if err := c.client.Start(ctx, token); err != nil {
			return err
		}
		c.out.printf("starting session\n")
	case "stop":
		if err := c.client.Stop(ctx); err != nil {
			return err
		}
		c.out.printf("session stopped\n")
	case "restart":
		if err := c.client.Restart(ctx); err != nil {
			return err
		}
		c.out.printf("restarting session\n")
	case "status":
		c.out.printf("%s\n", c.client.Status())
	case "presence":
		return c.presence(args)
	case "prefix":
		return c.prefix(args)
	case "show":
		return c.show(args)
	case "webhook":
		return c.webhook(args)
	case "relationships":
		return c.listRelationships(ctx)
	case "unfriend":
		return c.unfriend(ctx, args)
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}

	return nil
}

func (c *console) presence(args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: presence <online|idle|dnd|invisible> [afk]")
	}
	afk := len(args) == 2 && strings.EqualFold(args[1], "afk")
	if len(args) == 2 && !afk {
		return fmt.Errorf("usage: presence <online|idle|dnd|invisible> [afk]")
	}
	if err := c.client.SetPresence(args[0], afk); err != nil {
		return err
	}
	c.out.printf("presence set to %s\n", strings.ToLower(args[0]))

	return nil
}

func (c *console) prefix(args []string) error {
	switch len(args) {
	case 0:
		c.out.printf("prefix: %s\n", c.client.Settings().Prefix)
		return nil
	case 1:
		if err := c.client.SetPrefix(args[0]); err != nil {
			return err
		}
		c.out.printf("prefix set to %s\n", c.client.Settings().Prefix)
		return nil
	default:
		return fmt.Errorf("usage: prefix [prefix]")
	}
}

func (c *console) show(args []string) error {
	switch len(args) {
	case 0:
		current := c.client.Settings()
		c.out.printf("server=%s dm=%s updated=%s deleted=%s bot=%s\n",
			onOff(current.ShowServerMessages),
			onOff(current.ShowDMMessages),
			onOff(current.ShowUpdatedMessages),
			onOff(current.ShowDeletedMessages),
			onOff(current.ShowBotMessages),
		)
		return nil
	case 2:
		enabled, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		if err := c.client.SetShow(args[0], enabled); err != nil {
			return err
		}
		c.out.printf("%s messages %s\n", strings.ToLower(args[0]), onOff(enabled))
		return nil
	default:
		return fmt.Errorf("usage: show [flag on|off] (flags: %s)", strings.Join(settings.FlagNames(), ", "))
	}
}

func (c *console) webhook(args []string) error {
	switch {
	case len(args) == 0:
		current := c.client.Webhook()
		url := "off"
		if current.Configured() {
			url = current.URL
		}
		c.out.printf("webhook=%s connect=%s updated=%s deleted=%s\n",
			url, onOff(current.OnConnect), onOff(current.OnUpdatedMessage), onOff(current.OnDeletedMessage))
		return nil
	case len(args) == 1:
		if err := c.client.SetWebhookURL(args[0]); err != nil {
			return err
		}
		if c.client.Webhook().Configured() {
			c.out.printf("webhook enabled\n")
		} else {
			c.out.printf("webhook disabled\n")
		}
		return nil
	case len(args) == 3 && strings.EqualFold(args[0], "trigger"):
		enabled, err := parseOnOff(args[2])
		if err != nil {
			return err
		}
		if err := c.client.SetWebhookTrigger(args[1], enabled); err != nil {
			return err
		}
		c.out.printf("webhook %s trigger %s\n", strings.ToLower(args[1]), onOff(enabled))
		return nil
	default:
		return fmt.Errorf("usage: webhook [url|off] | webhook trigger <connect|updated|deleted> <on|off>")
	}
}

func (c *console) listRelationships(ctx context.Context) error {
	relationships, err := c.relations.Relationships(ctx)
	if err != nil {
		return err
	}

	grouped := make(map[sniper.RelationshipKind][]sniper.User)
	for _, relationship := range relationships {
		grouped[relationship.Kind] = append(grouped[relationship.Kind], relationship.User)
	}
	for _, kind := range sniper.RelationshipKinds {
		users := grouped[kind]
		c.out.printf("%s: %d\n", kind, len(users))
		for _, user := range users {
			c.out.printf("  %s (%s) %s\n", user.Tag(), user.ID, user.ProfileLink())
		}
	}

	return nil
}

func (c *console) unfriend(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: unfriend <user_id>")
	}
	userID, ok := command.ParseUserID(args[0])
	if !ok {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	if err := c.relations.RemoveRelationship(ctx, userID); err != nil {
		return err
	}
	c.out.printf("relationship with %s removed\n", userID)

	return nil
}

func parseOnOff(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", raw)
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func consoleCompleter() *readline.PrefixCompleter {
	flags := make([]readline.PrefixCompleterInterface, 0, len(settings.FlagNames()))
	for _, flag := range settings.FlagNames() {
		flags = append(flags, readline.PcItem(flag, readline.PcItem("on"), readline.PcItem("off")))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("start"),
		readline.PcItem("stop"),
		readline.PcItem("restart"),
		readline.PcItem("status"),
		readline.PcItem("presence",
			readline.PcItem("online"),
			readline.PcItem("idle"),
			readline.PcItem("dnd"),
			readline.PcItem("invisible"),
		),
		readline.PcItem("prefix"),
		readline.PcItem("show", flags...),
		readline.PcItem("webhook",
			readline.PcItem("off"),
			readline.PcItem("trigger",
				readline.PcItem("connect"),
				readline.PcItem("updated"),
				readline.PcItem("deleted"),
			),
		),
		readline.PcItem("relationships"),
		readline.PcItem("unfriend"),
		readline.PcItem("quit"),
	)
}

// runConsole reads operator lines until quit, EOF, or ctx cancellation.
func runConsole(ctx context.Context, c *console, dataDir string) error {
	instance, err := readline.NewEx(&readline.Config{
		Prompt:            consolePrompt,
		HistoryFile:       filepath.Join(dataDir, consoleHistoryFile),
		AutoComplete:      consoleCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("open console: %w", err)
	}
	defer instance.Close()

	c.out.setOutput(instance.Stdout())
	defer c.out.setOutput(os.Stdout)

	stop := context.AfterFunc(ctx, func() { _ = instance.Close() })
	defer stop()

	c.out.printf("type help for commands\n")
	for {
		line, err := instance.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read console: %w", err)
		}

		if err := c.execute(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			c.out.printf("error: %v\n", err)
		}
	}
}
