package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ex-sniper/internal/safe"
	"ex-sniper/pkg/sniper"
)

const (
	defaultMaxConcurrent = 16
	commandSource        = "Command"
)

// Call is one parsed invocation handed to a handler.
type Call struct {
	// ID identifies the execution in logs.
	ID string
	// Name is the invoked command name.
	Name string
	// Args are the parsed arguments after the name.
	Args []string
	// Origin is the invoking message.
	Origin sniper.Message
	// Table is the table the command was resolved from.
	Table *Table

	client        sniper.MessageClient
	logger        *slog.Logger
	originDeleted bool
}

// Arg returns the argument at index, or empty when absent.
func (c *Call) Arg(index int) string {
	if index < 0 || index >= len(c.Args) {
		return ""
	}

	return c.Args[index]
}

// Option mutates executor configuration.
type Option func(*Executor)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(executor *Executor) {
		if logger != nil {
			executor.logger = logger
		}
	}
}

// WithNotifier sets the sink for "executed" notifications.
func WithNotifier(notifier sniper.Notifier) Option {
	return func(executor *Executor) {
		if notifier != nil {
			executor.notifier = notifier
		}
	}
}

// WithMaxConcurrent bounds how many executions run at once.
func WithMaxConcurrent(limit int) Option {
	return func(executor *Executor) {
		if limit > 0 {
			executor.maxConcurrent = limit
		}
	}
}

// Executor resolves and runs command lines.
type Executor struct {
	table         *Table
	client        sniper.MessageClient
	logger        *slog.Logger
	notifier      sniper.Notifier
	maxConcurrent int

	baseCtx    context.Context
	baseCancel context.CancelFunc
	tasks      errgroup.Group

	closeOnce sync.Once
}

// NewExecutor builds an executor over table that replies through client.
func NewExecutor(table *Table, client sniper.MessageClient, options ...Option) (*Executor, error) {
	if table == nil {
		return nil, fmt.Errorf("new command executor: nil table")
	}
	if client == nil {
		return nil, fmt.Errorf("new command executor: nil message client")
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	executor := &Executor{
		table:         table,
		client:        client,
		logger:        slog.Default(),
		notifier:      sniper.NopNotifier{},
		maxConcurrent: defaultMaxConcurrent,
		baseCtx:       baseCtx,
		baseCancel:    baseCancel,
	}
	for _, option := range options {
		option(executor)
	}
	executor.tasks.SetLimit(executor.maxConcurrent)

	return executor, nil
}

// Submit runs line as a detached task and returns immediately. The task
// outlives ctx and is cancelled only by Close. When the concurrency limit
// is reached the line is dropped and logged.
func (e *Executor) Submit(ctx context.Context, line string, origin sniper.Message) {
	origin = origin.Clone()
	started := e.tasks.TryGo(func() error {
		err := safe.Run("command "+line, func() error {
			return e.Execute(e.baseCtx, line, origin)
		})
		if err != nil {
			e.logger.WarnContext(e.baseCtx, "command execution failed", "line", line, "error", err)
		}
		return nil
	})
	if !started {
		e.logger.WarnContext(ctx, "command dropped: too many running commands",
			"line", line,
			"limit", e.maxConcurrent,
		)
	}
}

// Execute parses and runs line synchronously. Every failure is answered with
// an error reply in the origin channel; the returned error is for logging.
func (e *Executor) Execute(ctx context.Context, line string, origin sniper.Message) error {
	call := &Call{
		ID:     uuid.NewString(),
		Origin: origin,
		Table:  e.table,
		client: e.client,
		logger: e.logger,
	}

	err := e.run(ctx, call, line)
	if err == nil {
		e.notifier.Notify(ctx, sniper.Notification{
			Level:  sniper.LevelNotification,
			Source: commandSource,
			Text:   call.Name + " executed.",
		})
		return nil
	}

	commandErr, ok := AsError(err)
	if !ok {
		commandErr = &Error{
			Kind:    ErrorKindFailed,
			Command: call.Name,
			Message: fmt.Sprintf("Command '**%s**' failed: %v", call.Name, err),
			Cause:   err,
		}
	}
	if commandErr.Command == "" {
		commandErr.Command = call.Name
	}
	e.logger.DebugContext(ctx, "command rejected",
		"execution_id", call.ID,
		"command", call.Name,
		"kind", string(commandErr.Kind),
		"error", err,
	)
	if ctx.Err() == nil {
		if replyErr := call.Reply(ctx, titleInvalid, errorReplyBody(commandErr.Message)); replyErr != nil {
			return errors.Join(commandErr, replyErr)
		}
	}

	return commandErr
}

func (e *Executor) run(ctx context.Context, call *Call, line string) error {
	tokens, err := Split(line)
	if err != nil {
		message := "Could not parse command line"
		if errors.Is(err, ErrUnterminatedQuote) {
			message = "Unterminated quote in command line"
		}
		return &Error{Kind: ErrorKindParse, Message: message, Cause: err}
	}
	call.Name, call.Args = tokens[0], tokens[1:]

	spec, ok := e.table.Lookup(call.Name)
	if !ok {
		message := fmt.Sprintf("Unknown command '%s'", call.Name)
		if suggestion := e.table.Suggest(call.Name); suggestion != "" {
			message = fmt.Sprintf("Unknown command '%s'. Did you mean '**%s**'?", call.Name, suggestion)
		}
		return &Error{Kind: ErrorKindUnknown, Command: call.Name, Message: message}
	}
	if message := spec.checkArity(len(call.Args)); message != "" {
		return &Error{Kind: ErrorKindArity, Command: call.Name, Message: message}
	}

	e.logger.DebugContext(ctx, "command started",
		"execution_id", call.ID,
		"command", call.Name,
		"channel_id", call.Origin.ChannelID,
	)

	return spec.Handler(ctx, call)
}

// Close cancels running executions and waits for them to return.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.baseCancel()
		_ = e.tasks.Wait()
	})
}
