package command

import (
	"errors"
	"fmt"

	"github.com/kballard/go-shellquote"
)

// ErrUnterminatedQuote reports a command line with an open quote or a
// trailing escape.
var ErrUnterminatedQuote = errors.New("command: unterminated quote")

// ErrEmptyLine reports a command line with no tokens.
var ErrEmptyLine = errors.New("command: empty line")

// Split tokenizes line with POSIX shell word splitting.
func Split(line string) ([]string, error) {
	tokens, err := shellquote.Split(line)
	switch {
	case errors.Is(err, shellquote.UnterminatedSingleQuoteError),
		errors.Is(err, shellquote.UnterminatedDoubleQuoteError),
		errors.Is(err, shellquote.UnterminatedEscapeError):
		return nil, fmt.Errorf("%w: %w", ErrUnterminatedQuote, err)
	case err != nil:
		return nil, fmt.Errorf("split command line: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyLine
	}

	return tokens, nil
}
