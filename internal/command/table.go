// Package command implements the prefix commands typed by the account owner:
// a static table, a shell-style parser, and an executor that runs each
// invocation as a detached task.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Unlimited marks a spec without an upper arity bound.
const Unlimited = -1

// Handler runs one parsed invocation.
type Handler func(ctx context.Context, call *Call) error

// Spec declares one command.
type Spec struct {
	// Name is the invocation keyword.
	Name string
	// Category groups commands in help output.
	Category string
	// Description is the one-line help text.
	Description string
	// Usage shows the argument shape.
	Usage string
	// MinArgs is the minimum argument count.
	MinArgs int
	// MaxArgs is the maximum argument count, or Unlimited.
	MaxArgs int
	// Handler runs the command.
	Handler Handler
}

func (s Spec) validate() error {
	if strings.TrimSpace(s.Name) == "" || strings.ContainsAny(s.Name, " \t\n") {
		return fmt.Errorf("invalid command name %q", s.Name)
	}
	if s.Handler == nil {
		return fmt.Errorf("command %s: nil handler", s.Name)
	}
	if s.MinArgs < 0 {
		return fmt.Errorf("command %s: negative min args", s.Name)
	}
	if s.MaxArgs != Unlimited && s.MaxArgs < s.MinArgs {
		return fmt.Errorf("command %s: max args %d < min args %d", s.Name, s.MaxArgs, s.MinArgs)
	}

	return nil
}

// checkArity reports the arity error text for count arguments, or empty.
func (s Spec) checkArity(count int) string {
	if count >= s.MinArgs && (s.MaxArgs == Unlimited || count <= s.MaxArgs) {
		return ""
	}
	switch {
	case s.MaxArgs == 0:
		return fmt.Sprintf("Command '**%s**' doesn't take any arguments.", s.Name)
	case s.MaxArgs == Unlimited:
		return fmt.Sprintf("Command '**%s**' requires at least %d arguments.", s.Name, s.MinArgs)
	case s.MinArgs == s.MaxArgs:
		return fmt.Sprintf("Command '**%s**' requires %d arguments.", s.Name, s.MinArgs)
	default:
		return fmt.Sprintf("Command '**%s**' requires between %d and %d arguments.", s.Name, s.MinArgs, s.MaxArgs)
	}
}

// Table is the immutable command registry built once at startup.
type Table struct {
	specs map[string]Spec
	order []string
}

// NewTable registers specs in order. Duplicate names are rejected.
func NewTable(specs ...Spec) (*Table, error) {
	table := &Table{specs: make(map[string]Spec, len(specs))}
	for _, spec := range specs {
		if err := spec.validate(); err != nil {
			return nil, fmt.Errorf("new command table: %w", err)
		}
		if _, exists := table.specs[spec.Name]; exists {
			return nil, fmt.Errorf("new command table: duplicate command %s", spec.Name)
		}
		table.specs[spec.Name] = spec
		table.order = append(table.order, spec.Name)
	}

	return table, nil
}

// Lookup returns the spec registered under name.
func (t *Table) Lookup(name string) (Spec, bool) {
	spec, ok := t.specs[name]
	return spec, ok
}

// Specs returns every spec in registration order.
func (t *Table) Specs() []Spec {
	specs := make([]Spec, 0, len(t.order))
	for _, name := range t.order {
		specs = append(specs, t.specs[name])
	}

	return specs
}

// Names returns the registered names sorted ascending.
func (t *Table) Names() []string {
	names := append([]string(nil), t.order...)
	sort.Strings(names)

	return names
}

// Suggest returns the closest registered name to unknown, or empty when
// nothing is close enough.
func (t *Table) Suggest(unknown string) string {
	return suggest(unknown, t.Names())
}
