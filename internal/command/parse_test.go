package command

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr error
	}{
		{name: "plain words", line: "bump_start  daily", want: []string{"bump_start", "daily"}},
		{name: "double quoted", line: `bump_add b1 123 60 "hello there"`, want: []string{"bump_add", "b1", "123", "60", "hello there"}},
		{name: "single quoted keeps backslash", line: `edit 'a\b'`, want: []string{"edit", `a\b`}},
		{name: "escaped quote inside double quotes", line: `edit "say \"hi\""`, want: []string{"edit", `say "hi"`}},
		{name: "backslash outside quotes", line: `edit a\ b`, want: []string{"edit", "a b"}},
		{name: "adjacent quoted parts join", line: `edit ab"cd"'ef'`, want: []string{"edit", "abcdef"}},
		{name: "empty quoted argument", line: `edit ""`, want: []string{"edit", ""}},
		{name: "unterminated", line: `edit "open`, wantErr: ErrUnterminatedQuote},
		{name: "trailing backslash", line: `edit abc\`, wantErr: ErrUnterminatedQuote},
		{name: "unterminated single quote", line: `edit 'open`, wantErr: ErrUnterminatedQuote},
		{name: "tabs and newlines separate", line: "spy_add\t42\n", want: []string{"spy_add", "42"}},
		{name: "blank", line: "   ", wantErr: ErrEmptyLine},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := Split(testCase.line)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("err = %v, want %v", err, testCase.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split: %v", err)
			}
			if !reflect.DeepEqual(got, testCase.want) {
				t.Fatalf("Split = %q, want %q", got, testCase.want)
			}
		})
	}
}
