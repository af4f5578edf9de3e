package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// recordingInvoker records invocations and replies from a canned table.
type recordingInvoker struct {
	results map[string]string
	errs    map[string]error
	calls   []recordedCall
}

type recordedCall struct {
	name string
	args []string
}

func (r *recordingInvoker) Invoke(ctx context.Context, name string, args []string, channel string) (string, error) {
	r.calls = append(r.calls, recordedCall{name: name, args: args})
	if err, ok := r.errs[name]; ok {
		return "", err
	}
	return r.results[name], nil
}

func TestRunPlainText(t *testing.T) {
	inv := &recordingInvoker{}
	in := &Interpreter{Actions: inv}

	out, err := in.Run(context.Background(), "just some text", nil, "alice", "chan")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "just some text" {
		t.Errorf("out = %q", out)
	}
	if len(inv.calls) != 0 {
		t.Errorf("expected no registry calls, got %d", len(inv.calls))
	}
}

func TestRunInvokesBlocksInOrder(t *testing.T) {
	inv := &recordingInvoker{results: map[string]string{"a": "1", "b": "2", "c": "3"}}
	in := &Interpreter{Actions: inv}

	out, err := in.Run(context.Background(), "{a}-{b}-{c}", nil, "alice", "chan")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "1-2-3" {
		t.Errorf("out = %q, want 1-2-3", out)
	}
	if len(inv.calls) != 3 {
		t.Fatalf("registry calls = %d, want 3", len(inv.calls))
	}
	for i, want := range []string{"a", "b", "c"} {
		if inv.calls[i].name != want {
			t.Errorf("call %d = %q, want %q", i, inv.calls[i].name, want)
		}
	}
}

func TestRunWeatherScenario(t *testing.T) {
	inv := &recordingInvoker{results: map[string]string{"weather": "Paris: 20°C, clear"}}
	in := &Interpreter{Actions: inv}

	out, err := in.Run(context.Background(), "Hello {weather $0}!", []string{"Paris"}, "alice", "chan")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "Hello Paris: 20°C, clear!" {
		t.Errorf("out = %q", out)
	}
	if len(inv.calls) != 1 || inv.calls[0].args[0] != "Paris" {
		t.Errorf("unexpected calls: %+v", inv.calls)
	}
}

func TestRunAllArgsVariable(t *testing.T) {
	inv := &recordingInvoker{results: map[string]string{"echo": "ok"}}
	in := &Interpreter{Actions: inv}

	if _, err := in.Run(context.Background(), "{echo $$}", []string{"a", "b"}, "alice", "chan"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// $$ expands to one argument with the caller args joined by single spaces.
	if len(inv.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(inv.calls))
	}
	if len(inv.calls[0].args) != 1 || inv.calls[0].args[0] != "a b" {
		t.Errorf("args = %q, want [\"a b\"]", inv.calls[0].args)
	}
}

func TestRunUserVariable(t *testing.T) {
	inv := &recordingInvoker{results: map[string]string{"echo": ""}}
	in := &Interpreter{Actions: inv}

	if _, err := in.Run(context.Background(), "{echo $user}", nil, "bob", "chan"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inv.calls[0].args[0] != "bob" {
		t.Errorf("args = %q, want caller identity", inv.calls[0].args)
	}
}

func TestRunMissingArgumentIndex(t *testing.T) {
	inv := &recordingInvoker{}
	in := &Interpreter{Actions: inv}

	_, err := in.Run(context.Background(), "{echo $2}", []string{"a", "b"}, "alice", "chan")
	if err == nil {
		t.Fatalf("expected error for $2 with two args")
	}
	if !strings.Contains(err.Error(), "missing argument index 2") {
		t.Errorf("err = %v", err)
	}
	if len(inv.calls) != 0 {
		t.Errorf("no action should run on a malformed block")
	}
}

func TestRunInvalidVariable(t *testing.T) {
	in := &Interpreter{Actions: &recordingInvoker{}}

	_, err := in.Run(context.Background(), "{echo $bogus}", nil, "alice", "chan")
	if !errors.Is(err, ErrInvalidVariable) {
		t.Errorf("err = %v, want ErrInvalidVariable", err)
	}
}

func TestRunUnterminatedBlock(t *testing.T) {
	inv := &recordingInvoker{results: map[string]string{"a": "1"}}
	in := &Interpreter{Actions: inv}

	out, err := in.Run(context.Background(), "prefix {a} tail {oops", nil, "alice", "chan")
	if !errors.Is(err, ErrUnterminatedBlock) {
		t.Fatalf("err = %v, want ErrUnterminatedBlock", err)
	}
	// The whole run aborts: no partial or garbled output escapes.
	if out != "" {
		t.Errorf("out = %q, want empty on abort", out)
	}
}

func TestRunEmptyBlock(t *testing.T) {
	in := &Interpreter{Actions: &recordingInvoker{}}

	if _, err := in.Run(context.Background(), "{}", nil, "alice", "chan"); !errors.Is(err, ErrEmptyBlock) {
		t.Errorf("err = %v, want ErrEmptyBlock", err)
	}
}

func TestRunActionErrorAborts(t *testing.T) {
	boom := fmt.Errorf("unknown action nope")
	inv := &recordingInvoker{results: map[string]string{"a": "1"}, errs: map[string]error{"nope": boom}}
	in := &Interpreter{Actions: inv}

	out, err := in.Run(context.Background(), "{a}{nope}{a}", nil, "alice", "chan")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped action error", err)
	}
	if out != "" {
		t.Errorf("out = %q, want empty on abort", out)
	}
	// The failing block stops the scan; the trailing block never runs.
	if len(inv.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(inv.calls))
	}
}

func TestRunSilentActionAndEmptyResult(t *testing.T) {
	inv := &recordingInvoker{results: map[string]string{"quiet": ""}}
	in := &Interpreter{Actions: inv}

	out, err := in.Run(context.Background(), "{quiet}", nil, "alice", "chan")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Absence of a result appends nothing; an empty buffer means no message.
	if out != "" {
		t.Errorf("out = %q, want empty", out)
	}
}

func TestRunFlatGrammar(t *testing.T) {
	inv := &recordingInvoker{results: map[string]string{"a": "X"}}
	in := &Interpreter{Actions: inv}

	// The nearest } closes the block; the second } is ordinary text.
	out, err := in.Run(context.Background(), "{a}}", nil, "alice", "chan")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "X}" {
		t.Errorf("out = %q, want X}", out)
	}
}
