// Package script interprets stored command bodies. A body is plain text with
// zero or more {action arg...} blocks; block arguments may reference the
// caller's arguments and identity through $-variables. The grammar is flat:
// blocks do not nest, the nearest } always closes the current block.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnterminatedBlock means a { had no matching } before end of body.
	ErrUnterminatedBlock = errors.New("unterminated action block")
	// ErrEmptyBlock means a block contained no action name.
	ErrEmptyBlock = errors.New("empty action block")
	// ErrInvalidVariable means a $-token wasn't $$, $user, or $<digit>.
	ErrInvalidVariable = errors.New("invalid variable")
)

// Invoker runs a named action and returns its textual result. An empty result
// with a nil error means the action produced no output.
type Invoker interface {
	Invoke(ctx context.Context, name string, args []string, channel string) (string, error)
}

// Interpreter resolves a command body against an action registry.
type Interpreter struct {
	Actions Invoker
}

// Run scans body left to right, accumulating ordinary characters verbatim and
// invoking one registry call per {action ...} block, strictly in source order.
// Action results are appended to the output; actions without output append
// nothing. Any error aborts the whole run with no partial result.
// An empty final buffer returns ("", nil), meaning no outbound message.
func (in *Interpreter) Run(ctx context.Context, body string, callArgs []string, caller, channel string) (string, error) {
	var out strings.Builder

	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '{' {
			out.WriteRune(runes[i])
			continue
		}

		end := -1
		for j := i + 1; j < len(runes); j++ {
			if runes[j] == '}' {
				end = j
				break
			}
		}
		if end < 0 {
			return "", ErrUnterminatedBlock
		}

		name, args, err := resolveBlock(string(runes[i+1:end]), callArgs, caller)
		if err != nil {
			return "", err
		}

		result, err := in.Actions.Invoke(ctx, name, args, channel)
		if err != nil {
			return "", err
		}
		out.WriteString(result)

		i = end
	}

	return out.String(), nil
}

// resolveBlock splits a block's contents into the action name and its argument
// list, expanding $-variables against the caller's arguments.
func resolveBlock(block string, callArgs []string, caller string) (string, []string, error) {
	tokens := strings.Fields(block)
	if len(tokens) == 0 {
		return "", nil, ErrEmptyBlock
	}
	name := tokens[0]

	var args []string
	for _, tok := range tokens[1:] {
		v, ok := strings.CutPrefix(tok, "$")
		if !ok {
			args = append(args, tok)
			continue
		}
		switch {
		case v == "$":
			// all caller arguments, joined as a single argument
			args = append(args, strings.Join(callArgs, " "))
		case v == "user":
			args = append(args, caller)
		case len(v) > 0 && v[0] >= '0' && v[0] <= '9':
			idx := int(v[0] - '0')
			if idx >= len(callArgs) {
				return "", nil, fmt.Errorf("missing argument index %d", idx)
			}
			args = append(args, callArgs[idx])
		default:
			return "", nil, ErrInvalidVariable
		}
	}

	return name, args, nil
}
