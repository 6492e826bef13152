package decoder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	ErrInvalidSignature = errors.New("invalid event signature")
	ErrEventNotFound    = errors.New("event not found in abi")
	ErrAnonymousEvent   = errors.New("anonymous events cannot be decoded by topic0")
	ErrTupleArgument    = errors.New("tuple arguments are not supported in signatures")
)

// ParseEventSignature parses a human readable event declaration such as
//
//	event Transfer(address indexed from, address indexed to, uint256 value)
//
// The "event" keyword and a trailing semicolon are optional. Unnamed
// arguments are named arg<i>.
func ParseEventSignature(sig string) (abi.Event, error) {
	s := strings.TrimSpace(sig)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(strings.TrimPrefix(s, "event "))

	open := strings.IndexByte(s, '(')
	closing := strings.LastIndexByte(s, ')')
	if open <= 0 || closing < open {
		return abi.Event{}, fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
	}
	name := strings.TrimSpace(s[:open])
	if !isIdentifier(name) {
		return abi.Event{}, fmt.Errorf("%w: bad event name %q", ErrInvalidSignature, name)
	}
	if rest := strings.TrimSpace(s[closing+1:]); rest != "" {
		if rest == "anonymous" {
			return abi.Event{}, fmt.Errorf("%w: %s", ErrAnonymousEvent, name)
		}
		return abi.Event{}, fmt.Errorf("%w: unexpected %q after arguments", ErrInvalidSignature, rest)
	}

	body := strings.TrimSpace(s[open+1 : closing])
	if strings.ContainsAny(body, "()") {
		return abi.Event{}, fmt.Errorf("%w: %s", ErrTupleArgument, name)
	}

	var inputs abi.Arguments
	if body != "" {
		for i, param := range strings.Split(body, ",") {
			arg, err := parseArgument(param)
			if err != nil {
				return abi.Event{}, fmt.Errorf("argument %d of %s: %w", i, name, err)
			}
			inputs = append(inputs, arg)
		}
	}
	return newEvent(name, inputs), nil
}

func parseArgument(param string) (abi.Argument, error) {
	fields := strings.Fields(param)
	if len(fields) == 0 || len(fields) > 3 {
		return abi.Argument{}, fmt.Errorf("%w: argument %q", ErrInvalidSignature, param)
	}

	typ, err := abi.NewType(canonicalType(fields[0]), "", nil)
	if err != nil {
		return abi.Argument{}, fmt.Errorf("abi.NewType: %w", err)
	}
	arg := abi.Argument{Type: typ} //nolint:exhaustruct

	rest := fields[1:]
	if len(rest) > 0 && rest[0] == "indexed" {
		arg.Indexed = true
		rest = rest[1:]
	}
	switch len(rest) {
	case 0:
	case 1:
		if !isIdentifier(rest[0]) {
			return abi.Argument{}, fmt.Errorf("%w: argument name %q", ErrInvalidSignature, rest[0])
		}
		arg.Name = rest[0]
	default:
		return abi.Argument{}, fmt.Errorf("%w: argument %q", ErrInvalidSignature, param)
	}
	return arg, nil
}

// ParseEventABI loads a JSON ABI and returns the named event. If the ABI holds
// exactly one event, eventName may be empty.
func ParseEventABI(r io.Reader, eventName string) (abi.Event, error) {
	parsed, err := abi.JSON(r)
	if err != nil {
		return abi.Event{}, fmt.Errorf("abi.JSON: %w", err)
	}

	var event abi.Event
	switch {
	case eventName != "":
		ev, ok := parsed.Events[eventName]
		if !ok {
			return abi.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventName)
		}
		event = ev
	case len(parsed.Events) == 1:
		for _, ev := range parsed.Events {
			event = ev
		}
	default:
		return abi.Event{}, fmt.Errorf("%w: name required, abi has %d events", ErrEventNotFound, len(parsed.Events))
	}

	if event.Anonymous {
		return abi.Event{}, fmt.Errorf("%w: %s", ErrAnonymousEvent, event.Name)
	}
	return newEvent(event.RawName, event.Inputs), nil
}

// newEvent names unnamed inputs so decoded values never collide
func newEvent(name string, inputs abi.Arguments) abi.Event {
	named := make(abi.Arguments, len(inputs))
	for i, in := range inputs {
		if in.Name == "" {
			in.Name = fmt.Sprintf("arg%d", i)
		}
		named[i] = in
	}
	return abi.NewEvent(name, name, false, named)
}

// canonicalType expands the uint/int aliases, including inside array types
func canonicalType(t string) string {
	for _, alias := range []string{"uint", "int"} {
		if t == alias || strings.HasPrefix(t, alias+"[") {
			return alias + "256" + t[len(alias):]
		}
	}
	return t
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
