// Package rpc implements the command-registry model described in §4.4 and
// the design note in §9 ("a registry of descriptors each carrying a boxed
// codec pair and an erased handler; recover static typing inside each
// handler via the descriptor"). Command is generic over a context type C
// (the server's per-session HandlerContext) so the registry itself stays
// free of any server-package import cycle.
package rpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/msg555/vericas/wire"
)

// ErrDecodeFailure marks a request body that failed to decode against its
// command's request codec — the dispatch loop maps this to the
// "Invalid arguments" error response per §4.5 step 3, distinct from a
// handler-raised error.
var ErrDecodeFailure = errors.New("rpc: request decode failure")

// Command is one entry of the process-wide table: a stable lowercase name
// plus an erased invoke function that decodes the request, runs the
// handler, and returns a response encoder.
type Command[C any] struct {
	Name   string
	invoke func(ctx C, r *wire.Reader) (encodeResponse func(w *wire.Writer) error, err error)
}

// Register builds a Command from a strongly typed handler. Req and Res
// only exist inside the closure this returns; the registry itself never
// sees them again.
func Register[C, Req, Res any](
	name string,
	reqCodec wire.Codec[Req],
	resCodec wire.Codec[Res],
	handler func(ctx C, req Req) (Res, error),
) Command[C] {
	return Command[C]{
		Name: name,
		invoke: func(ctx C, r *wire.Reader) (func(w *wire.Writer) error, error) {
			req, err := reqCodec.Decode(r)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
			}
			res, err := handler(ctx, req)
			if err != nil {
				return nil, err
			}
			return func(w *wire.Writer) error {
				return resCodec.Encode(w, res)
			}, nil
		},
	}
}

// Invoke decodes the request body from r and runs the handler, returning
// either a response encoder or an error (wrapping ErrDecodeFailure for a
// decode failure, or the handler's own error otherwise).
func (c Command[C]) Invoke(ctx C, r *wire.Reader) (func(w *wire.Writer) error, error) {
	return c.invoke(ctx, r)
}

// Registry is the process-wide, name-indexed command table built once at
// startup and treated as read-only thereafter (§9's "Global mutable
// state" note).
type Registry[C any] struct {
	commands map[string]Command[C]
	order    []string
}

func NewRegistry[C any](cmds ...Command[C]) *Registry[C] {
	reg := &Registry[C]{commands: make(map[string]Command[C], len(cmds))}
	for _, c := range cmds {
		key := strings.ToLower(c.Name)
		reg.commands[key] = c
		reg.order = append(reg.order, key)
	}
	return reg
}

// OfName looks up a command by name, case-insensitively.
func (r *Registry[C]) OfName(name string) (Command[C], bool) {
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// Commands enumerates every registered command in registration order.
func (r *Registry[C]) Commands() []Command[C] {
	out := make([]Command[C], len(r.order))
	for i, name := range r.order {
		out[i] = r.commands[name]
	}
	return out
}
