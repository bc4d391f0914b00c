// Package shape inspects handler functions once so they can be called reflectively
// without re-validating their signature on every delivery.
package shape

import (
	"context"
	"fmt"
	"reflect"

	berr "github.com/next-trace/scg-event-service/contract/errors"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Shape is the analysed signature of a handler function.
// Accepted forms are func(P...), func(P...) error and the same with a leading context.Context.
type Shape struct {
	fn          reflect.Value
	withContext bool
	params      []reflect.Type
	returnsErr  bool
}

// Of analyses fn. It fails with ErrConfiguration when fn is not a usable handler.
func Of(fn any) (Shape, error) {
	if fn == nil {
		return Shape{}, fmt.Errorf("handler is nil: %w", berr.ErrConfiguration)
	}

	v := reflect.ValueOf(fn)
	t := v.Type()

	if t.Kind() != reflect.Func {
		return Shape{}, fmt.Errorf("handler %s is not a function: %w", t, berr.ErrConfiguration)
	}

	if v.IsNil() {
		return Shape{}, fmt.Errorf("handler %s is nil: %w", t, berr.ErrConfiguration)
	}

	if t.IsVariadic() {
		return Shape{}, fmt.Errorf("handler %s is variadic: %w", t, berr.ErrConfiguration)
	}

	s := Shape{fn: v}

	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == errorType:
		s.returnsErr = true
	default:
		return Shape{}, fmt.Errorf("handler %s must return nothing or error: %w", t, berr.ErrConfiguration)
	}

	first := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		s.withContext = true
		first = 1
	}

	for i := first; i < t.NumIn(); i++ {
		s.params = append(s.params, t.In(i))
	}

	return s, nil
}

// Params returns the parameter types after the optional context.
func (s Shape) Params() []reflect.Type { return s.params }

// Arity is the number of payload parameters.
func (s Shape) Arity() int { return len(s.params) }

// Pointer identifies the handler's code. Method values of the same method share it.
func (s Shape) Pointer() uintptr {
	if !s.fn.IsValid() {
		return 0
	}

	return s.fn.Pointer()
}

// String renders the handler's type.
func (s Shape) String() string {
	if !s.fn.IsValid() {
		return "<nil>"
	}

	return s.fn.Type().String()
}

// Accepts reports whether a value of type t can be passed as parameter i.
func (s Shape) Accepts(i int, t reflect.Type) bool {
	if i >= len(s.params) || t == nil {
		return false
	}

	return t.AssignableTo(s.params[i])
}

// Call invokes the handler with args, which must match Arity.
// A nil arg becomes the zero value of a nilable parameter; any other mismatch
// fails with ErrHandlerTypeMismatch before the handler runs.
func (s Shape) Call(ctx context.Context, args ...any) error {
	if len(args) != len(s.params) {
		return fmt.Errorf("call %s with %d args: %w", s, len(args), berr.ErrHandlerTypeMismatch)
	}

	in := make([]reflect.Value, 0, len(args)+1)
	if s.withContext {
		if ctx == nil {
			ctx = context.Background()
		}

		in = append(in, reflect.ValueOf(ctx))
	}

	for i, a := range args {
		v, err := argValue(a, s.params[i])
		if err != nil {
			return fmt.Errorf("call %s: %w", s, err)
		}

		in = append(in, v)
	}

	out := s.fn.Call(in)
	if !s.returnsErr || out[0].IsNil() {
		return nil
	}

	return out[0].Interface().(error) //nolint:forcetypeassert // checked by Of
}

func argValue(a any, param reflect.Type) (reflect.Value, error) {
	if a == nil {
		if nilable(param) {
			return reflect.Zero(param), nil
		}

		return reflect.Value{}, fmt.Errorf("nil for %s: %w", param, berr.ErrHandlerTypeMismatch)
	}

	v := reflect.ValueOf(a)
	if !v.Type().AssignableTo(param) {
		return reflect.Value{}, fmt.Errorf("%s for %s: %w", v.Type(), param, berr.ErrHandlerTypeMismatch)
	}

	return v, nil
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}
