// Package binding adapts arbitrary Go functions into handlers callable with
// a JSON-encoded argument array, the calling convention shared by every
// rendering surface.
package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Func is a bound function: it takes the raw JSON argument array sent by page
// script and returns the value to resolve the page-side promise with.
type Func func(req string) (any, error)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Wrap validates f and returns a Func that decodes arguments, calls f and
// interprets its results. f may return nothing, (value), (error) or
// (value, error).
func Wrap(f any) (Func, error) {
	v := reflect.ValueOf(f)
	if v.Kind() != reflect.Func {
		return nil, errors.New("binding: only functions can be bound")
	}
	funcType := v.Type()
	outCount := funcType.NumOut()
	if outCount > 2 {
		return nil, errors.New("binding: function may only return (value), (error), or (value, error)")
	}
	if outCount == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("binding: second return value must be an error")
	}
	isVariadic := funcType.IsVariadic()
	numIn := funcType.NumIn()

	return func(req string) (any, error) {
		var rawArgs []json.RawMessage
		if req != "" {
			if err := json.Unmarshal([]byte(req), &rawArgs); err != nil {
				return nil, fmt.Errorf("binding: decode arguments: %w", err)
			}
		}
		if (!isVariadic && len(rawArgs) != numIn) || (isVariadic && len(rawArgs) < numIn-1) {
			return nil, fmt.Errorf("binding: argument count mismatch: got %d, want %d", len(rawArgs), numIn)
		}
		args := make([]reflect.Value, len(rawArgs))
		for i := range rawArgs {
			var argVal reflect.Value
			if isVariadic && i >= numIn-1 {
				argVal = reflect.New(funcType.In(numIn - 1).Elem())
			} else {
				argVal = reflect.New(funcType.In(i))
			}
			if err := json.Unmarshal(rawArgs[i], argVal.Interface()); err != nil {
				return nil, fmt.Errorf("binding: argument %d: %w", i, err)
			}
			args[i] = argVal.Elem()
		}
		results := v.Call(args)

		switch outCount {
		case 1:
			if funcType.Out(0).Implements(errorType) {
				return nil, asError(results[0])
			}
			return results[0].Interface(), nil
		case 2:
			return results[0].Interface(), asError(results[1])
		}
		return nil, nil
	}, nil
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// Registry holds named bindings. It is not safe for concurrent use; surfaces
// guard it with their own lock.
type Registry map[string]Func

// Add wraps f and registers it under name.
func (r Registry) Add(name string, f any) error {
	if _, exists := r[name]; exists {
		return fmt.Errorf("binding: name %q already bound", name)
	}
	fn, err := Wrap(f)
	if err != nil {
		return err
	}
	r[name] = fn
	return nil
}

// Remove unregisters name.
func (r Registry) Remove(name string) error {
	if _, ok := r[name]; !ok {
		return fmt.Errorf("binding: name %q not found", name)
	}
	delete(r, name)
	return nil
}
