package state

import (
	"reflect"

	"google.golang.org/protobuf/proto"
)

var protoMessage = reflect.TypeFor[proto.Message]()

// Equal reports whether two snapshots of a slice hold the same value.
type Equal[S any] func(a, b S) bool

// DefaultEqual picks the value comparison for S: proto.Equal for protobuf
// messages, the type's own Equal(S) bool method when it has one, and
// reflect.DeepEqual otherwise.
func DefaultEqual[S any]() Equal[S] {
	t := reflect.TypeFor[S]()

	switch {
	case t.Kind() != reflect.Interface && t.Implements(protoMessage):
		return func(a, b S) bool {
			return proto.Equal(any(a).(proto.Message), any(b).(proto.Message))
		}
	case t.Kind() != reflect.Interface && t.Implements(reflect.TypeFor[interface{ Equal(S) bool }]()):
		return func(a, b S) bool {
			return any(a).(interface{ Equal(S) bool }).Equal(b)
		}
	default:
		return func(a, b S) bool {
			return reflect.DeepEqual(a, b)
		}
	}
}
