package persist

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec turns a slice value into bytes and back. Unmarshal receives a
// pointer to the slice's state type.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes with encoding/json. It suits plain struct states.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrCodec, err)
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: json: %v", ErrCodec, err)
	}
	return nil
}

// ProtoCodec encodes protobuf message states in the binary wire format.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: proto: %T is not a proto.Message", ErrCodec, v)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: proto: %v", ErrCodec, err)
	}
	return data, nil
}

func (ProtoCodec) Unmarshal(data []byte, v any) error {
	msg, err := messageTarget(v)
	if err != nil {
		return err
	}
	if err := proto.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: proto: %v", ErrCodec, err)
	}
	return nil
}

// ProtoJSONCodec encodes protobuf message states as canonical protobuf
// JSON, keeping persisted files readable.
type ProtoJSONCodec struct{}

func (ProtoJSONCodec) Name() string { return "protojson" }

func (ProtoJSONCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: protojson: %T is not a proto.Message", ErrCodec, v)
	}
	data, err := protojson.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: protojson: %v", ErrCodec, err)
	}
	return data, nil
}

func (ProtoJSONCodec) Unmarshal(data []byte, v any) error {
	msg, err := messageTarget(v)
	if err != nil {
		return err
	}
	if err := protojson.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: protojson: %v", ErrCodec, err)
	}
	return nil
}

// messageTarget resolves the decode destination. State types for proto
// codecs are message pointers, so v is usually a **T; a nil *T is
// allocated in place.
func messageTarget(v any) (proto.Message, error) {
	if msg, ok := v.(proto.Message); ok {
		return msg, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, fmt.Errorf("%w: decode target %T is not a non-nil pointer", ErrCodec, v)
	}

	elem := rv.Elem()
	if elem.Kind() == reflect.Pointer {
		if elem.IsNil() {
			elem.Set(reflect.New(elem.Type().Elem()))
		}
		if msg, ok := elem.Interface().(proto.Message); ok {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("%w: decode target %T does not hold a proto.Message", ErrCodec, v)
}

var (
	codecs = map[string]Codec{
		"json":      JSONCodec{},
		"proto":     ProtoCodec{},
		"protojson": ProtoJSONCodec{},
	}
	codecMutex sync.RWMutex
)

// GetCodec resolves a codec by name.
func GetCodec(name string) (Codec, error) {
	codecMutex.RLock()
	defer codecMutex.RUnlock()

	codec, exists := codecs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
	return codec, nil
}

// RegisterCodec adds or replaces a codec under its Name.
func RegisterCodec(codec Codec) {
	codecMutex.Lock()
	defer codecMutex.Unlock()

	codecs[codec.Name()] = codec
}

// Codecs lists registered codec names.
func Codecs() []string {
	codecMutex.RLock()
	defer codecMutex.RUnlock()

	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
