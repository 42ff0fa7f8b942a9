package persist_test

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/flux/persist"
)

type counter struct {
	Count int    `json:"count"`
	Label string `json:"label"`
}

func TestJSONCodec(t *testing.T) {
	codec := persist.JSONCodec{}

	data, err := codec.Marshal(counter{Count: 2, Label: "clicks"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got counter
	if err := codec.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != (counter{Count: 2, Label: "clicks"}) {
		t.Errorf("Unmarshal() = %+v", got)
	}

	if err := codec.Unmarshal([]byte("{"), &got); !errors.Is(err, persist.ErrCodec) {
		t.Errorf("Unmarshal(bad) error = %v, want ErrCodec", err)
	}
}

func TestProtoCodecs(t *testing.T) {
	for _, codec := range []persist.Codec{persist.ProtoCodec{}, persist.ProtoJSONCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			src, err := structpb.NewStruct(map[string]any{"count": 7.0, "label": "x"})
			if err != nil {
				t.Fatal(err)
			}

			data, err := codec.Marshal(src)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var dst *structpb.Struct
			if err := codec.Unmarshal(data, &dst); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !proto.Equal(src, dst) {
				t.Errorf("round trip mismatch: %v vs %v", src, dst)
			}
		})
	}
}

func TestProtoCodec_RejectsPlainValues(t *testing.T) {
	codec := persist.ProtoCodec{}

	if _, err := codec.Marshal(counter{}); !errors.Is(err, persist.ErrCodec) {
		t.Errorf("Marshal(struct) error = %v, want ErrCodec", err)
	}

	var c counter
	if err := codec.Unmarshal(nil, &c); !errors.Is(err, persist.ErrCodec) {
		t.Errorf("Unmarshal(into struct) error = %v, want ErrCodec", err)
	}
}

func TestCodecRegistry(t *testing.T) {
	for _, name := range []string{"json", "proto", "protojson"} {
		codec, err := persist.GetCodec(name)
		if err != nil {
			t.Fatalf("GetCodec(%q) error = %v", name, err)
		}
		if codec.Name() != name {
			t.Errorf("GetCodec(%q).Name() = %q", name, codec.Name())
		}
	}

	if _, err := persist.GetCodec("yaml"); !errors.Is(err, persist.ErrUnknownCodec) {
		t.Errorf("GetCodec(yaml) error = %v, want ErrUnknownCodec", err)
	}
}

type upperCodec struct {
	persist.JSONCodec
}

func (upperCodec) Name() string { return "upper-json" }

func TestRegisterCodec(t *testing.T) {
	persist.RegisterCodec(upperCodec{})

	codec, err := persist.GetCodec("upper-json")
	if err != nil {
		t.Fatalf("GetCodec() error = %v", err)
	}
	if _, ok := codec.(upperCodec); !ok {
		t.Errorf("GetCodec() = %T, want upperCodec", codec)
	}

	names := persist.Codecs()
	want := []string{"json", "proto", "protojson", "upper-json"}
	if len(names) != len(want) {
		t.Fatalf("Codecs() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Codecs()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
