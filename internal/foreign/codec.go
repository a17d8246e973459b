package foreign

// Document encoding. Structs map onto YAML documents: named fields become
// mapping entries, purely positional structs become sequences.

import (
	"gopkg.in/yaml.v3"

	"comp/internal/module"
	"comp/internal/shape"
	"comp/internal/value"
)

// Codec builds the "codec" module: yaml encode/decode.
func Codec() *module.Module {
	m := module.New("codec")
	m.RegisterForeign("yaml_encode", nil, nil, fnCodecEncode)
	m.RegisterForeign("yaml_decode", &shape.Shape{Kind: shape.PrimText}, nil, fnCodecDecode)
	return m
}

func fnCodecEncode(_ module.ForeignContext, in value.Value, _ *value.Struct) value.Value {
	raw, err := yaml.Marshal(toGo(in))
	if err != nil {
		return value.NewFail(value.FailType, "encode failed: %v", err)
	}
	return value.Str(string(raw))
}

func fnCodecDecode(_ module.ForeignContext, in value.Value, _ *value.Struct) value.Value {
	t, ok := in.(*value.Text)
	if !ok {
		return value.NewFail(value.FailType, "decode expects text, got %s", in.Kind())
	}
	var doc any
	if err := yaml.Unmarshal([]byte(t.Value), &doc); err != nil {
		return value.NewFail(value.FailType, "decode failed: %v", err)
	}
	return fromGo(doc)
}
