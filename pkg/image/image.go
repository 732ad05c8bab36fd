// Package image serializes compiled programs to a portable CBOR format, so
// a host can compile once and ship the result to any runtime of the same
// image version.
package image

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/ember-lang/ember/pkg/source"
	"github.com/ember-lang/ember/pkg/vm"
)

// Version is bumped on any incompatible change to the wire layout or the
// instruction set.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireImage struct {
	Version int         `cbor:"v"`
	Main    wireProgram `cbor:"main"`
}

type wireProgram struct {
	Name      string      `cbor:"name"`
	Code      []byte      `cbor:"code"`
	Constants []wireValue `cbor:"consts,omitempty"`
	Protos    []wireProto `cbor:"protos,omitempty"`
	Classes   []wireClass `cbor:"classes,omitempty"`
	Spans     []int       `cbor:"spans,omitempty"` // start,end pairs, one per code byte
	Registers int         `cbor:"regs"`
	Captures  int         `cbor:"caps,omitempty"`
}

// wireValue payloads are never omitempty: -0.0 and empty strings are real
// constants and must survive the wire bit-for-bit.
type wireValue struct {
	Type  uint8   `cbor:"t"`
	Int   int64   `cbor:"i"`
	Float float64 `cbor:"f"`
	Str   string  `cbor:"s"`
	Bool  bool    `cbor:"b"`
}

type wireProto struct {
	Name     string        `cbor:"name"`
	Params   []string      `cbor:"params,omitempty"`
	IsMethod bool          `cbor:"method,omitempty"`
	Captures []wireCapture `cbor:"caps,omitempty"`
	Code     wireProgram   `cbor:"code"`
}

type wireCapture struct {
	Enclosing bool  `cbor:"e,omitempty"`
	Index     uint8 `cbor:"i"`
}

type wireField struct {
	Name    string    `cbor:"name"`
	Default wireValue `cbor:"default"`
}

type wireMethod struct {
	Name  string `cbor:"name"`
	Proto uint16 `cbor:"proto"`
}

type wireClass struct {
	Name     string       `cbor:"name"`
	HasSuper bool         `cbor:"super,omitempty"`
	Fields   []wireField  `cbor:"fields,omitempty"`
	Methods  []wireMethod `cbor:"methods,omitempty"`
}

// Marshal serializes a program. Encoding is canonical, so equal programs
// produce byte-identical images.
func Marshal(p *vm.Program) ([]byte, error) {
	img := wireImage{Version: Version, Main: encodeProgram(p)}
	data, err := cborEncMode.Marshal(&img)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates an image. The returned program is ready
// to execute.
func Unmarshal(data []byte) (*vm.Program, error) {
	var img wireImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("image: version %d not supported (want %d)", img.Version, Version)
	}
	prog, err := decodeProgram(&img.Main)
	if err != nil {
		return nil, err
	}
	if err := prog.Validate(); err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	return prog, nil
}

// WriteFile marshals a program to a file.
func WriteFile(path string, p *vm.Program) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads and validates a program from a file.
func ReadFile(path string) (*vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func encodeProgram(p *vm.Program) wireProgram {
	w := wireProgram{
		Name:      p.Name,
		Code:      p.Code,
		Registers: p.NumRegisters,
		Captures:  p.NumCaptures,
	}
	for _, c := range p.Constants {
		w.Constants = append(w.Constants, encodeValue(c))
	}
	for _, proto := range p.Protos {
		wp := wireProto{
			Name:     proto.Name,
			Params:   proto.Params,
			IsMethod: proto.IsMethod,
			Code:     encodeProgram(proto.Code),
		}
		for _, ref := range proto.Captures {
			wp.Captures = append(wp.Captures, wireCapture{Enclosing: ref.FromEnclosing, Index: ref.Index})
		}
		w.Protos = append(w.Protos, wp)
	}
	for _, cls := range p.Classes {
		wc := wireClass{Name: cls.Name, HasSuper: cls.HasSuper}
		for _, f := range cls.Fields {
			wc.Fields = append(wc.Fields, wireField{Name: f.Name, Default: encodeValue(f.Default)})
		}
		for _, m := range cls.Methods {
			wc.Methods = append(wc.Methods, wireMethod{Name: m.Name, Proto: m.Proto})
		}
		w.Classes = append(w.Classes, wc)
	}
	for _, sp := range p.Spans {
		w.Spans = append(w.Spans, sp.Start, sp.End)
	}
	return w
}

func decodeProgram(w *wireProgram) (*vm.Program, error) {
	p := &vm.Program{
		Name:         w.Name,
		Code:         w.Code,
		NumRegisters: w.Registers,
		NumCaptures:  w.Captures,
	}
	for _, c := range w.Constants {
		v, err := decodeValue(c)
		if err != nil {
			return nil, err
		}
		p.Constants = append(p.Constants, v)
	}
	for i := range w.Protos {
		wp := &w.Protos[i]
		code, err := decodeProgram(&wp.Code)
		if err != nil {
			return nil, err
		}
		proto := &vm.FunctionProto{
			Name:     wp.Name,
			Params:   wp.Params,
			IsMethod: wp.IsMethod,
			Code:     code,
		}
		for _, ref := range wp.Captures {
			proto.Captures = append(proto.Captures, vm.CaptureRef{FromEnclosing: ref.Enclosing, Index: ref.Index})
		}
		p.Protos = append(p.Protos, proto)
	}
	for _, wc := range w.Classes {
		cls := vm.ClassDesc{Name: wc.Name, HasSuper: wc.HasSuper}
		for _, f := range wc.Fields {
			v, err := decodeValue(f.Default)
			if err != nil {
				return nil, err
			}
			cls.Fields = append(cls.Fields, vm.FieldTemplate{Name: f.Name, Default: v})
		}
		for _, m := range wc.Methods {
			cls.Methods = append(cls.Methods, vm.MethodDesc{Name: m.Name, Proto: m.Proto})
		}
		p.Classes = append(p.Classes, cls)
	}
	if len(w.Spans)%2 != 0 {
		return nil, fmt.Errorf("image: %s: odd span table length %d", w.Name, len(w.Spans))
	}
	for i := 0; i+1 < len(w.Spans); i += 2 {
		p.Spans = append(p.Spans, source.Span{Start: w.Spans[i], End: w.Spans[i+1]})
	}
	return p, nil
}

func encodeValue(v vm.Value) wireValue {
	w := wireValue{Type: uint8(v.Type())}
	switch v.Type() {
	case vm.TypeInteger:
		w.Int, _ = v.AsInteger()
	case vm.TypeFloat:
		w.Float, _ = v.AsFloat()
	case vm.TypeString:
		w.Str, _ = v.AsString()
	case vm.TypeBoolean:
		w.Bool, _ = v.AsBoolean()
	}
	return w
}

func decodeValue(w wireValue) (vm.Value, error) {
	switch vm.ValueType(w.Type) {
	case vm.TypeNone:
		return vm.None, nil
	case vm.TypeInteger:
		return vm.IntegerValue(w.Int), nil
	case vm.TypeFloat:
		return vm.FloatValue(w.Float), nil
	case vm.TypeString:
		return vm.StringValue(w.Str), nil
	case vm.TypeBoolean:
		return vm.BooleanValue(w.Bool), nil
	default:
		return vm.None, fmt.Errorf("image: constant tag %d is not serializable", w.Type)
	}
}
