// Copyright (c) 2026, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package typedjson allows encoding and decoding command trees as JSON.
// The decoding process needs to know what node types to decode into,
// so the "typed JSON" requires "Type" keys in some tree node objects:
//
//   - The root node
//   - Any node represented as an interface field in the parent Go type,
//     such as the children of a Pipe or the child of a Subshell
//
// The types of all other values, like bindings and redirections, can be
// inferred from context alone. Empty fields are omitted, so an absent
// optional child decodes as nil.
//
// For the sake of efficiency and simplicity, the "Type" key
// described above must be first in each JSON object.
package typedjson

import (
	"encoding"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/procsh/procsh/tree"
)

// Encode is a shortcut for EncodeOptions.Encode, with the default options.
func Encode(w io.Writer, node tree.Node) error {
	return EncodeOptions{}.Encode(w, node)
}

// EncodeOptions allows configuring how command trees are encoded.
type EncodeOptions struct {
	Indent string // e.g. "\t"
}

// Encode writes node to w in its typed JSON form,
// as described in the package documentation.
// A nil node is written as null.
func (opts EncodeOptions) Encode(w io.Writer, node tree.Node) error {
	enc := json.NewEncoder(w)
	if opts.Indent != "" {
		enc.SetIndent("", opts.Indent)
	}
	if node == nil {
		return enc.Encode(nil)
	}
	encVal, tname := encodeValue(reflect.ValueOf(node))
	if tname == "" {
		panic("node did not contain a named type?")
	}
	encVal.Elem().Field(0).SetString(tname)
	return enc.Encode(encVal.Interface())
}

func encodeValue(val reflect.Value) (reflect.Value, string) {
	switch val.Kind() {
	case reflect.Ptr:
		if val.IsNil() {
			break
		}
		return encodeValue(val.Elem())
	case reflect.Interface:
		if val.IsNil() {
			break
		}
		enc, tname := encodeValue(val.Elem())
		if tname == "" {
			panic("interface did not contain a named type?")
		}
		enc.Elem().Field(0).SetString(tname)
		return enc, ""
	case reflect.Struct:
		// Construct a new struct with an optional Type,
		// and then all the visible fields.
		typ := val.Type()
		fields := []reflect.StructField{typeField}
		for i := 0; i < typ.NumField(); i++ {
			fields = append(fields, reflect.StructField{
				Name: typ.Field(i).Name,
				Type: anyType,
				Tag:  `json:",omitempty"`,
			})
		}
		encTyp := reflect.StructOf(fields)
		enc := reflect.New(encTyp).Elem()
		empty := true
		for i := 1; i < encTyp.NumField(); i++ {
			encElem, _ := encodeValue(val.Field(i - 1))
			if encElem.IsValid() {
				enc.Field(i).Set(encElem)
				empty = false
			}
		}
		if empty && !reflect.PointerTo(typ).Implements(nodeType) {
			// Unset redirections and the like.
			break
		}
		return enc.Addr(), typ.Name()
	case reflect.Slice:
		n := val.Len()
		if n == 0 {
			break
		}
		enc := reflect.MakeSlice(anySliceType, n, n)
		for i := 0; i < n; i++ {
			elem := val.Index(i)
			encElem, _ := encodeValue(elem)
			if encElem.IsValid() {
				enc.Index(i).Set(encElem)
			} else if elem.Kind() == reflect.String {
				enc.Index(i).Set(elem) // keep empty arguments
			}
		}
		return enc, ""
	case reflect.String:
		if val.String() != "" {
			return val, ""
		}
	case reflect.Uint8:
		// Redirection kinds, encoded via their MarshalText method.
		if val.Uint() != 0 {
			return val, ""
		}
	default:
		panic(val.Kind().String())
	}
	return noValue, ""
}

var (
	noValue reflect.Value

	anyType      = reflect.TypeOf((*any)(nil)).Elem()       // any
	anySliceType = reflect.SliceOf(anyType)                 // []any
	nodeType     = reflect.TypeOf((*tree.Node)(nil)).Elem() // tree.Node

	typeField = reflect.StructField{
		Name: "Type",
		Type: reflect.TypeOf((*string)(nil)).Elem(),
		Tag:  `json:",omitempty"`,
	}
)

// Decode is a shortcut for DecodeOptions.Decode, with the default options.
func Decode(r io.Reader) (tree.Node, error) {
	return DecodeOptions{}.Decode(r)
}

// DecodeOptions allows configuring how command trees are decoded.
type DecodeOptions struct {
	// Validate makes Decode check the decoded tree with [tree.Validate].
	Validate bool
}

// Decode reads a command tree from r in its typed JSON form,
// as described in the package documentation.
// Reading null yields a nil node.
func (opts DecodeOptions) Decode(r io.Reader) (tree.Node, error) {
	var enc any
	if err := json.NewDecoder(r).Decode(&enc); err != nil {
		return nil, err
	}
	node := new(tree.Node)
	if err := decodeValue(reflect.ValueOf(node).Elem(), enc); err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := tree.Validate(*node); err != nil {
			return nil, err
		}
	}
	return *node, nil
}

var nodeByName = map[string]reflect.Type{
	tree.KindSimple.String():   reflect.TypeOf((*tree.Simple)(nil)).Elem(),
	tree.KindPipe.String():     reflect.TypeOf((*tree.Pipe)(nil)).Elem(),
	tree.KindAnd.String():      reflect.TypeOf((*tree.And)(nil)).Elem(),
	tree.KindOr.String():       reflect.TypeOf((*tree.Or)(nil)).Elem(),
	tree.KindSeq.String():      reflect.TypeOf((*tree.Seq)(nil)).Elem(),
	tree.KindBg.String():       reflect.TypeOf((*tree.Bg)(nil)).Elem(),
	tree.KindSubshell.String(): reflect.TypeOf((*tree.Subshell)(nil)).Elem(),
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func decodeValue(val reflect.Value, enc any) error {
	switch enc := enc.(type) {
	case map[string]any:
		if val.Kind() == reflect.Ptr && val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		if typeName, _ := enc["Type"].(string); typeName != "" {
			typ := nodeByName[typeName]
			if typ == nil {
				return fmt.Errorf("unknown type: %q", typeName)
			}
			if val.Type() != nodeType {
				return fmt.Errorf("unexpected %s node in %s", typeName, val.Type())
			}
			val.Set(reflect.New(typ))
		}
		for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
			val = val.Elem()
		}
		if val.Kind() != reflect.Struct {
			return fmt.Errorf("object missing a node type")
		}
		for name, fv := range enc {
			if name == "Type" {
				continue // already used above
			}
			fval := val.FieldByName(name)
			if !fval.IsValid() {
				return fmt.Errorf("unknown field for %s: %q", val.Type(), name)
			}
			if err := decodeValue(fval, fv); err != nil {
				return err
			}
		}
	case []any:
		if val.Kind() != reflect.Slice {
			return fmt.Errorf("unexpected list for %s", val.Type())
		}
		for _, encElem := range enc {
			elem := reflect.New(val.Type().Elem()).Elem()
			if err := decodeValue(elem, encElem); err != nil {
				return err
			}
			val.Set(reflect.Append(val, elem))
		}
	case string:
		if val.CanAddr() && val.Addr().Type().Implements(textUnmarshalerType) {
			return val.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(enc))
		}
		if val.Kind() != reflect.String {
			return fmt.Errorf("unexpected string for %s", val.Type())
		}
		val.SetString(enc)
	case nil:
	default:
		return fmt.Errorf("unexpected JSON value of type %T", enc)
	}
	return nil
}
