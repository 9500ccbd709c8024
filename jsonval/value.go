// Package jsonval provides the structured-value representation stored in
// log records: generic JSON values, a chunk-fed parser, and compact
// serialization. Log records are always object- or array-shaped at the
// top level; this package only detects shape, it does not enforce it.
package jsonval

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Value is a decoded JSON value: map[string]any, []any, json.Number,
// string, bool, or nil.
type Value = any

// Shape is the top-level kind of a Value.
type Shape int

const (
	ShapeNull Shape = iota
	ShapeBool
	ShapeNumber
	ShapeString
	ShapeArray
	ShapeObject
)

func (s Shape) String() string {
	switch s {
	case ShapeNull:
		return "null"
	case ShapeBool:
		return "boolean"
	case ShapeNumber:
		return "number"
	case ShapeString:
		return "string"
	case ShapeArray:
		return "array"
	case ShapeObject:
		return "object"
	default:
		return "invalid"
	}
}

// ShapeOf returns the top-level shape of v.
func ShapeOf(v Value) Shape {
	switch v.(type) {
	case map[string]any:
		return ShapeObject
	case []any:
		return ShapeArray
	case string:
		return ShapeString
	case stdjson.Number, float64, int, int64:
		return ShapeNumber
	case bool:
		return ShapeBool
	default:
		return ShapeNull
	}
}

// Marshal serializes v to compact JSON text.
func Marshal(v Value) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot serialize value: %w", err)
	}
	return data, nil
}

// Parse decodes a complete JSON document.
func Parse(data []byte) (Value, error) {
	p := NewParser()
	p.Feed(data)
	return p.Finish()
}

// Parser accumulates a JSON document fed in arbitrary-size chunks and
// decodes it when Finish is called. Numbers are preserved exactly
// (decoded as json.Number) so that a record round-trips byte-for-byte.
// Input may carry trailing whitespace after the document, such as the
// newline every log record body ends with.
type Parser struct {
	buf bytes.Buffer
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends a chunk of input. It never fails; errors surface from
// Finish.
func (p *Parser) Feed(chunk []byte) {
	p.buf.Write(chunk)
}

// Finish decodes the accumulated input and returns the value. Content
// after the first document other than whitespace is an error.
func (p *Parser) Finish() (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(p.buf.Bytes()))
	dec.UseNumber()

	var v Value
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var extra Value
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON: trailing content after document")
	}
	return v, nil
}
