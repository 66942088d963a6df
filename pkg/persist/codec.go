// Package persist provides codec-based file persistence for batch
// aggregate state, with plain JSON, gob and LZ4-compressed gob codecs.
package persist

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// File extensions for the supported codecs.
const (
	jsonExtension   = ".json"
	gobExtension    = ".gob"
	gobLZ4Extension = ".gob.lz4"
)

// Default indentation for pretty-printed JSON dumps.
const defaultIndent = "  "

// Codec defines how aggregate state is serialized and deserialized.
type Codec interface {
	// Encode writes the state to the writer.
	Encode(w io.Writer, state any) error
	// Decode reads the state from the reader.
	Decode(r io.Reader, state any) error
	// Extension returns the file extension for this codec.
	Extension() string
}

// JSONCodec implements Codec using indented JSON, for dumps meant to be
// inspected by hand.
type JSONCodec struct {
	// Indent specifies the indentation string. Empty means compact JSON.
	Indent string
}

// NewJSONCodec creates a JSON codec with 2-space indentation.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{Indent: defaultIndent}
}

// Encode implements Codec.Encode using JSON encoding.
func (c *JSONCodec) Encode(w io.Writer, state any) error {
	encoder := json.NewEncoder(w)
	if c.Indent != "" {
		encoder.SetIndent("", c.Indent)
	}

	err := encoder.Encode(state)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using JSON decoding.
func (c *JSONCodec) Decode(r io.Reader, state any) error {
	err := json.NewDecoder(r).Decode(state)
	if err != nil {
		return fmt.Errorf("json decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for JSON files.
func (c *JSONCodec) Extension() string {
	return jsonExtension
}

// GobCodec implements Codec using gob encoding.
type GobCodec struct{}

// NewGobCodec creates a gob codec.
func NewGobCodec() *GobCodec {
	return &GobCodec{}
}

// Encode implements Codec.Encode using gob encoding.
func (c *GobCodec) Encode(w io.Writer, state any) error {
	err := gob.NewEncoder(w).Encode(state)
	if err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode using gob decoding.
func (c *GobCodec) Decode(r io.Reader, state any) error {
	err := gob.NewDecoder(r).Decode(state)
	if err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for gob files.
func (c *GobCodec) Extension() string {
	return gobExtension
}

// GobLZ4Codec implements Codec using gob encoding through an LZ4 frame,
// the default for batch cache dumps.
type GobLZ4Codec struct{}

// NewGobLZ4Codec creates an LZ4-compressed gob codec.
func NewGobLZ4Codec() *GobLZ4Codec {
	return &GobLZ4Codec{}
}

// Encode implements Codec.Encode: gob through an LZ4 writer.
func (c *GobLZ4Codec) Encode(w io.Writer, state any) error {
	zw := lz4.NewWriter(w)

	err := gob.NewEncoder(zw).Encode(state)
	if err != nil {
		return fmt.Errorf("gob+lz4 encode: %w", err)
	}

	closeErr := zw.Close()
	if closeErr != nil {
		return fmt.Errorf("lz4 flush: %w", closeErr)
	}

	return nil
}

// Decode implements Codec.Decode: gob through an LZ4 reader.
func (c *GobLZ4Codec) Decode(r io.Reader, state any) error {
	err := gob.NewDecoder(lz4.NewReader(r)).Decode(state)
	if err != nil {
		return fmt.Errorf("gob+lz4 decode: %w", err)
	}

	return nil
}

// Extension implements Codec.Extension for compressed gob files.
func (c *GobLZ4Codec) Extension() string {
	return gobLZ4Extension
}

// SaveState saves state to <dir>/<basename><ext> using codec.
func SaveState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}
	defer file.Close()

	err = codec.Encode(file, state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	return nil
}

// LoadState loads state from <dir>/<basename><ext> using codec. The
// state parameter must be a pointer to the target struct.
func LoadState(dir, basename string, codec Codec, state any) error {
	path := filepath.Join(dir, basename+codec.Extension())

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
