package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
)

// SerializeJSON encodes v as indented JSON with Object keys in insertion
// order and a trailing newline.
func SerializeJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// cborEnc uses Core Deterministic Encoding: map keys are sorted, so an
// Object's insertion order is not preserved in CBOR output.
var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("manifest: CBOR encoder initialization failed: " + err.Error())
	}
}

// SerializeCBOR encodes v as deterministic CBOR.
func SerializeCBOR(v any) ([]byte, error) {
	return cborEnc.Marshal(Plain(v))
}

// MarshalCBOR lets an Object nested in other values encode as a CBOR map.
func (o *Object) MarshalCBOR() ([]byte, error) {
	return cborEnc.Marshal(o.Map())
}

// Precompress returns a gzip copy of data for servers that serve
// precompressed assets.
func Precompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing manifest: %w", err)
	}
	return buf.Bytes(), nil
}
