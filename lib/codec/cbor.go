// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same logical value always produces identical bytes.
var encMode cbor.EncMode

// decMode decodes untyped maps as map[string]any and ignores unknown
// fields, so persisted state written by an older tool version still
// decodes into the current struct.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Tool state is keyed by JSON field names. Generic readers
		// (the ITDE resolver, URL seeding) need map[string]any rather
		// than CBOR's default map[any]any.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),

		// Integers in untyped positions decode as int64 regardless of
		// sign, matching what URL seeding writes.
		IntDec: cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Convert re-shapes src into dst by encoding and decoding through
// CBOR. Field names follow the json (or cbor) struct tags on both
// sides. Used to move between a typed tool state and its generic
// map[string]any form.
func Convert(src, dst any) error {
	data, err := encMode.Marshal(src)
	if err != nil {
		return fmt.Errorf("codec: convert encode: %w", err)
	}
	if err := decMode.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("codec: convert decode: %w", err)
	}
	return nil
}

// RawMessage is an encoded CBOR value whose decoding is deferred.
type RawMessage = cbor.RawMessage

// Diagnose returns the RFC 8949 diagnostic notation for data. The
// CLI uses it to print persisted tool state.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
