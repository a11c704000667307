// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shared CBOR configuration for everything
// toolshelf writes to disk: per-tool state payloads and tool state
// snapshots handed to the ITDE resolver.
//
// Tool state types carry `json` tags because tools also exchange them
// as JSON (URL parameters, definition files). fxamacker/cbor reads
// `json` tags when `cbor` tags are absent, so one tag controls field
// naming for both formats. Do not put both tags on the same field.
//
//	data, err := codec.Marshal(state)
//	err = codec.Unmarshal(data, &state)
//
// Convert moves a value between its typed and generic forms:
//
//	var fields map[string]any
//	err := codec.Convert(state, &fields)
package codec
