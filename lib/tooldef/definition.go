// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tooldef holds the static metadata each tool declares: what
// its persisted state can offer to other tools (OutputConfig), which
// MIME types it accepts as input (InputConfig), and which state fields
// can be seeded from URL query parameters.
//
// Definitions are authored on disk as JSONC files (JSON extended with
// comments and trailing commas), one tool per file:
//
//	{
//	  // Resizes images.
//	  "directive": "image-resizer",
//	  "title": "Image Resizer",
//	  "route": "/tool/image-resizer",
//	  "inputConfig": {"acceptsMimeTypes": ["image/*"]},
//	  "outputConfig": {
//	    "transferableContent": [
//	      {"dataType": "fileReference", "stateKey": "processedFileId", "mimeType": "image/*"},
//	    ],
//	  },
//	  "urlStateParams": [
//	    {"paramName": "width", "stateKey": "targetWidth", "type": "number"},
//	  ],
//	}
//
// The typical flow is LoadDir to build a [Registry], then
// [Registry.Compatible] or [Registry.CompatibleTargets] to decide
// where a tool's output may be sent.
package tooldef

// DataType says how a transferable state field is read.
type DataType string

const (
	// DataFileReference fields hold one File Library id or a list of
	// them.
	DataFileReference DataType = "fileReference"

	// DataText fields hold a string, offered as inline bytes.
	DataText DataType = "text"

	// DataJSON fields hold any value, offered as inline JSON bytes.
	DataJSON DataType = "json"
)

// Known reports whether d is one of the defined data types.
func (d DataType) Known() bool {
	switch d {
	case DataFileReference, DataText, DataJSON:
		return true
	}
	return false
}

// TransferableContent declares one state field a tool offers.
type TransferableContent struct {
	DataType DataType `json:"dataType"`

	// StateKey names the field in the tool's persisted state.
	StateKey string `json:"stateKey"`

	// MimeType is the type of the offered data. For file references
	// it may be a pattern such as "image/*" and the concrete type
	// comes from the file; empty means any type. For text it defaults
	// to text/plain and for json to application/json.
	MimeType string `json:"mimeType,omitempty"`
}

// EffectiveMimeType returns MimeType with the per-DataType default
// applied.
func (c TransferableContent) EffectiveMimeType() string {
	if c.MimeType != "" {
		return c.MimeType
	}
	switch c.DataType {
	case DataText:
		return "text/plain"
	case DataJSON:
		return "application/json"
	}
	return "*/*"
}

// OutputConfig declares what a tool can offer.
type OutputConfig struct {
	TransferableContent []TransferableContent `json:"transferableContent"`
}

// InputConfig declares what a tool accepts, for file selection and
// for receiving signals.
type InputConfig struct {
	AcceptsMimeTypes []string `json:"acceptsMimeTypes"`
}

// Accepts reports whether mimeType matches any accepted pattern.
func (c *InputConfig) Accepts(mimeType string) bool {
	if c == nil {
		return false
	}
	_, ok := BestMatch(c.AcceptsMimeTypes, mimeType)
	return ok
}

// ParamType is the type of a URL state parameter.
type ParamType string

const (
	ParamText    ParamType = "text"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamEnum    ParamType = "enum"
)

// URLStateParam maps a query parameter onto a state field.
type URLStateParam struct {
	ParamName string    `json:"paramName"`
	StateKey  string    `json:"stateKey"`
	Type      ParamType `json:"type"`

	// Values lists the allowed values of an enum parameter.
	Values []string `json:"values,omitempty"`
}

// Definition is one tool's static metadata.
type Definition struct {
	Directive      string          `json:"directive"`
	Title          string          `json:"title"`
	Route          string          `json:"route"`
	Description    string          `json:"description,omitempty"`
	InputConfig    *InputConfig    `json:"inputConfig,omitempty"`
	OutputConfig   *OutputConfig   `json:"outputConfig,omitempty"`
	URLStateParams []URLStateParam `json:"urlStateParams,omitempty"`
}

// Offers reports whether the tool declares any transferable output.
func (d *Definition) Offers() bool {
	return d.OutputConfig != nil && len(d.OutputConfig.TransferableContent) > 0
}

// Receives reports whether the tool accepts any input type.
func (d *Definition) Receives() bool {
	return d.InputConfig != nil && len(d.InputConfig.AcceptsMimeTypes) > 0
}
