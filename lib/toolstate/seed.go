// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolstate

import (
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/bureau-foundation/toolshelf/lib/codec"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
)

// seed returns current with every applicable query parameter written
// into its field, and how many were applied.
func (h *Handle[T]) seed(current T, query url.Values) (T, int) {
	var fields map[string]any
	if err := codec.Convert(current, &fields); err != nil {
		h.logger.Warn("tool state is not a field map, query ignored", "error", err)
		return current, 0
	}
	if fields == nil {
		fields = map[string]any{}
	}

	applied := 0
	for _, param := range h.params {
		if !query.Has(param.ParamName) {
			continue
		}
		value, err := parseParam(param, query.Get(param.ParamName))
		if err != nil {
			h.logger.Debug("query parameter ignored", "param", param.ParamName, "error", err)
			continue
		}

		previous, existed := fields[param.StateKey]
		fields[param.StateKey] = value

		var candidate T
		err = codec.Convert(fields, &candidate)
		if err == nil && h.validate != nil {
			err = h.validate(candidate)
		}
		if err != nil {
			h.logger.Debug("query parameter does not fit state", "param", param.ParamName, "error", err)
			if existed {
				fields[param.StateKey] = previous
			} else {
				delete(fields, param.StateKey)
			}
			continue
		}
		current = candidate
		applied++
	}
	return current, applied
}

// parseParam converts a raw query value to the declared type.
// Integral numbers become int64 so they fit integer fields.
func parseParam(param tooldef.URLStateParam, raw string) (any, error) {
	switch param.Type {
	case tooldef.ParamText:
		return raw, nil
	case tooldef.ParamNumber:
		number, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		if number == math.Trunc(number) && math.Abs(number) < 1<<53 {
			return int64(number), nil
		}
		return number, nil
	case tooldef.ParamBoolean:
		value, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return value, nil
	case tooldef.ParamEnum:
		if !slices.Contains(param.Values, raw) {
			return nil, fmt.Errorf("%q is not one of %v", raw, param.Values)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("unknown parameter type %q", param.Type)
}
