// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tooldef

import (
	"fmt"
	"regexp"
	"strings"
)

// directivePattern matches tool directives: lowercase words joined by
// single hyphens.
var directivePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Validate checks a Definition for structural issues and returns
// human-readable descriptions. An empty list means the definition is
// valid.
//
// Checks:
//   - Directive is kebab-case, Title is set, Route starts with "/"
//   - Every transferable content has a known DataType and a StateKey
//   - Every MIME type or pattern has the type/subtype form
//   - URL parameters have a name, a state key and a known type;
//     enum parameters list their values; names are unique
func Validate(definition *Definition) []string {
	var issues []string

	if !directivePattern.MatchString(definition.Directive) {
		issues = append(issues, fmt.Sprintf("directive %q must be lowercase words joined by hyphens", definition.Directive))
	}
	if strings.TrimSpace(definition.Title) == "" {
		issues = append(issues, "title is required")
	}
	if !strings.HasPrefix(definition.Route, "/") {
		issues = append(issues, fmt.Sprintf("route %q must start with /", definition.Route))
	}

	if definition.InputConfig != nil {
		for index, pattern := range definition.InputConfig.AcceptsMimeTypes {
			if _, _, ok := splitMIME(pattern); !ok {
				issues = append(issues, fmt.Sprintf("inputConfig.acceptsMimeTypes[%d]: %q is not a MIME type", index, pattern))
			}
		}
	}

	if definition.OutputConfig != nil {
		for index, content := range definition.OutputConfig.TransferableContent {
			prefix := fmt.Sprintf("outputConfig.transferableContent[%d]", index)
			if !content.DataType.Known() {
				issues = append(issues, fmt.Sprintf("%s: unknown dataType %q", prefix, content.DataType))
			}
			if content.StateKey == "" {
				issues = append(issues, prefix+": stateKey is required")
			}
			if content.MimeType != "" {
				if _, _, ok := splitMIME(content.MimeType); !ok {
					issues = append(issues, fmt.Sprintf("%s: %q is not a MIME type", prefix, content.MimeType))
				}
			}
		}
	}

	seen := make(map[string]int, len(definition.URLStateParams))
	for index, param := range definition.URLStateParams {
		prefix := fmt.Sprintf("urlStateParams[%d]", index)
		if param.ParamName == "" {
			issues = append(issues, prefix+": paramName is required")
		} else if first, duplicate := seen[param.ParamName]; duplicate {
			issues = append(issues, fmt.Sprintf("%s: duplicate paramName %q (first used at urlStateParams[%d])", prefix, param.ParamName, first))
		} else {
			seen[param.ParamName] = index
		}
		if param.StateKey == "" {
			issues = append(issues, prefix+": stateKey is required")
		}
		switch param.Type {
		case ParamText, ParamNumber, ParamBoolean:
		case ParamEnum:
			if len(param.Values) == 0 {
				issues = append(issues, prefix+": enum parameter needs values")
			}
		default:
			issues = append(issues, fmt.Sprintf("%s: unknown type %q", prefix, param.Type))
		}
	}

	return issues
}
