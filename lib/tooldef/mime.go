// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tooldef

import "strings"

// Match specificity, best first.
const (
	matchNone = iota
	matchAny
	matchType
	matchExact
)

// BestMatch returns the most specific pattern in patterns that
// matches mimeType. An exact type beats "type/*", which beats "*/*".
// Parameters after ";" and letter case are ignored on both sides.
// mimeType may itself be a pattern, in which case the two match when
// some concrete type could satisfy both.
func BestMatch(patterns []string, mimeType string) (string, bool) {
	best, bestRank := "", matchNone
	for _, pattern := range patterns {
		if rank := matchRank(pattern, mimeType); rank > bestRank {
			best, bestRank = pattern, rank
		}
	}
	return best, bestRank != matchNone
}

// MatchMIME reports whether pattern and mimeType overlap.
func MatchMIME(pattern, mimeType string) bool {
	return matchRank(pattern, mimeType) != matchNone
}

// NormalizeMIME lowercases a MIME type and strips its parameters.
func NormalizeMIME(mimeType string) string {
	if index := strings.IndexByte(mimeType, ';'); index >= 0 {
		mimeType = mimeType[:index]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func matchRank(pattern, mimeType string) int {
	patternType, patternSub, ok := splitMIME(pattern)
	if !ok {
		return matchNone
	}
	valueType, valueSub, ok := splitMIME(mimeType)
	if !ok {
		return matchNone
	}

	if patternType == "*" || valueType == "*" {
		return matchAny
	}
	if patternType != valueType {
		return matchNone
	}
	if patternSub == "*" || valueSub == "*" {
		return matchType
	}
	if patternSub != valueSub {
		return matchNone
	}
	return matchExact
}

func splitMIME(mimeType string) (string, string, bool) {
	normalized := NormalizeMIME(mimeType)
	if normalized == "*" {
		return "*", "*", true
	}
	major, minor, found := strings.Cut(normalized, "/")
	if !found || major == "" || minor == "" {
		return "", "", false
	}
	return major, minor, true
}
