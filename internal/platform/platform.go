// Package platform maps free-form platform strings from contest sources onto
// the closed model.Platform set.
package platform

import (
	"strings"

	"contestcal/internal/model"
)

// fallbackPlatforms have no dedicated treatment and are grouped with
// Codeforces.
var fallbackPlatforms = []string{"CODECHEF", "HACKERRANK", "HACKEREARTH", "TOPCODER", "CSACADEMY"}

// Normalize never fails. Rules are checked in order and the first match wins,
// so a string carrying both a Codeforces and a LeetCode token resolves to
// Codeforces.
func Normalize(raw string) model.Platform {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return model.PlatformCodeforces
	}

	switch {
	case strings.Contains(s, "CODEFORCES"),
		strings.Contains(s, "CODEFORCE"),
		s == "CF",
		strings.HasPrefix(s, "CF"):
		return model.PlatformCodeforces

	case strings.Contains(s, "LEETCODE"),
		strings.Contains(s, "LEET"),
		s == "LC",
		strings.HasPrefix(s, "LC"):
		return model.PlatformLeetCode

	case strings.Contains(s, "ATCODER"),
		s == "AC",
		strings.HasPrefix(s, "AC"):
		return model.PlatformAtCoder
	}

	for _, p := range fallbackPlatforms {
		if strings.Contains(s, p) {
			return model.PlatformCodeforces
		}
	}
	return model.PlatformCodeforces
}

// NormalizeAny accepts loosely typed input (decoded JSON, form values).
// Anything that is not a string maps to the default platform.
func NormalizeAny(v any) model.Platform {
	switch s := v.(type) {
	case string:
		return Normalize(s)
	case *string:
		if s != nil {
			return Normalize(*s)
		}
	case model.Platform:
		return Normalize(string(s))
	}
	return model.PlatformCodeforces
}

// ParseList turns a CSV or repeated filter into upper-cased platform
// identifiers, dropping empties and duplicates while keeping first-seen order.
func ParseList(values ...string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.ToUpper(strings.TrimSpace(part))
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
