package ics

import (
	"strings"
	"unicode"

	"contestcal/internal/model"
)

const maxNameLen = 50

// Filename suggests a download name such as "codeforces-div-2-round-1.ics".
func Filename(p model.Platform, name string) string {
	return p.Lower() + "-" + SanitizeName(name) + ".ics"
}

// SanitizeName keeps ASCII letters, digits, whitespace, '-' and '_', turns
// each whitespace run into a single '-', lower-cases and truncates.
func SanitizeName(name string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
		case isAlnum(r) || r == '-' || r == '_':
			b.WriteRune(r)
			inSpace = false
		}
		// Anything else is dropped and does not end a whitespace run.
	}

	out := strings.ToLower(b.String())
	if len(out) > maxNameLen {
		out = out[:maxNameLen]
	}
	return out
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
