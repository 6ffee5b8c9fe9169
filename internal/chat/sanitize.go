// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package chat

import (
	"html"
	"strings"
	"unicode"
)

// Sanitize neutralizes markup and strips control runes from user content.
// HTML special characters are entity-escaped rather than removed so the
// visible text survives; control characters (including newlines — chat is
// single-line) are dropped. The result is trimmed and truncated to maxRunes.
func Sanitize(content string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > maxRunes {
		out = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return html.EscapeString(out)
}
