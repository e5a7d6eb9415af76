package ratelimit

import (
	"fmt"
	"hash/fnv"
	"strings"

	"sift/internal/rules"
)

// bodyPrefixRunes bounds how much of the body participates in the content
// hash. Re-delivered duplicates often differ only in trailing content
// (read receipts, unfurled links), so only the prefix is fingerprinted.
const bodyPrefixRunes = 100

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F6FF: // pictographs, emoticons, transport
		return true
	case r >= 0x1F900 && r <= 0x1FAFF: // supplemental symbols
		return true
	case r >= 0x1F1E0 && r <= 0x1F1FF: // regional indicators (flags)
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r == 0xFE0F: // variation selector
		return true
	}
	return false
}

// normalizeForHash lowercases, trims, and strips emoji and invisible marks.
// Duplicate pushes from messaging services frequently vary in exactly these.
func normalizeForHash(s string) string {
	s = rules.Normalize(strings.ToLower(s))
	if strings.ContainsFunc(s, isEmoji) {
		s = strings.Map(func(r rune) rune {
			if isEmoji(r) {
				return -1
			}
			return r
		}, s)
	}
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ContentHash fingerprints a notification for duplicate detection:
// FNV-64a over source, normalized title, and the normalized body prefix.
func ContentHash(source, title, body string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(source))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(normalizeForHash(title)))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(normalizeForHash(truncateRunes(body, bodyPrefixRunes))))
	return fmt.Sprintf("%x", h.Sum64())
}

// DedupKey is the coarse identity used for cooldown and hourly accounting.
func DedupKey(source, title string) string {
	return source + "|" + rules.Normalize(title)
}
