package domain

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`(?:^|\s)@([A-Za-z0-9_]{1,50})`)

func isMentionRune(r byte) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// ParseMentions extracts @username tokens from content. Usernames are 1-50
// word characters ending at a word boundary; duplicates collapse
// case-insensitively, preserving first appearance order.
func ParseMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	usernames := make([]string, 0, len(matches))
	for _, match := range matches {
		end := match[3]
		// A longer word-character run means the token exceeds the username
		// length limit; the original token is not a valid mention.
		if end < len(content) && isMentionRune(content[end]) {
			continue
		}
		username := strings.ToLower(content[match[2]:end])
		if _, ok := seen[username]; ok {
			continue
		}
		seen[username] = struct{}{}
		usernames = append(usernames, username)
	}
	if len(usernames) == 0 {
		return nil
	}
	return usernames
}
