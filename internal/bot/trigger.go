package bot

import (
	"strings"
	"unicode"
)

// markers are the command prefixes accepted in front of a trigger.
const markers = "/!"

// ParseCommand splits text into a normalized trigger and its argument string.
//
// The first word must start with "/" or "!" unless inline is set (inline
// queries carry the bare trigger). A "@name" suffix on the trigger is
// dropped when it names botName (or botName is unknown); a suffix naming
// another bot means the command is not for us and ok is false.
func ParseCommand(text, botName string, inline bool) (trigger, args string, ok bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if text == "" {
		return "", "", false
	}
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}

	switch {
	case strings.IndexByte(markers, head[0]) >= 0:
		head = head[1:]
	case !inline:
		return "", "", false
	}

	if name, suffix, found := strings.Cut(head, "@"); found {
		botName = strings.TrimPrefix(botName, "@")
		if suffix != "" && botName != "" && !strings.EqualFold(suffix, botName) {
			return "", "", false
		}
		head = name
	}
	if head == "" {
		return "", "", false
	}
	return foldTrigger(head), strings.TrimSpace(rest), true
}
