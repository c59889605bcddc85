package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// HeaderWebhookSecret carries the secret Telegram echoes back on every
// webhook call. It is always masked in logs.
const HeaderWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

const redacted = "[REDACTED]"

var (
	// bot API tokens look like "123456789:AA..."; redact before phone numbers
	// so the digit run is not half-matched.
	botTokenRE = regexp.MustCompile(`\b\d{5,}:[A-Za-z0-9_-]{30,}\b`)
	emailRE    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE    = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// scrubber removes credentials and obvious PII from logged request metadata.
type scrubber struct {
	mask map[string]struct{}
}

func newScrubber(extra []string) scrubber {
	mask := map[string]struct{}{
		"authorization":                      {},
		"cookie":                             {},
		"set-cookie":                         {},
		strings.ToLower(HeaderWebhookSecret): {},
	}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}
	return scrubber{mask: mask}
}

func (s scrubber) text(v string) string {
	if v == "" {
		return v
	}
	v = botTokenRE.ReplaceAllString(v, "[REDACTED:token]")
	v = emailRE.ReplaceAllString(v, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(v, "[REDACTED:phone]")
}

func (s scrubber) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := s.mask[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = s.text(strings.Join(vv, ", "))
	}
	return out
}
