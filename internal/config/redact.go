package config

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "***"

// keywordPassword matches password=value in a keyword/value connection
// string, where value is bare or single-quoted with backslash escapes.
var keywordPassword = regexp.MustCompile(`(password\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// RedactURL hides the password in a database connection string before it is
// logged. Both pgx forms are handled: postgres:// URLs and keyword/value
// strings such as "host=db password=secret". SQLite paths and file: URIs
// carry no credentials and are returned unchanged, as is anything that does
// not parse.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	if !strings.Contains(raw, "://") {
		return keywordPassword.ReplaceAllString(raw, "${1}"+redacted)
	}

	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	if _, ok := u.User.Password(); !ok {
		return raw
	}

	// Only the password changes; everything else stays byte for byte.
	start := strings.Index(raw, "://") + len("://")

	authority := raw[start:]
	if end := strings.IndexAny(authority, "/?#"); end >= 0 {
		authority = authority[:end]
	}

	at := strings.LastIndex(authority, "@")
	if at < 0 {
		return raw
	}

	name, _, _ := strings.Cut(authority[:at], ":")

	return raw[:start] + name + ":" + redacted + raw[start+at:]
}
