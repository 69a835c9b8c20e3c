package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

type localeFile struct {
	Locale    string
	Namespace string
	Messages  map[string]string
}

// parseLocaleFile reads the strict YAML subset catalog files use: a quoted
// locale line, a quoted namespace line, then a messages block of quoted
// "key": "value" entries. Keys and values must be Go-quoted strings.
func parseLocaleFile(data []byte) (localeFile, error) {
	out := localeFile{Messages: map[string]string{}}
	inMessages := false

	for _, rawLine := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "locale:"):
			value, err := unquote(strings.TrimPrefix(line, "locale:"))
			if err != nil {
				return localeFile{}, fmt.Errorf("parse locale: %w", err)
			}
			out.Locale = value
		case strings.HasPrefix(line, "namespace:"):
			value, err := unquote(strings.TrimPrefix(line, "namespace:"))
			if err != nil {
				return localeFile{}, fmt.Errorf("parse namespace: %w", err)
			}
			out.Namespace = value
		case line == "messages:":
			inMessages = true
		default:
			if !inMessages {
				return localeFile{}, fmt.Errorf("unexpected line %q", line)
			}
			key, value, err := parseEntry(line)
			if err != nil {
				return localeFile{}, fmt.Errorf("parse message entry %q: %w", line, err)
			}
			if key == "" {
				return localeFile{}, fmt.Errorf("message key cannot be blank")
			}
			out.Messages[key] = value
		}
	}

	if out.Locale == "" {
		return localeFile{}, fmt.Errorf("missing locale")
	}
	if out.Namespace == "" {
		return localeFile{}, fmt.Errorf("missing namespace")
	}
	if len(out.Messages) == 0 {
		return localeFile{}, fmt.Errorf("missing messages")
	}
	return out, nil
}

func parseEntry(line string) (string, string, error) {
	keyToken, rest, err := scanQuoted(line)
	if err != nil {
		return "", "", err
	}
	key, err := strconv.Unquote(keyToken)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ":") {
		return "", "", fmt.Errorf("missing ':' separator")
	}
	value, err := unquote(strings.TrimPrefix(rest, ":"))
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return strings.TrimSpace(key), value, nil
}

func unquote(value string) (string, error) {
	return strconv.Unquote(strings.TrimSpace(value))
}

// scanQuoted returns the leading quoted token and the remainder of the line.
func scanQuoted(line string) (string, string, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "\"") {
		return "", "", fmt.Errorf("expected quoted token")
	}
	escaped := false
	for i := 1; i < len(trimmed); i++ {
		ch := trimmed[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			return trimmed[:i+1], trimmed[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("unterminated quoted token")
}
