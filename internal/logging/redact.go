package logging

import (
	"regexp"
	"strings"
)

// credentialPattern matches key=value or key: value pairs naming a credential.
var credentialPattern = regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|access[_-]?token|request[_-]?token|auth[_-]?token|token)([=:]\s*)["']?([^\s"'&,:]+)["']?`)

// MaskCredential keeps only the ends of a secret.
func MaskCredential(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) <= 4:
		return strings.Repeat("*", len(value))
	case len(value) <= 8:
		return value[:2] + strings.Repeat("*", len(value)-2)
	default:
		return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
	}
}

// Redact masks credential values embedded in s.
func Redact(s string) string {
	return credentialPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := credentialPattern.FindStringSubmatch(match)
		return m[1] + m[2] + MaskCredential(m[3])
	})
}

// redactedError keeps the wrapped chain for errors.Is while masking its text.
type redactedError struct {
	err error
	msg string
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// RedactError returns err with credentials masked in its message.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := Redact(err.Error())
	if msg == err.Error() {
		return err
	}
	return &redactedError{err: err, msg: msg}
}
