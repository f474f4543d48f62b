// Package validate is the gateway between the untrusted job payload and
// the rest of the worker. It has no side effects and no resource
// dependencies; nothing downstream ever sees a prompt or user id that
// did not pass through Request.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/luminaforge/headshotd/internal/joberr"
)

// Sanitization limits. Prompt and user-id lengths count runes, since the
// inbound payload may arrive in any encoding.
const (
	MinPromptLen = 1
	MaxPromptLen = 1000
	MaxUserIDLen = 100
)

var (
	// userIDPattern is the full allow-set for user identifiers. It
	// deliberately excludes every path separator and traversal
	// character so a validated id is safe inside a storage path.
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	// promptDisallowed matches characters outside the prompt allow-set:
	// word characters, whitespace, and a fixed punctuation set.
	promptDisallowed = regexp.MustCompile(`[^\w\s.,!?;:()\-'"]`)

	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Command is the trusted form of a generation request. It is constructed
// only by Request; holding one implies both fields passed sanitization.
type Command struct {
	Prompt string
	UserID string
}

// Request validates and sanitizes the raw input payload into a Command.
// Every rejection is a *joberr.Error; an unexpected internal fault is
// converted to a generic validation_error so no panic crosses this
// boundary.
func Request(input map[string]any) (cmd Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			cmd = Command{}
			err = joberr.Newf(joberr.KindValidation, "unexpected validation fault: %v", r)
		}
	}()

	prompt, jerr := stringField(input, "prompt")
	if jerr != nil {
		return Command{}, jerr
	}
	userID, jerr := stringField(input, "user_id")
	if jerr != nil {
		return Command{}, jerr
	}

	prompt, jerr = sanitizePrompt(prompt)
	if jerr != nil {
		return Command{}, jerr
	}
	userID, jerr = sanitizeUserID(userID)
	if jerr != nil {
		return Command{}, jerr
	}

	return Command{Prompt: prompt, UserID: userID}, nil
}

// stringField extracts a required string field from the payload.
func stringField(input map[string]any, field string) (string, *joberr.Error) {
	raw, ok := input[field]
	if !ok || raw == nil {
		return "", joberr.Newf(joberr.KindMissingField, "required field %q is missing", field).
			With("field", field)
	}
	s, ok := raw.(string)
	if !ok {
		return "", joberr.Newf(joberr.KindInvalidType, "field %q must be a string", field).
			With("field", field).
			With("expected", "string").
			With("actual", typeName(raw))
	}
	return s, nil
}

// sanitizePrompt trims, length-checks, strips disallowed characters, and
// collapses whitespace. The minimum-length invariant is re-checked after
// stripping: sanitization can shrink a prompt below the minimum, so the
// pre-strip check alone is not sufficient.
func sanitizePrompt(prompt string) (string, *joberr.Error) {
	prompt = strings.TrimSpace(prompt)

	n := utf8.RuneCountInString(prompt)
	if n < MinPromptLen {
		return "", joberr.New(joberr.KindPromptTooShort, "prompt is empty after trimming")
	}
	if n > MaxPromptLen {
		return "", joberr.Newf(joberr.KindPromptTooLong, "prompt exceeds %d characters", MaxPromptLen).
			With("length", n).
			With("max_length", MaxPromptLen)
	}

	prompt = promptDisallowed.ReplaceAllString(prompt, "")
	prompt = whitespaceRun.ReplaceAllString(prompt, " ")
	prompt = strings.TrimSpace(prompt)

	if utf8.RuneCountInString(prompt) < MinPromptLen {
		return "", joberr.New(joberr.KindPromptEmptyAfterStrip,
			"prompt contains no allowed characters after sanitization")
	}
	return prompt, nil
}

func sanitizeUserID(userID string) (string, *joberr.Error) {
	userID = strings.TrimSpace(userID)

	if userID == "" {
		return "", joberr.New(joberr.KindUserIDEmpty, "user_id is empty after trimming")
	}
	if n := utf8.RuneCountInString(userID); n > MaxUserIDLen {
		return "", joberr.Newf(joberr.KindUserIDTooLong, "user_id exceeds %d characters", MaxUserIDLen).
			With("length", n).
			With("max_length", MaxUserIDLen)
	}
	if !userIDPattern.MatchString(userID) {
		return "", joberr.New(joberr.KindUserIDInvalidFormat,
			"user_id may only contain letters, digits, underscores, and hyphens")
	}
	return userID, nil
}

func typeName(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
