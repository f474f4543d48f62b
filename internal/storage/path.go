package storage

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/luminaforge/headshotd/internal/joberr"
)

// pathUserIDPattern duplicates the validation gateway's user-id allow-set
// on purpose: path construction is an independent safety boundary and
// must not trust that its caller already validated the id.
var pathUserIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ObjectPath derives the storage path for one generated artifact:
// {userID}/generated/{uuid}.png. It fails closed: any id that could
// escape the user's prefix is rejected rather than stripped.
func ObjectPath(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", joberr.New(joberr.KindPathValidation, "cannot derive storage path from empty user id")
	}
	if strings.Contains(trimmed, "..") || strings.ContainsAny(trimmed, `/\`) {
		return "", joberr.New(joberr.KindPathTraversal, "user id contains path traversal sequence").
			With("field", "user_id")
	}
	if !pathUserIDPattern.MatchString(trimmed) {
		return "", joberr.New(joberr.KindPathValidation, "user id is not safe for storage path construction")
	}
	return trimmed + "/generated/" + uuid.NewString() + ".png", nil
}
