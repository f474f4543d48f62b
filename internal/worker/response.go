package worker

import (
	"strings"

	"github.com/luminaforge/headshotd/internal/joberr"
)

// Outcome is the terminal result of one job. Exactly one of ImageURL or
// Err is populated.
type Outcome struct {
	JobID      string
	UserID     string
	ImageURL   string
	ObjectPath string
	Err        *joberr.Error
}

// secretDetailKeys are substrings of detail keys whose values must never
// reach a response, even when an underlying failure attached them.
var secretDetailKeys = []string{
	"key",
	"secret",
	"credential",
	"token",
	"password",
	"authorization",
}

// BuildResponse renders the uniform response map the dispatch harness
// receives for both outcomes:
//
//	success: {"status": "success", "image_url": ...}
//	failure: {"error": ..., "error_type": ..., "status": "failed", "details"?: ...}
func BuildResponse(o Outcome) map[string]any {
	if o.Err == nil {
		return map[string]any{
			"status":    "success",
			"image_url": o.ImageURL,
		}
	}

	resp := map[string]any{
		"error":      o.Err.Message,
		"error_type": string(o.Err.Kind),
		"status":     "failed",
	}
	if details := scrubDetails(o.Err.Details); len(details) > 0 {
		resp["details"] = details
	}
	return resp
}

// scrubDetails copies the detail map, dropping entries under
// secret-looking keys.
func scrubDetails(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if secretDetailKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func secretDetailKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range secretDetailKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
