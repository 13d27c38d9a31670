package action

import "strings"

// ABORT_ERROR_PREFIX marks an output that must stop the whole run.
const ABORT_ERROR_PREFIX string = "ABORT ERROR:"

// IsAbortMarker only matches the marker at the very start of the text.
func IsAbortMarker(text string) bool {
	return strings.HasPrefix(text, ABORT_ERROR_PREFIX)
}
