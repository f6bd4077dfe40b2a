package provider

import (
	"fmt"
	"regexp"
	"strings"
)

var docIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)

// ParseRef reduces a document reference to the identifier stores understand.
// References with a scheme keep only the first path segment after /d/; any
// other non-empty reference is used as-is, so local stores can address
// documents by name or relative path, including paths with a d/ directory.
func ParseRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty document reference", ErrTransport)
	}

	if !strings.Contains(ref, "://") {
		return ref, nil
	}

	if m := docIDPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: could not find document id in %q", ErrTransport, ref)
}
