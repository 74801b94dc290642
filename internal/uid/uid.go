// Package uid generates and validates DICOM study instance UIDs.
package uid

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultOrgRoot is the organizational UID root used when no root is
// configured. The trailing dot separates the root from the generated suffix.
const DefaultOrgRoot = "1.3.6.1.4.1.62860."

// maxUIDLength is the DICOM limit on UID length.
const maxUIDLength = 64

// uidShape is the loose DICOM UID shape: dot-separated decimal components.
var uidShape = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// NewStudyUID returns a fresh StudyInstanceUID under the given organizational
// root: the root followed by the decimal rendering of a random UUID, truncated
// so the whole UID stays within the 64-character DICOM limit. Uniqueness per
// invocation comes from the 122 random bits of the UUID. A root so long that
// no suffix component fits is an error.
func NewStudyUID(root string) (string, error) {
	if root == "" {
		root = DefaultOrgRoot
	}
	if !strings.HasSuffix(root, ".") {
		root += "."
	}

	remaining := maxUIDLength - len(root)
	if remaining < 1 {
		return "", fmt.Errorf("org root %q leaves no room for a suffix within the %d-character UID limit", root, maxUIDLength)
	}

	u := uuid.New()
	suffix := new(big.Int).SetBytes(u[:]).String()
	if remaining < len(suffix) {
		suffix = suffix[:remaining]
	}
	// A component must not carry a leading zero.
	suffix = strings.TrimLeft(suffix, "0")
	if suffix == "" {
		suffix = "0"
	}
	return root + suffix, nil
}

// Valid reports whether uid has the loose DICOM UID shape and fits the
// 64-character limit. It does not check component semantics.
func Valid(uid string) bool {
	return uid != "" && len(uid) <= maxUIDLength && uidShape.MatchString(uid)
}
