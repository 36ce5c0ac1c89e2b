package app

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	partSeparator  = "-part-"
	maxBaseNameLen = 60
)

var (
	unsafeNameChars = regexp.MustCompile(`[^a-z0-9_]+`)
	partIDPattern   = regexp.MustCompile(`^(.+-part-)\d{3,}$`)

	// 測試時可替換成固定 token
	newUniqueToken = func() string {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
)

// SanitizeBaseName lower-cases the display name without its extension and
// collapses everything outside [a-z0-9_] into single dashes.
func SanitizeBaseName(fileName string) string {
	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	name = unsafeNameChars.ReplaceAllString(strings.ToLower(name), "-")
	name = strings.Trim(name, "-")
	if len(name) > maxBaseNameLen {
		name = strings.TrimRight(name[:maxBaseNameLen], "-")
	}
	if name == "" {
		return "video"
	}
	return name
}

// NewBaseID <sanitized>-<token>; the direct upload id and the root of part ids
func NewBaseID(fileName string) string {
	return fmt.Sprintf("%s-%s", SanitizeBaseName(fileName), newUniqueToken())
}

// PartPublicID 1-based, zero padded: base-part-001
func PartPublicID(baseID string, index int) string {
	return fmt.Sprintf("%s%s%03d", baseID, partSeparator, index+1)
}

// PartPrefix shared prefix of every part of baseID
func PartPrefix(baseID string) string {
	return baseID + partSeparator
}

// MultipartPrefix returns "<base>-part-" when publicID is a split part id.
func MultipartPrefix(publicID string) (string, bool) {
	m := partIDPattern.FindStringSubmatch(publicID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ThumbnailRef thumbnail derived from the primary part
func ThumbnailRef(publicID string) string {
	if publicID == "" {
		return ""
	}
	return publicID + ".jpg"
}
