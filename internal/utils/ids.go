package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidUserID = errors.New("invalid user id")
	ErrInvalidRoomID = errors.New("invalid room id")

	localpartPattern = regexp.MustCompile(`^[a-z0-9._=\-/]+$`)
)

// UserID builds the fully qualified identifier "@localpart:domain".
func UserID(localpart, domain string) string {
	return "@" + localpart + ":" + domain
}

// NewRoomID allocates a fresh "!opaque:domain" room identifier.
func NewRoomID(domain string) string {
	return "!" + strings.ReplaceAll(uuid.NewString(), "-", "") + ":" + domain
}

// ValidLocalpart reports whether s may be used as a user localpart.
func ValidLocalpart(s string) bool {
	return len(s) > 0 && len(s) <= 100 && localpartPattern.MatchString(s)
}

// SplitUserID returns the localpart and server name of a user id.
func SplitUserID(id string) (localpart, domain string, err error) {
	return splitID(id, '@', ErrInvalidUserID)
}

// SplitRoomID returns the opaque part and server name of a room id.
func SplitRoomID(id string) (opaque, domain string, err error) {
	return splitID(id, '!', ErrInvalidRoomID)
}

func splitID(id string, sigil byte, invalid error) (string, string, error) {
	if len(id) < 4 || len(id) > 255 || id[0] != sigil {
		return "", "", invalid
	}
	local, domain, ok := strings.Cut(id[1:], ":")
	if !ok || local == "" || domain == "" {
		return "", "", invalid
	}
	return local, domain, nil
}
