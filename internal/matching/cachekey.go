package matching

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/spigell/sahara/internal/profile"
)

const cacheKeyPrefixRunes = 50

// cacheKey combines a readable transcript prefix, a digest of the whole
// transcript and the caller identity. The user id wins over name and address.
func cacheKey(transcript string, user *profile.User) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(transcript)), " ")

	prefix := []rune(normalized)
	if len(prefix) > cacheKeyPrefixRunes {
		prefix = prefix[:cacheKeyPrefixRunes]
	}

	sum := sha256.Sum256([]byte(normalized))

	return strings.Join([]string{
		underscore(string(prefix)),
		hex.EncodeToString(sum[:6]),
		identity(user),
	}, "|")
}

func identity(user *profile.User) string {
	if user == nil {
		return "anonymous"
	}
	if id := strings.TrimSpace(user.UserID); id != "" {
		return "user:" + id
	}

	parts := []string{user.City(), user.State(), strings.TrimSpace(user.Name)}
	if strings.Join(parts, "") == "" {
		return "anonymous"
	}
	return underscore(strings.ToLower(strings.Join(parts, "_")))
}

func underscore(s string) string {
	return strings.Join(strings.Fields(s), "_")
}
