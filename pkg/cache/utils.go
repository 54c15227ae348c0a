package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// GenerateKeyWithParams creates a cache key with multiple parameters.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		fmt.Fprintf(&b, ":%v", param)
	}
	return b.String()
}

// HashKey returns a short stable hash, safe to embed in glob patterns.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:12])
}

// BuildPattern creates a glob matching every key under prefix.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}

// MatchPattern reports whether key matches a glob where * matches any run of
// characters and ? matches exactly one.
func MatchPattern(pattern, key string) bool {
	p, k := []rune(pattern), []rune(key)
	pi, ki := 0, 0
	star, mark := -1, 0
	for ki < len(k) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == k[ki]):
			pi++
			ki++
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, ki
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ki = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
