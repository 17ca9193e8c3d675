package service

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// Codes are 6 hex characters (~16.7M combinations), regenerated on every
// collision retry. Stateless: each call draws fresh randomness.
const codeLength = 6

func GenerateCode() (string, error) {
	buf := make([]byte, (codeLength+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:codeLength], nil
}

// Custom codes share the URL path namespace with API routes, so route
// prefixes are reserved.
var reservedCodes = map[string]bool{
	"shorturls": true,
	"health":    true,
	"api":       true,
	"v1":        true,
}

var codeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,50}$`)

func ValidateCustomCode(code string) bool {
	if reservedCodes[strings.ToLower(code)] {
		return false
	}
	return codeRegex.MatchString(code)
}
