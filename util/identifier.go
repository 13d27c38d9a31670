package util

import "regexp"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
