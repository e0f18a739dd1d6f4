package utils

import "strings"

var loopbackLiterals = map[string]bool{
	"127.0.0.1":        true,
	"0.0.0.0":          true,
	"::1":              true,
	"::ffff:127.0.0.1": true,
}

// IsLocal reports whether an address is not publicly routable.
// The 172. check matches the whole first octet, not only 172.16.0.0/12.
func IsLocal(address string) bool {
	if loopbackLiterals[address] {
		return true
	}

	return strings.HasPrefix(address, "10.") ||
		strings.HasPrefix(address, "172.") ||
		strings.HasPrefix(address, "192.168.")
}
