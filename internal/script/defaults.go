package script

import "time"

// DefaultSecurityLimits provides safe default constraints for script execution
var DefaultSecurityLimits = SecurityLimits{
	MaxExecutionTime: 0, // handlers are trusted to be short; no watchdog
	AllowedPackages: []string{
		"fmt",
		"math",
		"rand",
		"times",
		"text",
	},
}

// DefaultReloadDebounce coalesces editor write bursts into one reload.
const DefaultReloadDebounce = 250 * time.Millisecond

// GetDefaultSecurityLimits returns a copy of the default security limits
func GetDefaultSecurityLimits() SecurityLimits {
	limits := DefaultSecurityLimits

	limits.AllowedPackages = make([]string, len(DefaultSecurityLimits.AllowedPackages))
	copy(limits.AllowedPackages, DefaultSecurityLimits.AllowedPackages)

	return limits
}
