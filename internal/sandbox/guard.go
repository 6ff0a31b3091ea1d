package sandbox

import "regexp"

// destructivePatterns rejects a short list of known-destructive one-shot
// commands before ever shelling out, so an exec request that matches one
// fails the same way a launch failure would rather than ever reaching the
// container.
var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+/(\s|$)`),
	regexp.MustCompile(`rm\s+-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*\s+/(\s|$)`),
	regexp.MustCompile(`mkfs(\.\w+)?\s`),
	regexp.MustCompile(`dd\s.*of=/dev/`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
}

// checkDestructive returns a human-readable reason if command matches a
// known-destructive pattern, or "" if it's clear to run.
func checkDestructive(command string) string {
	for _, pat := range destructivePatterns {
		if pat.MatchString(command) {
			return "refused: command matches a known-destructive pattern"
		}
	}
	return ""
}
