package services

import "strings"

// safetyPreamble is prepended to every image prompt before it reaches any
// provider. The generated imagery must stay advertiser-safe no matter what
// the storyboard model produced.
const safetyPreamble = "Family-friendly, safe-for-work illustration. No nudity, no violence, " +
	"no gore, no weapons, no frightening imagery. Uplifting, wholesome, suitable for all ages."

// SanitizePrompt prefixes the fixed safety preamble onto a raw image prompt.
// Deterministic: the same input always produces the same output, so repeated
// runs and single-scene regenerations send identical prompts.
func SanitizePrompt(raw string) string {
	return safetyPreamble + " " + strings.TrimSpace(raw)
}
