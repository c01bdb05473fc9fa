package assistant

import "strings"

// Validation is the verdict on a generated reply.
type Validation struct {
	Valid  bool   `json:"isValid"`
	Reason string `json:"reason"`
}

var hallucinationIndicators = []string{
	"i don't have access to",
	"i cannot access",
	"i don't know about",
	"i'm not sure about",
	"i cannot provide information about",
}

var genericIndicators = []string{
	"i'm sorry, i don't understand",
	"i cannot help with that",
	"i don't have information about",
}

// Validate flags replies that look like hallucination hedges or generic
// refusals. It never rejects a reply outright; callers log the reason.
func Validate(reply string) Validation {
	r := strings.ToLower(strings.ReplaceAll(reply, "’", "'"))
	for _, s := range hallucinationIndicators {
		if strings.Contains(r, s) {
			return Validation{Reason: "potential hallucination detected"}
		}
	}
	for _, s := range genericIndicators {
		if strings.Contains(r, s) {
			return Validation{Reason: "response too generic"}
		}
	}
	if strings.TrimSpace(r) == "" {
		return Validation{Reason: "empty response"}
	}
	return Validation{Valid: true, Reason: "valid response"}
}
