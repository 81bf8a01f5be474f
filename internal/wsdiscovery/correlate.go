package wsdiscovery

import (
	"strings"

	"github.com/google/uuid"
)

// IsMatchingResponse reports whether env answers the probe sent with
// messageID and carries a usable match. Only the first ProbeMatch is
// considered, and its Scopes must be non-empty.
func IsMatchingResponse(messageID uuid.UUID, env *Envelope) bool {
	if env == nil || env.Header == nil || env.Body == nil {
		return false
	}
	if messageID == uuid.Nil {
		return false
	}
	// Devices echo "uuid:<id>" or "urn:uuid:<id>"
	if !strings.Contains(env.Header.RelatesTo, messageID.String()) {
		return false
	}
	if len(env.Body.ProbeMatches) == 0 {
		return false
	}
	return strings.TrimSpace(env.Body.ProbeMatches[0].Scopes) != ""
}
