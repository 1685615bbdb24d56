package change

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for content-addressed event identity. The version suffix
// leaves room for algorithm migration without colliding with old logs.
const domainEvent = "helix/event/v1"

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id of an event. The id is stable
// across restarts and replays given the same event, which is what lets the
// journal deduplicate writes with ON CONFLICT.
func EventID(e Event) (string, error) {
	canonical, err := MarshalCanonical(e.canonicalObject())
	if err != nil {
		return "", fmt.Errorf("EventID: marshal: %w", err)
	}
	return hashWithDomain(domainEvent, canonical), nil
}
