package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"mercator-hq/arbiter/pkg/model"
)

// HashContent returns the hex-encoded SHA-256 of content, or "" when
// content is empty.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashInput hashes the canonical JSON form of an applicant record.
// encoding/json writes map keys in sorted order, so equal records hash
// equally regardless of how they were built. A nil record hashes as {}.
func HashInput(data model.ApplicantData) (string, error) {
	if data == nil {
		data = model.ApplicantData{}
	}
	canonical, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize applicant data: %w", err)
	}
	return HashContent(canonical), nil
}
