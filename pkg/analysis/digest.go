package analysis

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"interview-analyzer/pkg/interview"
)

// DigestInputs are the values that identify a cacheable analysis
type DigestInputs struct {
	Text         string
	QuestionID   string
	QuestionText string
}

// InputsFor builds the digest inputs of a response to a question
func InputsFor(response interview.Response, question interview.Question) DigestInputs {
	return DigestInputs{
		Text:         response.Transcript(),
		QuestionID:   question.ID,
		QuestionText: question.Text,
	}
}

// Digest returns the hex SHA-256 of the length-prefixed inputs. Length
// prefixes keep ("ab", "c") and ("a", "bc") apart.
func Digest(in DigestInputs) string {
	h := sha256.New()
	var size [8]byte
	for _, field := range []string{in.Text, in.QuestionID, in.QuestionText} {
		binary.BigEndian.PutUint64(size[:], uint64(len(field)))
		h.Write(size[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
