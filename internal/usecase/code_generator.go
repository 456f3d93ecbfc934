package usecase

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// Charset avoids ambiguous characters like O/0, I/1, l.
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeRandomLen = 8

// maxCodeGenRetries bounds the retry-until-unique loop per code.
const maxCodeGenRetries = 10

// newCodeString builds one candidate code: PREFIX-YEAR-XXXXXXXX with a
// secure random suffix. Uniqueness is the caller's job (checked against the
// store and the in-flight batch).
func newCodeString(prefix string, now time.Time) (string, error) {
	buf := make([]byte, codeRandomLen)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeChars[int(buf[i])%len(codeChars)]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now.Year(), string(buf)), nil
}
