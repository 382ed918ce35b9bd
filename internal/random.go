// Package internal holds shared helpers for identifier and passcode
// generation. Everything here uses crypto/rand.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

// JourneyID is the opaque identifier that keys a journey across requests.
type JourneyID [16]byte

// NewJourneyID generates a random journey identifier.
func NewJourneyID() (JourneyID, error) {
	var jid JourneyID
	_, err := rand.Read(jid[:])
	return jid, err
}

func (j JourneyID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(j[:])
}

// ParseJourneyID validates the client-supplied form of a journey id.
func ParseJourneyID(id string) (JourneyID, error) {
	var jid JourneyID

	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return jid, err
	}
	if len(raw) != len(jid) {
		return jid, errors.New("invalid journey id size")
	}

	copy(jid[:], raw)
	return jid, nil
}

// NewPasscode generates a numeric one-time passcode of the given length.
// The first digit is never zero, so the code survives clients that parse
// it numerically and drop leading zeros.
func NewPasscode(digits int) (string, error) {
	if digits < 4 || digits > 8 {
		return "", errors.New("invalid passcode digits")
	}

	var b strings.Builder
	b.Grow(digits)

	first, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return "", err
	}
	b.WriteByte(byte('1' + first.Int64()))

	ten := big.NewInt(10)
	for i := 1; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// HashPasscode hashes a passcode for storage; the plaintext is never
// persisted.
func HashPasscode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
