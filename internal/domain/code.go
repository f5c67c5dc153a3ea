package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

const (
	// CodeAlphabet leaves out characters that are easy to misread (0/O, 1/I).
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

type RoomCode string

func (c RoomCode) String() string {
	return string(c)
}

// GenerateRoomCode draws CodeLength symbols uniformly from CodeAlphabet.
// len(CodeAlphabet) divides 256, so reducing a random byte modulo 32 is unbiased.
func GenerateRoomCode() (RoomCode, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	code := make([]byte, CodeLength)
	for i := range b {
		code[i] = CodeAlphabet[int(b[i])%len(CodeAlphabet)]
	}

	return RoomCode(code), nil
}

// ParseRoomCode canonicalizes user input to uppercase and validates its shape.
func ParseRoomCode(raw string) (RoomCode, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !roomCodePattern.MatchString(code) {
		return "", ErrInvalidRoomCode
	}
	return RoomCode(code), nil
}
