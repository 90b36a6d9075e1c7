package sale

import (
	"crypto/rand"
	"fmt"
)

// Crockford base32 alphabet: no I, L, O or U, so codes stay legible on
// a printed ticket.
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// 13 characters at 5 bits each gives 65 bits of randomness per code.
const codeLength = 13

const codePrefix = "TKT-"

func newTicketCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return codePrefix + string(code), nil
}
