package trade

import (
	"crypto/rand"
)

// completionCodeLen is the length of the code the parties exchange in person.
const completionCodeLen = 6

// Unambiguous uppercase alphabet: no 0/O, 1/I confusion when read aloud.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateCompletionCode returns a short random code suitable for reading out
// at the hand-over. It draws from crypto/rand so codes are not guessable.
func GenerateCompletionCode() string {
	buf := make([]byte, completionCodeLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
