package auth

import (
	"fmt"
)

const (
	LinkTokenLength = 32
	OTPLength       = 6

	linkAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"
	otpAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ#!&@"
)

// NewLinkToken returns a URL-safe token of the given length drawn from a
// 64-symbol alphabet, 6 bits of entropy per character.
func NewLinkToken(length int) (string, error) {
	if length <= 0 {
		length = LinkTokenLength
	}
	return randomString(linkAlphabet, length)
}

// NewOTP returns a one-time code mixing digits, letters and specials.
func NewOTP() (string, error) {
	return randomString(otpAlphabet, OTPLength)
}

func randomString(alphabet string, length int) (string, error) {
	// Rejection sampling keeps the distribution uniform for alphabets that
	// are not a power of two.
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := randRead(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
