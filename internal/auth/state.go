package auth

import (
	"crypto/rand"
	"fmt"
)

const (
	// StateIDLength はstateトークンの文字数。62^20 ≈ 2^119 通り。
	StateIDLength = 20

	stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// 248 = 62*4。これ以上のバイトは剰余に偏りが出るため捨てる。
	stateByteLimit = 248
)

// GenerateStateID は[A-Za-z0-9]から一様に選んだ20文字のIDを生成する。
func GenerateStateID() (string, error) {
	out := make([]byte, 0, StateIDLength)
	buf := make([]byte, StateIDLength*2)

	for len(out) < StateIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= stateByteLimit {
				continue
			}
			out = append(out, stateAlphabet[int(b)%len(stateAlphabet)])
			if len(out) == StateIDLength {
				break
			}
		}
	}

	return string(out), nil
}
