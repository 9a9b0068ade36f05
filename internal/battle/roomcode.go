// internal/battle/roomcode.go
package battle

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// RoomCodeAlphabet leaves out 0/O, 1/I/L so codes survive being read aloud or retyped.
const RoomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const RoomCodeLength = 6

// NewRoomCode draws RoomCodeLength characters uniformly from RoomCodeAlphabet.
func NewRoomCode() (string, error) {
	var sb strings.Builder
	sb.Grow(RoomCodeLength)
	max := big.NewInt(int64(len(RoomCodeAlphabet)))
	for i := 0; i < RoomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		sb.WriteByte(RoomCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeRoomCode maps user input onto the stored form.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
