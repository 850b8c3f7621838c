package twofactor

import (
	"crypto/rand"
	"crypto/sha256"
	"strings"
)

// Backup codes use an alphabet without 0/O/1/I/L so codes survive
// being read aloud or copied by hand.
const backupAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateBackupCodes returns count plaintext codes of length chars
// and the SHA-256 hashes to persist. Plaintext is shown to the user
// once and never stored.
func GenerateBackupCodes(count, length int) ([]string, [][32]byte, error) {
	if count <= 0 {
		count = 10
	}
	if length <= 0 {
		length = 10
	}

	codes := make([]string, count)
	hashes := make([][32]byte, count)
	buf := make([]byte, length)

	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		var b strings.Builder
		b.Grow(length + length/4)
		for j, c := range buf {
			if j > 0 && j%4 == 0 {
				b.WriteByte('-')
			}
			b.WriteByte(backupAlphabet[int(c)%len(backupAlphabet)])
		}
		codes[i] = b.String()
		hashes[i] = HashBackupCode(codes[i])
	}
	return codes, hashes, nil
}

// HashBackupCode canonicalizes code and returns its SHA-256 digest.
// Separators and case are ignored so user input matches regardless of
// how the code was transcribed.
func HashBackupCode(code string) [32]byte {
	canon := strings.ToUpper(code)
	canon = strings.NewReplacer("-", "", " ", "").Replace(canon)
	return sha256.Sum256([]byte(canon))
}
