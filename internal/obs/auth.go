package obs

import (
	"crypto/sha256"
	"encoding/base64"
)

// ComputeAuthResponse derives the identify token from the shared secret and
// the salt and challenge sent in the server's hello:
//
//	base64(sha256(base64(sha256(secret + salt)) + challenge))
//
// Both encodings are standard base64 with padding, as OBS expects.
func ComputeAuthResponse(secret, challenge, salt string) string {
	secretHash := sha256.Sum256([]byte(secret + salt))
	b64Secret := base64.StdEncoding.EncodeToString(secretHash[:])

	authHash := sha256.Sum256([]byte(b64Secret + challenge))
	return base64.StdEncoding.EncodeToString(authHash[:])
}
