package query

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
)

// Fingerprint is the SHA-512 digest of an operation's canonical variables
// payload. Together with the operation name it identifies an operation
// invocation independent of the size of its variables: two calls with equal
// name and fingerprint are the same operation and share one execution.
type Fingerprint [sha512.Size]byte

// String returns a shortened hex form of the fingerprint, for logs.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:8])
}

// Key identifies one (operation, variables) pair. It is comparable and is
// used as the registry key for shared per-operation state.
type Key struct {
	Name        string
	Fingerprint Fingerprint
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%s]", k.Name, k.Fingerprint)
}
