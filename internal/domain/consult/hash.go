package consult

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// hashVersion is bumped whenever the canonical encoding changes, so stale
// cache entries from older builds can never be decoded as current ones.
const hashVersion = "konsil:v1"

// Hash returns the deterministic cache key of a task: a hex blake2b-256 over
// a length-prefixed canonical encoding of kind, normalized text, structured
// context and override. Two tasks asking the same thing hash identically
// regardless of field order in the context map.
func (t *Task) Hash(catalogRev string) string {
	h, _ := blake2b.New256(nil)

	write := func(part []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}

	write([]byte(hashVersion))
	write([]byte(catalogRev))
	write([]byte(t.Kind))
	write([]byte(t.NormalizedText()))

	// json.Marshal sorts map keys, giving a stable context encoding.
	if len(t.Context) > 0 {
		ctx, err := json.Marshal(t.Context)
		if err == nil {
			write(ctx)
		}
	}
	if t.Override != nil {
		ov, err := json.Marshal(t.Override)
		if err == nil {
			write(ov)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
