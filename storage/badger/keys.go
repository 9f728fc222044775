package badger

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

const (
	embeddingPrefix = "emb"
)

// makeEmbeddingKey generates a key for a cached embedding.
// Format: prefix:model:hash(text)
// Entries are scoped by model.
func makeEmbeddingKey(model, text string) []byte {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)

	prefix := makeModelPrefix(model)
	buf := make([]byte, 0, len(prefix)+hex.EncodedLen(len(sum)))
	buf = append(buf, prefix...)
	return hex.AppendEncode(buf, sum)
}

// makeModelPrefix generates the key prefix shared by one model's entries.
// Format: prefix:model:
func makeModelPrefix(model string) []byte {
	return []byte(embeddingPrefix + ":" + model + ":")
}
