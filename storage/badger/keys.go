package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/burrow/core"
)

// Key prefixes for different data types
const (
	documentPrefix = "docrec"
	documentIDSeq  = "docseq"
)

// makeDocumentKey generates a key for a document by ID.
// Format: prefix:id, with the ID in BigEndian order so keys sort by ID.
func makeDocumentKey(id core.ID) []byte {
	prefix := documentPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// documentKeyPrefix is the prefix shared by every document key.
func documentKeyPrefix() []byte {
	return []byte(documentPrefix + ":")
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", processorType))
}
