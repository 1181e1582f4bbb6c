package badgerstore

import (
	"encoding/binary"
)

// Key prefixes for the three record kinds. A zero byte separates the document
// key from the suffix so one document's prefix never matches another's.
const (
	documentPrefix = "doc:"
	sectionPrefixS = "sec:"
	historyPrefixS = "hist:"
	historySeqKey  = "histseq"
)

func documentKeyBytes(documentKey string) []byte {
	return []byte(documentPrefix + documentKey)
}

func sectionPrefix(documentKey string) []byte {
	return []byte(sectionPrefixS + documentKey + "\x00")
}

// sectionKeyBytes appends the index big-endian so keys sort by index.
func sectionKeyBytes(documentKey string, index int) []byte {
	return binary.BigEndian.AppendUint64(sectionPrefix(documentKey), uint64(index))
}

func historyPrefix(documentKey string) []byte {
	return []byte(historyPrefixS + documentKey + "\x00")
}

func historyKeyBytes(documentKey string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(historyPrefix(documentKey), seq)
}
