package query

import "encoding/binary"

// EncodeKey builds the flat byte key storage.Store indexes on: a
// 4-byte big-endian length prefix over partitionKey, then partitionKey,
// then clusteringKey (clusteringKey may be nil for a partition with no
// clustering component). Length-prefixing the partition component keeps
// every key carrying partition p a contiguous byte range regardless of
// what clusteringKey follows, without requiring partition keys to be
// fixed width or free of one another's byte prefixes.
func EncodeKey(partitionKey, clusteringKey []byte) []byte {
	out := make([]byte, 4+len(partitionKey)+len(clusteringKey))
	binary.BigEndian.PutUint32(out, uint32(len(partitionKey)))
	n := copy(out[4:], partitionKey)
	copy(out[4+n:], clusteringKey)
	return out
}

// DecodeKey is EncodeKey's inverse, splitting a flat storage key back
// into its partition and clustering components.
func DecodeKey(key []byte) (partitionKey, clusteringKey []byte, ok bool) {
	if len(key) < 4 {
		return nil, nil, false
	}
	n := binary.BigEndian.Uint32(key)
	if int(n) > len(key)-4 {
		return nil, nil, false
	}
	return key[4 : 4+n], key[4+n:], true
}

// partitionLowerBound is the smallest key carrying partitionKey: a
// clustering component is, byte for byte, a suffix appended after it,
// so the partition key alone (no clustering bytes) sorts first.
func partitionLowerBound(partitionKey []byte) []byte {
	return EncodeKey(partitionKey, nil)
}

// prefixUpperBound returns the smallest key that sorts after every key
// carrying prefix, by incrementing the last byte that isn't already
// 0xFF and truncating what follows it. A prefix of all 0xFF bytes has
// no finite upper bound, so the caller must treat a nil result as
// unbounded.
func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
