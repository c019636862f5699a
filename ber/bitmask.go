package ber

import "golang.org/x/exp/constraints"

// EncodeBitmaskFromOffsets packs the given bit offsets into an MSB-first
// bitmask of sizeBytes bytes (offset 0 is the high bit of the first byte).
// Offsets outside the mask are ignored
func EncodeBitmaskFromOffsets[T constraints.Integer](offsets []T, sizeBytes int) []byte {
	bitmask := make([]byte, sizeBytes)
	for _, offset := range offsets {
		bit := int(offset)
		if bit < 0 || bit >= sizeBytes*8 {
			continue
		}
		bitmask[bit/8] |= 1 << (7 - bit%8)
	}
	return bitmask
}

// DecodeBitmaskFromBytes returns the offsets of the set bits in an MSB-first
// bitmask. paddingBits trailing bits of the last byte are unused per X.690;
// sizeBytes caps the scan when the peer sends a longer mask
func DecodeBitmaskFromBytes(bitmask []byte, paddingBits byte, sizeBytes int) []uint {
	if len(bitmask) > sizeBytes {
		bitmask = bitmask[:sizeBytes]
	}

	totalBits := len(bitmask)*8 - int(paddingBits)
	if totalBits < 0 {
		totalBits = 0
	}

	var offsets []uint
	for bit := 0; bit < totalBits; bit++ {
		if bitmask[bit/8]&(1<<(7-bit%8)) != 0 {
			offsets = append(offsets, uint(bit))
		}
	}
	return offsets
}
