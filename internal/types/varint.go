package types

import "math/big"

// EncodeVarint serializes an arbitrary-precision integer as minimal
// two's-complement big-endian bytes — the "varint" scalar type of spec
// §3, distinct from the VInt length-prefix encoding of §4.1.
func EncodeVarint(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{0}
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		// Two's complement requires a leading 0 byte when the
		// high bit of the magnitude's first byte is already set,
		// so the value isn't misread as negative.
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}

	// Negative: two's complement of the magnitude at the smallest byte
	// width that keeps the sign bit set.
	mag := new(big.Int).Neg(v)
	nbytes := (new(big.Int).Sub(mag, big.NewInt(1)).BitLen() + 8) / 8
	if nbytes == 0 {
		nbytes = 1
	}
	twosComp := new(big.Int).Lsh(big.NewInt(1), uint(nbytes*8))
	twosComp.Sub(twosComp, mag)
	b := twosComp.Bytes()
	for len(b) < nbytes {
		b = append([]byte{0}, b...)
	}
	if b[0]&0x80 == 0 {
		b = append([]byte{0xFF}, b...)
	}
	return b
}

// DecodeVarint parses minimal two's-complement big-endian bytes into an
// arbitrary-precision integer.
func DecodeVarint(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	if b[0]&0x80 == 0 {
		return new(big.Int).SetBytes(b)
	}

	// Negative: invert then add one to recover the magnitude.
	inv := make([]byte, len(b))
	for i, c := range b {
		inv[i] = ^c
	}
	mag := new(big.Int).SetBytes(inv)
	mag.Add(mag, big.NewInt(1))
	return new(big.Int).Neg(mag)
}
