package bitmap

// A Dense is a bitmap where every bit is explicitly represented. Bits beyond
// the logical length of a Dense are always zero.
type Dense struct {
	bits []byte
	len  int
}

// FromBits builds a Dense holding one entry per element of vals, set iff the
// element is non-zero.
func FromBits[T ~uint8 | ~int](vals []T) Dense {
	var d Dense
	for _, v := range vals {
		d.AppendBit(v != 0)
	}
	return d
}

// Get returns the i-th bit in this bitmap. Out of range bits read as zero.
func (d Dense) Get(i int) bool {
	if i < 0 || i >= d.len {
		return false
	}
	return 0 < d.bits[i/byteSize]&(1<<(i%byteSize))
}

// Size returns the number of bits in this bitmap.
func (d Dense) Size() int {
	return d.len
}

// AppendBit adds a single bit to the end of d.
func (d *Dense) AppendBit(bit bool) {
	i, pos := d.len/byteSize, d.len%byteSize
	d.len += 1
	if pos == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.bits[i] |= 1 << pos
	}
}
