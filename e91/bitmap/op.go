package bitmap

// XOr returns the bitwise XOR of two bitmaps. The shorter operand is padded
// with zeros.
func XOr(a, b Dense) Dense {
	short, long := a, b
	if b.len < a.len {
		short, long = b, a
	}
	r := Dense{
		bits: make([]byte, 0, bytesFor(long.len)),
		len:  long.len,
	}
	for i := range short.bits {
		r.bits = append(r.bits, a.bits[i]^b.bits[i])
	}
	r.bits = append(r.bits, long.bits[len(short.bits):]...)
	return r
}

// Not returns the bitwise negation of a bitmap.
func Not(d Dense) Dense {
	r := Dense{
		bits: make([]byte, 0, bytesFor(d.len)),
		len:  d.len,
	}
	for _, b := range d.bits {
		r.bits = append(r.bits, ^b)
	}
	if off := r.len % byteSize; off != 0 {
		r.bits[len(r.bits)-1] &= 0xFF >> (byteSize - off)
	}
	return r
}
