package core

// itoa converts an integer to a string without using the fmt package,
// which is too heavy for the firmware image.
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// pad2 formats a two digit field with a leading zero.
func pad2(n uint8) string {
	if n < 10 {
		return "0" + utoa(uint32(n))
	}
	return utoa(uint32(n))
}

const hexDigits = "0123456789abcdef"

// hex16 formats a backup word as 0x%04x.
func hex16(v uint16) string {
	b := [6]byte{'0', 'x'}
	for i := 0; i < 4; i++ {
		b[5-i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(b[:])
}
