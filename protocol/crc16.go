package protocol

// CRC16 is the CRC-16/MCRF4XX checksum used by the frame trailer
// (reflected CCITT polynomial, initial value 0xFFFF).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		x := uint16(b)
		crc = (x<<8 | crc>>8) ^ (x >> 4) ^ (x << 3)
	}
	return crc
}
