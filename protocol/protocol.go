// Package protocol implements the framed serial link between the RTC
// firmware and the host tool: VLQ integers, CRC16 framing with sequence
// numbers and acknowledgements, and the fixed RTC message table.
package protocol

// Version is the wire protocol revision, reported in the dictionary.
const Version = "vbatrtc-1"

// Frame layout: len | seq | payload | crc hi | crc lo | sync
const (
	MessageMax = 512 // scratch output capacity; several frames may be queued

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Sequence byte: high nibble is always MessageDest, low nibble counts.
	MessageDest     = 0x10
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)

// nextSeq returns the sequence following seq.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
