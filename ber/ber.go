package ber

import (
	"encoding/binary"
	"errors"
	"math"
)

// Errors
var (
	ErrBufferOverflow    = errors.New("buffer overflow")
	ErrInvalidLength     = errors.New("invalid length")
	ErrInvalidIndefinite = errors.New("invalid indefinite length")
	ErrMaxDepthExceeded  = errors.New("maximum depth exceeded")
)

// ItuObjectIdentifier represents an ITU-T Object Identifier
type ItuObjectIdentifier struct {
	Arc      [10]uint32
	ArcCount int
}

// Decoder functions

const maxDepth = 50

// DecodeTLV decodes one tag octet and the following length field.
// Long-form tag numbers (low bits 0x1F) are consumed but collapse to the
// leading octet; none of the protocols here use them, the tolerance is for
// skipping foreign elements. Returns the position of the first value octet.
func DecodeTLV(buffer []byte, bufPos, maxBufPos int) (newPos int, tag byte, length int, err error) {
	if bufPos >= maxBufPos {
		return -1, 0, 0, ErrBufferOverflow
	}

	tag = buffer[bufPos]
	bufPos++

	if tag&0x1f == 0x1f {
		for {
			if bufPos >= maxBufPos {
				return -1, 0, 0, ErrBufferOverflow
			}
			cont := buffer[bufPos]
			bufPos++
			if cont&0x80 == 0 {
				break
			}
		}
	}

	newPos, length, err = DecodeLength(buffer, bufPos, maxBufPos)
	if err != nil {
		return -1, 0, 0, err
	}
	return newPos, tag, length, nil
}

// DecodeLength decodes a BER length field from the buffer
// Returns the new buffer position and the decoded length, or an error
func DecodeLength(buffer []byte, bufPos, maxBufPos int) (newPos int, length int, err error) {
	return decodeLengthRecursive(buffer, bufPos, maxBufPos, 0, maxDepth)
}

func decodeLengthRecursive(buffer []byte, bufPos, maxBufPos, depth, maxDepth int) (newPos int, length int, err error) {
	if bufPos >= maxBufPos {
		return -1, 0, ErrBufferOverflow
	}

	len1 := buffer[bufPos]
	bufPos++

	if len1&0x80 != 0 {
		lenLength := int(len1 & 0x7f)

		if lenLength == 0 {
			// indefinite length form
			indefLength, err := getIndefiniteLength(buffer, bufPos, maxBufPos, depth, maxDepth)
			if err != nil {
				return -1, 0, err
			}
			length = indefLength
		} else {
			length = 0
			for i := 0; i < lenLength; i++ {
				if bufPos >= maxBufPos {
					return -1, 0, ErrBufferOverflow
				}
				if bufPos+length > maxBufPos {
					return -1, 0, ErrBufferOverflow
				}
				length = (length << 8) | int(buffer[bufPos])
				bufPos++
			}
		}
	} else {
		length = int(len1)
	}

	if length < 0 {
		return -1, 0, ErrInvalidLength
	}

	if bufPos+length > maxBufPos {
		return -1, 0, ErrBufferOverflow
	}

	return bufPos, length, nil
}

func getIndefiniteLength(buffer []byte, bufPos, maxBufPos, depth, maxDepth int) (int, error) {
	depth++
	if depth > maxDepth {
		return -1, ErrMaxDepthExceeded
	}

	length := 0
	for bufPos < maxBufPos {
		if bufPos+1 < maxBufPos && buffer[bufPos] == 0 && buffer[bufPos+1] == 0 {
			return length + 2, nil
		}

		length++

		if (buffer[bufPos] & 0x1f) == 0x1f {
			// handle extended tags
			bufPos++
			length++
		}

		subLength := -1
		newBufPos, subLength, err := decodeLengthRecursive(buffer, bufPos, maxBufPos, depth, maxDepth)
		if err != nil {
			return -1, err
		}

		length += subLength + (newBufPos - bufPos)
		bufPos = newBufPos + subLength
	}

	return -1, ErrInvalidIndefinite
}

// DecodeString decodes a BER string from the buffer
func DecodeString(buffer []byte, strlen, bufPos, maxBufPos int) (string, error) {
	if maxBufPos-bufPos < 0 {
		return "", ErrBufferOverflow
	}
	if bufPos+strlen > maxBufPos {
		return "", ErrBufferOverflow
	}
	return string(buffer[bufPos : bufPos+strlen]), nil
}

// DecodeUint32 decodes a BER unsigned 32-bit integer from the buffer
func DecodeUint32(buffer []byte, intLen, bufPos int) uint32 {
	value := uint32(0)
	for i := 0; i < intLen; i++ {
		value = (value << 8) | uint32(buffer[bufPos+i])
	}
	return value
}

// DecodeUint64 decodes a BER unsigned 64-bit integer from the buffer
func DecodeUint64(buffer []byte, intLen, bufPos int) uint64 {
	value := uint64(0)
	for i := 0; i < intLen; i++ {
		value = (value << 8) | uint64(buffer[bufPos+i])
	}
	return value
}

// DecodeInt32 decodes a BER signed 32-bit integer from the buffer
func DecodeInt32(buffer []byte, intLen, bufPos int) int32 {
	var value int32
	isNegative := (buffer[bufPos] & 0x80) == 0x80

	if isNegative {
		value = -1
	} else {
		value = 0
	}

	for i := 0; i < intLen; i++ {
		value = (value << 8) | int32(buffer[bufPos+i])
	}

	return value
}

// DecodeInt64 decodes a BER signed 64-bit integer from the buffer
func DecodeInt64(buffer []byte, intLen, bufPos int) int64 {
	var value int64
	isNegative := (buffer[bufPos] & 0x80) == 0x80

	if isNegative {
		value = -1
	} else {
		value = 0
	}

	for i := 0; i < intLen; i++ {
		value = (value << 8) | int64(buffer[bufPos+i])
	}

	return value
}

// DecodeFloat decodes an MMS FloatingPoint value at bufPos: one format octet
// (exponent width) then 4 bytes IEEE 754 binary32 big-endian
func DecodeFloat(buffer []byte, bufPos int) float32 {
	bufPos++ // skip format octet
	return math.Float32frombits(DecodeUint32(buffer, 4, bufPos))
}

// DecodeDouble decodes an MMS FloatingPoint value at bufPos: one format octet
// then 8 bytes IEEE 754 binary64 big-endian
func DecodeDouble(buffer []byte, bufPos int) float64 {
	bufPos++ // skip format octet
	return math.Float64frombits(DecodeUint64(buffer, 8, bufPos))
}

// DecodeBoolean decodes a BER boolean from the buffer
func DecodeBoolean(buffer []byte, bufPos int) bool {
	return buffer[bufPos] != 0
}

// DecodeOID decodes a BER Object Identifier from the buffer
func DecodeOID(buffer []byte, bufPos, length int, oid *ItuObjectIdentifier) {
	startPos := bufPos
	currentArc := 0

	// clear all arcs
	for i := 0; i < 10; i++ {
		oid.Arc[i] = 0
	}

	// parse first two arcs
	if length > 0 {
		oid.Arc[0] = uint32(buffer[bufPos] / 40)
		oid.Arc[1] = uint32(buffer[bufPos] % 40)
		currentArc = 2
		bufPos++
	}

	// parse remaining arcs
	for (bufPos-startPos < length) && (currentArc < 10) {
		oid.Arc[currentArc] = oid.Arc[currentArc] << 7

		if buffer[bufPos] < 0x80 {
			oid.Arc[currentArc] += uint32(buffer[bufPos])
			currentArc++
		} else {
			oid.Arc[currentArc] += uint32(buffer[bufPos] & 0x7f)
		}

		bufPos++
	}

	oid.ArcCount = currentArc
}

// Encoder functions

// EncodeLength encodes a length value in BER format
// Returns the new buffer position
func EncodeLength(length uint32, buffer []byte, bufPos int) int {
	if length < 128 {
		buffer[bufPos] = byte(length)
		bufPos++
	} else if length < 256 {
		buffer[bufPos] = 0x81
		bufPos++
		buffer[bufPos] = byte(length)
		bufPos++
	} else if length < 65536 {
		buffer[bufPos] = 0x82
		bufPos++
		buffer[bufPos] = byte(length / 256)
		bufPos++
		buffer[bufPos] = byte(length % 256)
		bufPos++
	} else {
		buffer[bufPos] = 0x83
		bufPos++
		buffer[bufPos] = byte(length / 0x10000)
		bufPos++
		buffer[bufPos] = byte((length & 0xffff) / 0x100)
		bufPos++
		buffer[bufPos] = byte(length % 256)
		bufPos++
	}
	return bufPos
}

// EncodeTL encodes a Tag and Length in BER format
func EncodeTL(tag Tag, length uint32, buffer []byte, bufPos int) int {
	buffer[bufPos] = byte(tag)
	bufPos++
	return EncodeLength(length, buffer, bufPos)
}

// EncodeBoolean encodes a boolean value with tag in BER format
func EncodeBoolean(tag Tag, value bool, buffer []byte, bufPos int) int {
	buffer[bufPos] = byte(tag)
	bufPos++
	buffer[bufPos] = 1
	bufPos++
	if value {
		buffer[bufPos] = 0x01
	} else {
		buffer[bufPos] = 0x00
	}
	bufPos++
	return bufPos
}

// EncodeStringWithTag encodes a string with tag in BER format
func EncodeStringWithTag(tag Tag, str string, buffer []byte, bufPos int) int {
	buffer[bufPos] = byte(tag)
	bufPos++

	if str != "" {
		length := uint32(len(str))
		bufPos = EncodeLength(length, buffer, bufPos)
		for i := 0; i < len(str); i++ {
			buffer[bufPos] = str[i]
			bufPos++
		}
	} else {
		buffer[bufPos] = 0
		bufPos++
	}

	return bufPos
}

// EncodeOctetString encodes an octet string with tag in BER format
func EncodeOctetString(tag Tag, octetString []byte, buffer []byte, bufPos int) int {
	buffer[bufPos] = byte(tag)
	bufPos++

	octetStringSize := uint32(len(octetString))
	bufPos = EncodeLength(octetStringSize, buffer, bufPos)

	for i := 0; i < len(octetString); i++ {
		buffer[bufPos] = octetString[i]
		bufPos++
	}

	return bufPos
}

// EncodeBitString encodes a bit string with tag in BER format.
// bitStringSize is in bits; the unused-bits octet and padding mask follow X.690
func EncodeBitString(tag Tag, bitStringSize int, bitString []byte, buffer []byte, bufPos int) int {
	buffer[bufPos] = byte(tag)
	bufPos++

	byteSize := bitStringSize / 8
	if bitStringSize%8 != 0 {
		byteSize++
	}

	padding := (byteSize * 8) - bitStringSize

	bufPos = EncodeLength(uint32(byteSize+1), buffer, bufPos)

	buffer[bufPos] = byte(padding)
	bufPos++

	for i := 0; i < byteSize; i++ {
		buffer[bufPos] = bitString[i]
		bufPos++
	}

	// Apply padding mask
	paddingMask := byte(0)
	for i := 0; i < padding; i++ {
		paddingMask += (1 << i)
	}
	paddingMask = ^paddingMask

	buffer[bufPos-1] = buffer[bufPos-1] & paddingMask

	return bufPos
}

// CompressInteger removes leading zero bytes or leading 0xFF bytes from an integer
// Returns the new size
func CompressInteger(integer []byte) int {
	originalSize := len(integer)
	integerEnd := originalSize - 1
	bytePosition := 0

	for bytePosition < integerEnd {
		if integer[bytePosition] == 0x00 {
			if (integer[bytePosition+1] & 0x80) == 0 {
				bytePosition++
				continue
			}
		} else if integer[bytePosition] == 0xff {
			if (integer[bytePosition+1] & 0x80) == 0x80 {
				bytePosition++
				continue
			}
		}
		break
	}

	bytesToDelete := bytePosition
	newSize := originalSize

	if bytesToDelete > 0 {
		newSize -= bytesToDelete
		for i := 0; i < newSize; i++ {
			integer[i] = integer[bytePosition]
			bytePosition++
		}
	}

	return newSize
}

// EncodeUInt32 encodes an unsigned 32-bit integer in BER format (value octets
// only, minimal two's complement with a guard zero for the high bit)
func EncodeUInt32(value uint32, buffer []byte, bufPos int) int {
	valueBuffer := make([]byte, 5)
	binary.BigEndian.PutUint32(valueBuffer[1:], value)

	size := CompressInteger(valueBuffer)

	for i := 0; i < size; i++ {
		buffer[bufPos] = valueBuffer[i]
		bufPos++
	}

	return bufPos
}

// EncodeUInt32WithTL encodes an unsigned 32-bit integer with tag and length in BER format
func EncodeUInt32WithTL(tag Tag, value uint32, buffer []byte, bufPos int) int {
	valueBuffer := make([]byte, 5)
	binary.BigEndian.PutUint32(valueBuffer[1:], value)

	size := CompressInteger(valueBuffer)

	buffer[bufPos] = byte(tag)
	bufPos++
	buffer[bufPos] = byte(size)
	bufPos++

	for i := 0; i < size; i++ {
		buffer[bufPos] = valueBuffer[i]
		bufPos++
	}

	return bufPos
}

// EncodeInt32WithTL encodes a signed 32-bit integer with tag and length in BER format
func EncodeInt32WithTL(tag Tag, value int32, buffer []byte, bufPos int) int {
	valueBuffer := make([]byte, 4)
	binary.BigEndian.PutUint32(valueBuffer, uint32(value))

	size := CompressInteger(valueBuffer)

	buffer[bufPos] = byte(tag)
	bufPos++
	buffer[bufPos] = byte(size)
	bufPos++

	for i := 0; i < size; i++ {
		buffer[bufPos] = valueBuffer[i]
		bufPos++
	}

	return bufPos
}

// EncodeUInt64WithTL encodes an unsigned 64-bit integer with tag and length in BER format
func EncodeUInt64WithTL(tag Tag, value uint64, buffer []byte, bufPos int) int {
	valueBuffer := make([]byte, 9)
	binary.BigEndian.PutUint64(valueBuffer[1:], value)

	size := CompressInteger(valueBuffer)

	buffer[bufPos] = byte(tag)
	bufPos++
	buffer[bufPos] = byte(size)
	bufPos++

	for i := 0; i < size; i++ {
		buffer[bufPos] = valueBuffer[i]
		bufPos++
	}

	return bufPos
}

// EncodeInt64WithTL encodes a signed 64-bit integer with tag and length in BER format
func EncodeInt64WithTL(tag Tag, value int64, buffer []byte, bufPos int) int {
	valueBuffer := make([]byte, 8)
	binary.BigEndian.PutUint64(valueBuffer, uint64(value))

	size := CompressInteger(valueBuffer)

	buffer[bufPos] = byte(tag)
	bufPos++
	buffer[bufPos] = byte(size)
	bufPos++

	for i := 0; i < size; i++ {
		buffer[bufPos] = valueBuffer[i]
		bufPos++
	}

	return bufPos
}

// EncodeFloat32WithTL encodes an MMS FloatingPoint value with tag and length:
// format octet 8 then IEEE 754 binary32 big-endian
func EncodeFloat32WithTL(tag Tag, value float32, buffer []byte, bufPos int) int {
	bufPos = EncodeTL(tag, 5, buffer, bufPos)
	buffer[bufPos] = 8
	bufPos++
	binary.BigEndian.PutUint32(buffer[bufPos:], math.Float32bits(value))
	return bufPos + 4
}

// EncodeFloat64WithTL encodes an MMS FloatingPoint value with tag and length:
// format octet 11 then IEEE 754 binary64 big-endian
func EncodeFloat64WithTL(tag Tag, value float64, buffer []byte, bufPos int) int {
	bufPos = EncodeTL(tag, 9, buffer, bufPos)
	buffer[bufPos] = 11
	bufPos++
	binary.BigEndian.PutUint64(buffer[bufPos:], math.Float64bits(value))
	return bufPos + 8
}

// Size determination functions

// UInt32DetermineEncodedSize determines the encoded size of an unsigned 32-bit integer
func UInt32DetermineEncodedSize(value uint32) int {
	valueBuffer := make([]byte, 5)
	binary.BigEndian.PutUint32(valueBuffer[1:], value)
	return CompressInteger(valueBuffer)
}

// Int32DetermineEncodedSize determines the encoded size of a signed 32-bit integer
func Int32DetermineEncodedSize(value int32) int {
	valueBuffer := make([]byte, 4)
	binary.BigEndian.PutUint32(valueBuffer, uint32(value))
	return CompressInteger(valueBuffer)
}

// Int64DetermineEncodedSize determines the encoded size of a signed 64-bit integer
func Int64DetermineEncodedSize(value int64) int {
	valueBuffer := make([]byte, 8)
	binary.BigEndian.PutUint64(valueBuffer, uint64(value))
	return CompressInteger(valueBuffer)
}

// UInt64DetermineEncodedSize determines the encoded size of an unsigned 64-bit integer
func UInt64DetermineEncodedSize(value uint64) int {
	valueBuffer := make([]byte, 9)
	binary.BigEndian.PutUint64(valueBuffer[1:], value)
	return CompressInteger(valueBuffer)
}

// DetermineLengthSize determines the size needed to encode a length value
func DetermineLengthSize(length uint32) int {
	if length < 128 {
		return 1
	}
	if length < 256 {
		return 2
	}
	if length < 65536 {
		return 3
	}
	return 4
}

// DetermineEncodedStringSize determines the encoded size of a string
func DetermineEncodedStringSize(str string) int {
	if str != "" {
		size := 1 // tag
		length := len(str)
		size += DetermineLengthSize(uint32(length))
		size += length
		return size
	}
	return 2 // tag + length (0)
}

// DetermineEncodedBitStringSize determines the encoded size of a bit string
func DetermineEncodedBitStringSize(bitStringSize int) int {
	size := 2 // for tag and padding octet

	byteSize := bitStringSize / 8
	if bitStringSize%8 != 0 {
		byteSize++
	}

	size += DetermineLengthSize(uint32(byteSize + 1))
	size += byteSize

	return size
}
