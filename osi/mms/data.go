package mms

import (
	"errors"
	"fmt"
	"time"

	"github.com/slonegd/mmsreport/ber"
	"github.com/slonegd/mmsreport/osi/mms/variant"
)

// Теги Data CHOICE согласно ISO/IEC 9506-2:
//
//	Data ::= CHOICE {
//	  array             [1] IMPLICIT SEQUENCE OF Data,   -- 0xA1
//	  structure         [2] IMPLICIT SEQUENCE OF Data,   -- 0xA2
//	  boolean           [3] IMPLICIT BOOLEAN,            -- 0x83
//	  bit-string        [4] IMPLICIT BIT STRING,         -- 0x84
//	  integer           [5] IMPLICIT INTEGER,            -- 0x85
//	  unsigned          [6] IMPLICIT Unsigned,           -- 0x86
//	  floating-point    [7] IMPLICIT FloatingPoint,      -- 0x87
//	  octet-string      [9] IMPLICIT OCTET STRING,       -- 0x89
//	  visible-string    [10] IMPLICIT VisibleString,     -- 0x8A
//	  binary-time       [12] IMPLICIT BinaryTime,        -- 0x8C
//	  bcd               [13] IMPLICIT INTEGER,           -- 0x8D
//	  booleanArray      [14] IMPLICIT BIT STRING,        -- 0x8E
//	  utc-time          [17] IMPLICIT UtcTime            -- 0x91
//	}
const (
	dataTagArray         = 0xA1
	dataTagStructure     = 0xA2
	dataTagBoolean       = 0x83
	dataTagBitString     = 0x84
	dataTagInteger       = 0x85
	dataTagUnsigned      = 0x86
	dataTagFloatingPoint = 0x87
	dataTagOctetString   = 0x89
	dataTagVisibleString = 0x8A
	dataTagBinaryTime    = 0x8C
	dataTagBCD           = 0x8D
	dataTagBoolArray     = 0x8E
	dataTagUTCTime       = 0x91
)

// секунды между 1970-01-01 и 1984-01-01 (эпоха binary-time в IEC 61850)
const binaryTimeEpochOffset = 441763200

// DecodeData декодирует одно значение Data начиная с bufPos.
// Возвращает типизированное значение и позицию за его пределами.
// array и structure декодируются рекурсивно
func DecodeData(buffer []byte, bufPos, maxBufPos int) (*variant.Variant, int, error) {
	newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
	if err != nil {
		return nil, -1, fmt.Errorf("failed to decode data TLV: %w", err)
	}
	bufPos = newPos

	if bufPos+length > maxBufPos {
		return nil, -1, fmt.Errorf("invalid length for tag 0x%02x: exceeds buffer size", tag)
	}

	value, err := decodeDataValue(tag, buffer, bufPos, length)
	if err != nil {
		return nil, -1, err
	}

	return value, bufPos + length, nil
}

// decodeDataValue декодирует содержимое Data с известным тегом и длиной
func decodeDataValue(tag byte, buffer []byte, bufPos, length int) (*variant.Variant, error) {
	switch tag {
	case dataTagArray, dataTagStructure:
		items, err := decodeDataSequence(buffer, bufPos, bufPos+length)
		if err != nil {
			return nil, err
		}
		if tag == dataTagArray {
			return variant.NewArrayVariant(items), nil
		}
		return variant.NewStructureVariant(items), nil

	case dataTagBoolean:
		if length < 1 {
			return nil, errors.New("invalid boolean: empty value")
		}
		return variant.NewBoolVariant(ber.DecodeBoolean(buffer, bufPos)), nil

	case dataTagBitString:
		bits, err := decodeBitString(buffer[bufPos:bufPos+length], length)
		if err != nil {
			return nil, err
		}
		return variant.NewBitStringVariant(bits.Data, bits.BitSize), nil

	case dataTagInteger:
		if length < 1 || length > 8 {
			return nil, fmt.Errorf("invalid integer length: %d", length)
		}
		return variant.NewIntegerVariant(ber.DecodeInt64(buffer, length, bufPos)), nil

	case dataTagUnsigned:
		if length < 1 || length > 8 {
			return nil, fmt.Errorf("invalid unsigned length: %d", length)
		}
		return variant.NewUnsignedVariant(ber.DecodeUint64(buffer, length, bufPos)), nil

	case dataTagFloatingPoint:
		switch length {
		case 5: // формат + IEEE 754 single
			return variant.NewFloat32Variant(ber.DecodeFloat(buffer, bufPos)), nil
		case 9: // формат + IEEE 754 double
			return variant.NewFloat64Variant(ber.DecodeDouble(buffer, bufPos)), nil
		default:
			return nil, fmt.Errorf("invalid floating-point length: expected 5 or 9 bytes, got %d", length)
		}

	case dataTagOctetString:
		data := make([]byte, length)
		copy(data, buffer[bufPos:bufPos+length])
		return variant.NewOctetStringVariant(data), nil

	case dataTagVisibleString:
		str, err := ber.DecodeString(buffer, length, bufPos, bufPos+length)
		if err != nil {
			return nil, err
		}
		return variant.NewVisibleStringVariant(str), nil

	case dataTagBinaryTime:
		t, err := decodeBinaryTime(buffer[bufPos : bufPos+length])
		if err != nil {
			return nil, err
		}
		return variant.NewBinaryTimeVariant(t), nil

	case dataTagBCD:
		if length < 1 || length > 8 {
			return nil, fmt.Errorf("invalid bcd length: %d", length)
		}
		return variant.NewBCDVariant(ber.DecodeInt64(buffer, length, bufPos)), nil

	case dataTagBoolArray:
		bits, err := decodeBitString(buffer[bufPos:bufPos+length], length)
		if err != nil {
			return nil, err
		}
		values := make([]bool, bits.BitSize)
		for i := range values {
			values[i] = bits.Bit(i)
		}
		return variant.NewBoolArrayVariant(values), nil

	case dataTagUTCTime:
		t, err := decodeUTCTime(buffer[bufPos:bufPos+length], length)
		if err != nil {
			return nil, err
		}
		return variant.NewUTCTimeVariant(t), nil

	default:
		return nil, fmt.Errorf("unsupported data tag: 0x%02x", tag)
	}
}

// decodeDataSequence декодирует последовательность Data (содержимое array или structure)
func decodeDataSequence(buffer []byte, bufPos, maxBufPos int) ([]*variant.Variant, error) {
	var items []*variant.Variant
	for bufPos < maxBufPos {
		item, newPos, err := DecodeData(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		bufPos = newPos
	}
	return items, nil
}

// decodeBitString декодирует bit-string значение
// Структура согласно ISO/IEC 9506-2:
// - 1 байт: padding (количество неиспользуемых бит в последнем байте, 0-7)
// - N байт: данные bit-string
func decodeBitString(buffer []byte, length int) (variant.BitStringValue, error) {
	if length < 1 {
		return variant.BitStringValue{}, fmt.Errorf("invalid bit-string length: expected at least 1 byte, got %d", length)
	}

	padding := int(buffer[0])
	if padding > 7 {
		return variant.BitStringValue{}, fmt.Errorf("invalid bit-string padding: expected 0-7, got %d", padding)
	}

	dataLength := length - 1
	data := make([]byte, dataLength)
	copy(data, buffer[1:1+dataLength])

	return variant.BitStringValue{
		Data:    data,
		BitSize: 8*dataLength - padding,
	}, nil
}

// decodeUTCTime декодирует utc-time значение
// Структура согласно ISO/IEC 9506-2:
// - 4 байта: секунды с 1 января 1970 00:00:00 UTC (big-endian uint32)
// - 3 байта: доля секунды (fraction of second) в единицах 1/2^24 секунды
// - 1 байт: качество времени (time quality)
// Итого 8 байт
// Основано на MmsValue_getUtcTimeInMsWithUs из mms_value.c
func decodeUTCTime(buffer []byte, length int) (time.Time, error) {
	if length != 8 {
		return time.Time{}, fmt.Errorf("invalid utc-time length: expected 8 bytes, got %d", length)
	}

	seconds := ber.DecodeUint32(buffer, 4, 0)

	// fractionOfSecond в единицах 1/2^24 секунды
	fractionOfSecond := uint32(buffer[4])<<16 | uint32(buffer[5])<<8 | uint32(buffer[6])
	nanoseconds := uint64(fractionOfSecond) * 1_000_000_000 / 0x1000000

	// Качество времени (байт 7) на само значение не влияет

	return time.Unix(int64(seconds), int64(nanoseconds)).UTC(), nil
}

// decodeBinaryTime декодирует binary-time значение (TimeOfEntry в отчётах)
// Первые 4 байта - секунды (big-endian uint32), далее опционально 2 байта -
// доля секунды в единицах 1/65536.
// Значения меньше 10^9 секунд отсчитываются от эпохи 1984-01-01,
// большие - от эпохи Unix: устройства встречаются с обоими вариантами
func decodeBinaryTime(buffer []byte) (time.Time, error) {
	if len(buffer) < 4 {
		return time.Time{}, fmt.Errorf("invalid binary-time length: expected at least 4 bytes, got %d", len(buffer))
	}

	seconds := int64(ber.DecodeUint32(buffer, 4, 0))
	if seconds < 1_000_000_000 {
		seconds += binaryTimeEpochOffset
	}

	var nanoseconds int64
	if len(buffer) >= 6 {
		fraction := uint32(buffer[4])<<8 | uint32(buffer[5])
		nanoseconds = int64(fraction) * 1_000_000_000 / 0x10000
	}

	return time.Unix(seconds, nanoseconds).UTC(), nil
}

// EncodeData кодирует значение Data в BER.
// Поддерживает типы, используемые при записи атрибутов RCB и в тестах
func EncodeData(v *variant.Variant) ([]byte, error) {
	switch v.Type() {
	case variant.Bool:
		buffer := make([]byte, 3)
		bufPos := ber.EncodeBoolean(dataTagBoolean, v.Bool(), buffer, 0)
		return buffer[:bufPos], nil

	case variant.Integer:
		buffer := make([]byte, 10)
		bufPos := ber.EncodeInt64WithTL(dataTagInteger, v.Int64(), buffer, 0)
		return buffer[:bufPos], nil

	case variant.Unsigned:
		buffer := make([]byte, 11)
		bufPos := ber.EncodeUInt64WithTL(dataTagUnsigned, v.Uint64(), buffer, 0)
		return buffer[:bufPos], nil

	case variant.Float32:
		buffer := make([]byte, 7)
		bufPos := ber.EncodeFloat32WithTL(dataTagFloatingPoint, v.Float32(), buffer, 0)
		return buffer[:bufPos], nil

	case variant.Float64:
		buffer := make([]byte, 11)
		bufPos := ber.EncodeFloat64WithTL(dataTagFloatingPoint, v.Float64(), buffer, 0)
		return buffer[:bufPos], nil

	case variant.BitString:
		bits := v.BitString()
		buffer := make([]byte, ber.DetermineEncodedBitStringSize(bits.BitSize)+4)
		bufPos := ber.EncodeBitString(dataTagBitString, bits.BitSize, bits.Data, buffer, 0)
		return buffer[:bufPos], nil

	case variant.OctetString:
		data := v.Bytes()
		buffer := make([]byte, len(data)+6)
		bufPos := ber.EncodeOctetString(dataTagOctetString, data, buffer, 0)
		return buffer[:bufPos], nil

	case variant.VisibleString:
		str := v.Str()
		buffer := make([]byte, ber.DetermineEncodedStringSize(str)+4)
		bufPos := ber.EncodeStringWithTag(dataTagVisibleString, str, buffer, 0)
		return buffer[:bufPos], nil

	case variant.Structure, variant.Array:
		var content []byte
		for _, item := range v.Items() {
			encoded, err := EncodeData(item)
			if err != nil {
				return nil, err
			}
			content = append(content, encoded...)
		}
		tag := ber.Tag(dataTagStructure)
		if v.Type() == variant.Array {
			tag = ber.Tag(dataTagArray)
		}
		buffer := make([]byte, len(content)+8)
		bufPos := ber.EncodeTL(tag, uint32(len(content)), buffer, 0)
		copy(buffer[bufPos:], content)
		bufPos += len(content)
		return buffer[:bufPos], nil

	default:
		return nil, fmt.Errorf("unsupported data type for encoding: %s", v.Type())
	}
}
