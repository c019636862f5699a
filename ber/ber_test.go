package ber

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLength(t *testing.T) {
	tests := []struct {
		name      string
		buffer    []byte
		bufPos    int
		maxBufPos int
		wantPos   int
		wantLen   int
	}{
		{
			name:      "short form mid buffer",
			buffer:    []byte{0xAA, 0xAA, 0x03, 0x01, 0x02, 0x03},
			bufPos:    2,
			maxBufPos: 6,
			wantPos:   3,
			wantLen:   3,
		},
		{
			name:      "long form one octet",
			buffer:    append([]byte{0x81, 0x80}, make([]byte, 128)...),
			bufPos:    0,
			maxBufPos: 2 + 128,
			wantPos:   2,
			wantLen:   128,
		},
		{
			name:      "long form two octets",
			buffer:    append([]byte{0x82, 0x01, 0x2C}, make([]byte, 300)...),
			bufPos:    0,
			maxBufPos: 3 + 300,
			wantPos:   3,
			wantLen:   300,
		},
		{
			name:      "long form three octets",
			buffer:    append([]byte{0x83, 0x01, 0x00, 0x00}, make([]byte, 65536)...),
			bufPos:    0,
			maxBufPos: 4 + 65536,
			wantPos:   4,
			wantLen:   65536,
		},
		{
			name:      "zero length",
			buffer:    []byte{0x00},
			bufPos:    0,
			maxBufPos: 1,
			wantPos:   1,
			wantLen:   0,
		},
		{
			// indefinite form: one nested TLV, then the end-of-contents octets
			name:      "indefinite form",
			buffer:    []byte{0x80, 0x02, 0x01, 0x2A, 0x00, 0x00},
			bufPos:    0,
			maxBufPos: 6,
			wantPos:   1,
			wantLen:   5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPos, gotLen, err := DecodeLength(tt.buffer, tt.bufPos, tt.maxBufPos)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, gotPos)
			assert.Equal(t, tt.wantLen, gotLen)
		})
	}
}

func TestDecodeLength_Errors(t *testing.T) {
	tests := []struct {
		name      string
		buffer    []byte
		maxBufPos int
	}{
		{
			name:      "empty buffer",
			buffer:    []byte{},
			maxBufPos: 0,
		},
		{
			name:      "missing length octets",
			buffer:    []byte{0x82, 0x01},
			maxBufPos: 2,
		},
		{
			name:      "content past end",
			buffer:    []byte{0x05, 0x01, 0x02},
			maxBufPos: 3,
		},
		{
			// 0xFF declares 127 length octets, the buffer has one
			name:      "reserved length octet",
			buffer:    []byte{0xFF, 0x01},
			maxBufPos: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPos, gotLen, err := DecodeLength(tt.buffer, 0, tt.maxBufPos)
			assert.ErrorIs(t, err, ErrBufferOverflow)
			assert.Equal(t, -1, gotPos)
			assert.Equal(t, 0, gotLen)
		})
	}
}

func TestDecodeTLV(t *testing.T) {
	tests := []struct {
		name      string
		buffer    []byte
		bufPos    int
		maxBufPos int
		wantPos   int
		wantTag   byte
		wantLen   int
	}{
		{
			name:      "integer TLV",
			buffer:    []byte{0x02, 0x01, 0x2A},
			bufPos:    0,
			maxBufPos: 3,
			wantPos:   2,
			wantTag:   0x02,
			wantLen:   1,
		},
		{
			name:      "constructed context tag",
			buffer:    []byte{0xA0, 0x03, 0x02, 0x01, 0x01},
			bufPos:    0,
			maxBufPos: 5,
			wantPos:   2,
			wantTag:   0xA0,
			wantLen:   3,
		},
		{
			name:      "long form tag number consumed",
			buffer:    []byte{0x9F, 0x21, 0x01, 0xFF},
			bufPos:    0,
			maxBufPos: 4,
			wantPos:   3,
			wantTag:   0x9F,
			wantLen:   1,
		},
		{
			name:      "long form tag two continuation octets",
			buffer:    []byte{0xBF, 0x87, 0x68, 0x02, 0xCA, 0xFE},
			bufPos:    0,
			maxBufPos: 6,
			wantPos:   4,
			wantTag:   0xBF,
			wantLen:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPos, gotTag, gotLen, err := DecodeTLV(tt.buffer, tt.bufPos, tt.maxBufPos)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, gotPos)
			assert.Equal(t, tt.wantTag, gotTag)
			assert.Equal(t, tt.wantLen, gotLen)
		})
	}
}

func TestDecodeTLV_Errors(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
	}{
		{
			name:   "empty buffer",
			buffer: []byte{},
		},
		{
			name:   "tag without length",
			buffer: []byte{0x02},
		},
		{
			name:   "long form tag cut off",
			buffer: []byte{0x9F, 0x85},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPos, _, _, err := DecodeTLV(tt.buffer, 0, len(tt.buffer))
			assert.ErrorIs(t, err, ErrBufferOverflow)
			assert.Equal(t, -1, gotPos)
		})
	}
}

// One DecodeTLV call must consume exactly the tag and length octets, so that
// bufPos+length lands on the next element.
func TestDecodeTLVConsumesExactly(t *testing.T) {
	buffer := []byte{0x85, 0x02, 0x01, 0x00, 0x83, 0x01, 0x01}

	pos, tag, length, err := DecodeTLV(buffer, 0, len(buffer))
	require.NoError(t, err)
	require.Equal(t, 2, pos)
	require.Equal(t, byte(0x85), tag)
	require.Equal(t, 2, length)

	pos, tag, length, err = DecodeTLV(buffer, pos+length, len(buffer))
	require.NoError(t, err)
	assert.Equal(t, 6, pos)
	assert.Equal(t, byte(0x83), tag)
	assert.Equal(t, 1, length)
	assert.Equal(t, len(buffer), pos+length)
}

func TestDecodeString(t *testing.T) {
	buffer := []byte("..LLN0$RP")

	got, err := DecodeString(buffer, 7, 2, len(buffer))
	require.NoError(t, err)
	assert.Equal(t, "LLN0$RP", got)

	got, err = DecodeString(buffer, 0, 2, len(buffer))
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = DecodeString(buffer, 8, 2, len(buffer))
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestDecodeUint32(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
		intLen int
		bufPos int
		want   uint32
	}{
		{
			name:   "one octet",
			buffer: []byte{0xC8},
			intLen: 1,
			bufPos: 0,
			want:   200,
		},
		{
			name:   "two octets mid buffer",
			buffer: []byte{0xEE, 0x12, 0x34},
			intLen: 2,
			bufPos: 1,
			want:   0x1234,
		},
		{
			name:   "four octets",
			buffer: []byte{0x00, 0xFD, 0xE8, 0x00},
			intLen: 4,
			bufPos: 0,
			want:   0x00FDE800,
		},
		{
			name:   "zero",
			buffer: []byte{0x00},
			intLen: 1,
			bufPos: 0,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeUint32(tt.buffer, tt.intLen, tt.bufPos))
		})
	}
}

func TestDecodeUint64(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
		intLen int
		bufPos int
		want   uint64
	}{
		{
			name:   "five octets",
			buffer: []byte{0x01, 0x00, 0x00, 0x00, 0x00},
			intLen: 5,
			bufPos: 0,
			want:   1 << 32,
		},
		{
			name:   "full width",
			buffer: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			intLen: 8,
			bufPos: 0,
			want:   math.MaxUint64,
		},
		{
			name:   "mid buffer",
			buffer: []byte{0x86, 0x02, 0x04, 0xD2},
			intLen: 2,
			bufPos: 2,
			want:   1234,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeUint64(tt.buffer, tt.intLen, tt.bufPos))
		})
	}
}

func TestDecodeInt32(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
		intLen int
		bufPos int
		want   int32
	}{
		{
			name:   "positive one octet",
			buffer: []byte{0x2A},
			intLen: 1,
			bufPos: 0,
			want:   42,
		},
		{
			name:   "sign extension one octet",
			buffer: []byte{0x80},
			intLen: 1,
			bufPos: 0,
			want:   -128,
		},
		{
			name:   "sign extension two octets",
			buffer: []byte{0xFF, 0x7F},
			intLen: 2,
			bufPos: 0,
			want:   -129,
		},
		{
			name:   "minimum",
			buffer: []byte{0x80, 0x00, 0x00, 0x00},
			intLen: 4,
			bufPos: 0,
			want:   math.MinInt32,
		},
		{
			name:   "mid buffer",
			buffer: []byte{0x02, 0x02, 0x01, 0x00},
			intLen: 2,
			bufPos: 2,
			want:   256,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeInt32(tt.buffer, tt.intLen, tt.bufPos))
		})
	}
}

func TestDecodeInt64(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
		intLen int
		bufPos int
		want   int64
	}{
		{
			name:   "minus one",
			buffer: []byte{0xFF},
			intLen: 1,
			bufPos: 0,
			want:   -1,
		},
		{
			name:   "five octets",
			buffer: []byte{0x01, 0x00, 0x00, 0x00, 0x00},
			intLen: 5,
			bufPos: 0,
			want:   1 << 32,
		},
		{
			name:   "maximum",
			buffer: []byte{0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			intLen: 8,
			bufPos: 0,
			want:   math.MaxInt64,
		},
		{
			name:   "minimum",
			buffer: []byte{0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			intLen: 8,
			bufPos: 0,
			want:   math.MinInt64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeInt64(tt.buffer, tt.intLen, tt.bufPos))
		})
	}
}

func TestDecodeFloat(t *testing.T) {
	// MMS floating-point content: format octet, then IEEE 754 big-endian
	buffer := []byte{0x87, 0x05, 0x08, 0x42, 0x48, 0x00, 0x00}
	assert.Equal(t, float32(50.0), DecodeFloat(buffer, 2))

	buffer = []byte{0x08, 0xBF, 0xC0, 0x00, 0x00}
	assert.Equal(t, float32(-1.5), DecodeFloat(buffer, 0))
}

func TestDecodeDouble(t *testing.T) {
	buffer := []byte{0x0B, 0x40, 0x09, 0x21, 0xFB, 0x54, 0x44, 0x2D, 0x18}
	assert.Equal(t, 3.141592653589793, DecodeDouble(buffer, 0))
}

func TestDecodeBoolean(t *testing.T) {
	assert.False(t, DecodeBoolean([]byte{0x00}, 0))
	assert.True(t, DecodeBoolean([]byte{0x01}, 0))
	// any non-zero content octet is true
	assert.True(t, DecodeBoolean([]byte{0x83, 0x01, 0x2A}, 2))
}

func TestDecodeOID(t *testing.T) {
	tests := []struct {
		name   string
		buffer []byte
		bufPos int
		length int
		want   ItuObjectIdentifier
	}{
		{
			name:   "mms abstract syntax",
			buffer: []byte{0x28, 0xCA, 0x22, 0x02, 0x01},
			bufPos: 0,
			length: 5,
			want: ItuObjectIdentifier{
				Arc:      [10]uint32{1, 0, 9506, 2, 1},
				ArcCount: 5,
			},
		},
		{
			name:   "acse association control",
			buffer: []byte{0x52, 0x01, 0x00, 0x01},
			bufPos: 0,
			length: 4,
			want: ItuObjectIdentifier{
				Arc:      [10]uint32{2, 2, 1, 0, 1},
				ArcCount: 5,
			},
		},
		{
			name:   "first octet packs two arcs",
			buffer: []byte{0x06, 0x01, 0x52},
			bufPos: 2,
			length: 1,
			want: ItuObjectIdentifier{
				Arc:      [10]uint32{2, 2},
				ArcCount: 2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var oid ItuObjectIdentifier
			DecodeOID(tt.buffer, tt.bufPos, tt.length, &oid)
			assert.Equal(t, tt.want, oid)
		})
	}
}

func TestEncodeLength(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
		want   []byte
	}{
		{
			name:   "short form maximum",
			length: 127,
			want:   []byte{0x7F},
		},
		{
			name:   "long form one octet",
			length: 128,
			want:   []byte{0x81, 0x80},
		},
		{
			name:   "long form one octet maximum",
			length: 255,
			want:   []byte{0x81, 0xFF},
		},
		{
			name:   "long form two octets",
			length: 300,
			want:   []byte{0x82, 0x01, 0x2C},
		},
		{
			name:   "long form two octets maximum",
			length: 65535,
			want:   []byte{0x82, 0xFF, 0xFF},
		},
		{
			name:   "long form three octets",
			length: 65536,
			want:   []byte{0x83, 0x01, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := make([]byte, 8)
			gotPos := EncodeLength(tt.length, buffer, 0)
			assert.Equal(t, len(tt.want), gotPos)
			assert.Equal(t, tt.want, buffer[:gotPos])
		})
	}
}

func TestEncodeTL(t *testing.T) {
	buffer := make([]byte, 8)

	gotPos := EncodeTL(ObjectIdentifier, 5, buffer, 0)
	assert.Equal(t, []byte{0x06, 0x05}, buffer[:gotPos])

	gotPos = EncodeTL(ContextSpecific0Constructed, 291, buffer, 0)
	assert.Equal(t, []byte{0xA0, 0x82, 0x01, 0x23}, buffer[:gotPos])

	// writing mid buffer keeps earlier octets intact
	buffer = []byte{0xDE, 0xAD, 0x00, 0x00, 0x00}
	gotPos = EncodeTL(0x85, 1, buffer, 2)
	assert.Equal(t, 4, gotPos)
	assert.Equal(t, []byte{0xDE, 0xAD, 0x85, 0x01, 0x00}, buffer)
}

func TestEncodeBoolean(t *testing.T) {
	buffer := make([]byte, 8)

	gotPos := EncodeBoolean(0x83, true, buffer, 0)
	assert.Equal(t, []byte{0x83, 0x01, 0x01}, buffer[:gotPos])

	gotPos = EncodeBoolean(0x83, false, buffer, 0)
	assert.Equal(t, []byte{0x83, 0x01, 0x00}, buffer[:gotPos])
}

func TestEncodeStringWithTag(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		str  string
		want []byte
	}{
		{
			name: "visible string",
			tag:  VisibleString,
			str:  "urcbA01",
			want: []byte{0x1A, 0x07, 'u', 'r', 'c', 'b', 'A', '0', '1'},
		},
		{
			name: "domain specific component",
			tag:  0x81,
			str:  "VMC7LD0",
			want: []byte{0x81, 0x07, 'V', 'M', 'C', '7', 'L', 'D', '0'},
		},
		{
			name: "empty string",
			tag:  VisibleString,
			str:  "",
			want: []byte{0x1A, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := make([]byte, 16)
			gotPos := EncodeStringWithTag(tt.tag, tt.str, buffer, 0)
			assert.Equal(t, tt.want, buffer[:gotPos])
		})
	}
}

func TestEncodeOctetString(t *testing.T) {
	buffer := make([]byte, 16)

	entryID := []byte{0x00, 0x00, 0x00, 0x00, 0x12, 0x5E, 0x32, 0x01}
	gotPos := EncodeOctetString(0x89, entryID, buffer, 0)
	assert.Equal(t, append([]byte{0x89, 0x08}, entryID...), buffer[:gotPos])

	gotPos = EncodeOctetString(0x89, nil, buffer, 0)
	assert.Equal(t, []byte{0x89, 0x00}, buffer[:gotPos])
}

func TestEncodeBitString(t *testing.T) {
	tests := []struct {
		name      string
		sizeBits  int
		bitString []byte
		want      []byte
	}{
		{
			name:      "report option fields",
			sizeBits:  10,
			bitString: []byte{0x7E, 0x80},
			want:      []byte{0x84, 0x03, 0x06, 0x7E, 0x80},
		},
		{
			name:      "trigger options",
			sizeBits:  6,
			bitString: []byte{0x44},
			want:      []byte{0x84, 0x02, 0x02, 0x44},
		},
		{
			name:      "unused bits are masked out",
			sizeBits:  6,
			bitString: []byte{0x6F},
			want:      []byte{0x84, 0x02, 0x02, 0x6C},
		},
		{
			name:      "byte aligned",
			sizeBits:  24,
			bitString: []byte{0xFF, 0xF0, 0x00},
			want:      []byte{0x84, 0x04, 0x00, 0xFF, 0xF0, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := make([]byte, 16)
			gotPos := EncodeBitString(0x84, tt.sizeBits, tt.bitString, buffer, 0)
			assert.Equal(t, tt.want, buffer[:gotPos])
		})
	}
}

func TestCompressInteger(t *testing.T) {
	tests := []struct {
		name    string
		integer []byte
		want    []byte
	}{
		{
			name:    "single octet untouched",
			integer: []byte{0x2A},
			want:    []byte{0x2A},
		},
		{
			name:    "leading zeros dropped",
			integer: []byte{0x00, 0x00, 0x04, 0xD2},
			want:    []byte{0x04, 0xD2},
		},
		{
			name:    "leading ones dropped for negative",
			integer: []byte{0xFF, 0xFF, 0x80, 0x00},
			want:    []byte{0x80, 0x00},
		},
		{
			name:    "guard zero kept for high bit",
			integer: []byte{0x00, 0xFF, 0xFF},
			want:    []byte{0x00, 0xFF, 0xFF},
		},
		{
			name:    "all zeros collapse to one",
			integer: []byte{0x00, 0x00},
			want:    []byte{0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integer := make([]byte, len(tt.integer))
			copy(integer, tt.integer)
			got := CompressInteger(integer)
			assert.Equal(t, tt.want, integer[:got])
		})
	}
}

func TestEncodeInt32WithTL(t *testing.T) {
	tests := []struct {
		name  string
		tag   Tag
		value int32
		want  []byte
	}{
		{
			name:  "small positive",
			tag:   Integer,
			value: 42,
			want:  []byte{0x02, 0x01, 0x2A},
		},
		{
			name:  "minus one",
			tag:   Integer,
			value: -1,
			want:  []byte{0x02, 0x01, 0xFF},
		},
		{
			name:  "two octets",
			tag:   Integer,
			value: 256,
			want:  []byte{0x02, 0x02, 0x01, 0x00},
		},
		{
			name:  "high bit needs guard octet",
			tag:   0x85,
			value: 128,
			want:  []byte{0x85, 0x02, 0x00, 0x80},
		},
		{
			name:  "negative boundary",
			tag:   0x85,
			value: -128,
			want:  []byte{0x85, 0x01, 0x80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := make([]byte, 8)
			gotPos := EncodeInt32WithTL(tt.tag, tt.value, buffer, 0)
			assert.Equal(t, tt.want, buffer[:gotPos])
		})
	}
}

func TestEncodeUInt32WithTL(t *testing.T) {
	tests := []struct {
		name  string
		tag   Tag
		value uint32
		want  []byte
	}{
		{
			name:  "small value",
			tag:   0x86,
			value: 1,
			want:  []byte{0x86, 0x01, 0x01},
		},
		{
			name:  "local detail",
			tag:   0x80,
			value: 65000,
			want:  []byte{0x80, 0x03, 0x00, 0xFD, 0xE8},
		},
		{
			name:  "high bit keeps guard zero",
			tag:   0x86,
			value: math.MaxUint32,
			want:  []byte{0x86, 0x05, 0x00, 0xFF, 0xFF, 0xFF, 0xFF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := make([]byte, 8)
			gotPos := EncodeUInt32WithTL(tt.tag, tt.value, buffer, 0)
			assert.Equal(t, tt.want, buffer[:gotPos])
		})
	}
}

func TestEncodeInt64WithTL(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		want  []byte
	}{
		{
			name:  "sign extension compressed",
			value: -129,
			want:  []byte{0x85, 0x02, 0xFF, 0x7F},
		},
		{
			name:  "six octets",
			value: 1 << 40,
			want:  []byte{0x85, 0x06, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name:  "minimum keeps full width",
			value: math.MinInt64,
			want:  []byte{0x85, 0x08, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buffer := make([]byte, 12)
			gotPos := EncodeInt64WithTL(0x85, tt.value, buffer, 0)
			assert.Equal(t, tt.want, buffer[:gotPos])
		})
	}
}

func TestEncodeUInt64WithTL(t *testing.T) {
	buffer := make([]byte, 12)

	gotPos := EncodeUInt64WithTL(0x86, 1<<63, buffer, 0)
	assert.Equal(t, []byte{0x86, 0x09, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, buffer[:gotPos])

	gotPos = EncodeUInt64WithTL(0x86, 0, buffer, 0)
	assert.Equal(t, []byte{0x86, 0x01, 0x00}, buffer[:gotPos])
}

func TestEncodeFloat32WithTL(t *testing.T) {
	buffer := make([]byte, 8)

	gotPos := EncodeFloat32WithTL(0x87, 50.0, buffer, 0)
	assert.Equal(t, []byte{0x87, 0x05, 0x08, 0x42, 0x48, 0x00, 0x00}, buffer[:gotPos])

	// same content under the universal FLOATING-POINT tag
	gotPos = EncodeFloat32WithTL(0x09, 50.0, buffer, 0)
	assert.Equal(t, []byte{0x09, 0x05, 0x08, 0x42, 0x48, 0x00, 0x00}, buffer[:gotPos])

	gotPos = EncodeFloat32WithTL(0x87, -1.5, buffer, 0)
	assert.Equal(t, []byte{0x87, 0x05, 0x08, 0xBF, 0xC0, 0x00, 0x00}, buffer[:gotPos])
}

// Size helpers must agree with what the encoders actually produce.
func TestDetermineEncodedSizes(t *testing.T) {
	t.Run("int32", func(t *testing.T) {
		values := []int32{0, 1, 42, 127, 128, 255, 256, -1, -128, -129, 32767, math.MinInt32, math.MaxInt32}
		for _, v := range values {
			buffer := make([]byte, 8)
			EncodeInt32WithTL(0x85, v, buffer, 0)
			assert.Equal(t, int(buffer[1]), Int32DetermineEncodedSize(v), "value %d", v)
		}
	})

	t.Run("uint32", func(t *testing.T) {
		values := []uint32{0, 1, 127, 128, 255, 256, 65000, 1 << 24, math.MaxUint32}
		for _, v := range values {
			buffer := make([]byte, 8)
			EncodeUInt32WithTL(0x86, v, buffer, 0)
			assert.Equal(t, int(buffer[1]), UInt32DetermineEncodedSize(v), "value %d", v)
		}
	})

	t.Run("int64", func(t *testing.T) {
		values := []int64{0, -1, 128, -129, 1 << 40, math.MinInt64, math.MaxInt64}
		for _, v := range values {
			buffer := make([]byte, 12)
			EncodeInt64WithTL(0x85, v, buffer, 0)
			assert.Equal(t, int(buffer[1]), Int64DetermineEncodedSize(v), "value %d", v)
		}
	})

	t.Run("uint64", func(t *testing.T) {
		values := []uint64{0, 1, 255, 1 << 40, 1 << 63, math.MaxUint64}
		for _, v := range values {
			buffer := make([]byte, 12)
			EncodeUInt64WithTL(0x86, v, buffer, 0)
			assert.Equal(t, int(buffer[1]), UInt64DetermineEncodedSize(v), "value %d", v)
		}
	})

	t.Run("length", func(t *testing.T) {
		lengths := []uint32{0, 1, 127, 128, 255, 256, 65535, 65536}
		for _, length := range lengths {
			buffer := make([]byte, 8)
			gotPos := EncodeLength(length, buffer, 0)
			assert.Equal(t, gotPos, DetermineLengthSize(length), "length %d", length)
		}
	})

	t.Run("string", func(t *testing.T) {
		long := make([]byte, 128)
		for i := range long {
			long[i] = 'a'
		}
		strs := []string{"", "a", "urcbA01", string(long)}
		for _, s := range strs {
			buffer := make([]byte, 256)
			gotPos := EncodeStringWithTag(VisibleString, s, buffer, 0)
			assert.Equal(t, gotPos, DetermineEncodedStringSize(s), "string %q", s)
		}
	})

	t.Run("bit string", func(t *testing.T) {
		data := make([]byte, 16)
		for _, bits := range []int{1, 6, 8, 10, 24, 128} {
			buffer := make([]byte, 32)
			gotPos := EncodeBitString(0x84, bits, data, buffer, 0)
			assert.Equal(t, gotPos, DetermineEncodedBitStringSize(bits), "bits %d", bits)
		}
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Run("length", func(t *testing.T) {
		lengths := []uint32{0, 1, 127, 128, 255, 256, 65535, 65536}
		for _, length := range lengths {
			buffer := make([]byte, 8)
			pos := EncodeLength(length, buffer, 0)
			newPos, decoded, err := DecodeLength(buffer, 0, int(length)+pos)
			require.NoError(t, err, "length %d", length)
			assert.Equal(t, pos, newPos, "length %d", length)
			assert.Equal(t, int(length), decoded, "length %d", length)
		}
	})

	t.Run("int32", func(t *testing.T) {
		values := []int32{0, 1, -1, 42, 127, 128, 255, 256, -128, -129, 65536, math.MinInt32, math.MaxInt32}
		for _, value := range values {
			buffer := make([]byte, 8)
			pos := EncodeInt32WithTL(0x02, value, buffer, 0)
			length := int(buffer[1])
			require.Equal(t, 2+length, pos, "value %d", value)
			assert.Equal(t, value, DecodeInt32(buffer, length, 2), "value %d", value)
		}
	})

	t.Run("int64", func(t *testing.T) {
		values := []int64{0, -1, -129, 65536, -2147483649, 1 << 40, math.MinInt64, math.MaxInt64}
		for _, value := range values {
			buffer := make([]byte, 12)
			pos := EncodeInt64WithTL(0x85, value, buffer, 0)
			length := int(buffer[1])
			require.Equal(t, 2+length, pos, "value %d", value)
			assert.Equal(t, value, DecodeInt64(buffer, length, 2), "value %d", value)
		}
	})

	t.Run("uint64", func(t *testing.T) {
		values := []uint64{0, 1, 255, 65536, 1 << 40, 1 << 63, math.MaxUint64}
		for _, value := range values {
			buffer := make([]byte, 12)
			pos := EncodeUInt64WithTL(0x86, value, buffer, 0)
			length := int(buffer[1])
			require.Equal(t, 2+length, pos, "value %d", value)
			assert.Equal(t, value, DecodeUint64(buffer, length, 2), "value %d", value)
		}
	})

	t.Run("float", func(t *testing.T) {
		values := []float32{0, 1, -1, 50.0, 230.5, -0.001}
		for _, v := range values {
			buffer := make([]byte, 8)
			EncodeFloat32WithTL(0x87, v, buffer, 0)
			assert.Equal(t, v, DecodeFloat(buffer, 2))
		}
	})

	t.Run("double", func(t *testing.T) {
		values := []float64{0, 3.141592653589793, -1e12}
		for _, v := range values {
			buffer := make([]byte, 16)
			EncodeFloat64WithTL(0x87, v, buffer, 0)
			assert.Equal(t, v, DecodeDouble(buffer, 2))
		}
	})
}
