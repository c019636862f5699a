package mms

import (
	"encoding/hex"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/slonegd/mmsreport/osi/mms/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseHexString парсит hex строку в []byte, игнорируя пробелы и переносы
func parseHexString(s string) []byte {
	data, err := hex.DecodeString(strings.NewReplacer(" ", "", "\n", "", "\t", "").Replace(s))
	if err != nil {
		panic(err)
	}
	return data
}

func TestParseReadResponse(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
		want   ReadResponse
	}{
		{
			// a0 0e - confirmed-ResponsePDU
			//   02 01 01 - invokeID = 1
			//   a4 09 - confirmedServiceResponse: read
			//      a1 07 - read
			//         87 05 08 3d a8 83 7c - floating-point: формат + значение
			name:   "float32 с тегом confirmed-ResponsePDU",
			buffer: "a0 0e 02 01 01 a4 09 a1 07 87 05 08 3d a8 83 7c",
			want: ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: true,
					Value:   variant.NewFloat32Variant(math.Float32frombits(0x3da8837c)),
				}},
			},
		},
		{
			// Ответ приходит с внешним тегом a1 вместо a0,
			// содержимое то же самое
			name:   "float32 с внешним тегом a1",
			buffer: "a1 0e 02 01 01 a4 09 a1 07 87 05 08 3e df 52 cc",
			want: ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: true,
					Value:   variant.NewFloat32Variant(math.Float32frombits(0x3edf52cc)),
				}},
			},
		},
		{
			// invokeID и confirmedServiceResponse без внешнего тега
			name:   "float32 без внешнего тега",
			buffer: "02 01 01 a4 09 a1 07 87 05 08 3e df 52 cc",
			want: ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: true,
					Value:   variant.NewFloat32Variant(math.Float32frombits(0x3edf52cc)),
				}},
			},
		},
		{
			// 80 01 0a - failure: DataAccessError = 10 (object-non-existent)
			name:   "ошибка доступа object-non-existent",
			buffer: "a1 0a 02 01 01 a4 05 a1 03 80 01 0a",
			want: ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: false,
					Error:   &DataAccessError{ErrorCode: ObjectNonExistent},
				}},
			},
		},
		{
			// 91 08 - utc-time:
			//   69 5b 76 07 - секунды (big-endian uint32) = 1767601671
			//   27 6c 8b - доля секунды = 2583691 единиц из 2^24
			//   80 - качество времени
			// Время: Jan 5, 2026 08:27:51.153999984 UTC
			name:   "utc-time",
			buffer: "a1 11 02 01 01 a4 0c a1 0a 91 08 69 5b 76 07 27 6c 8b 80",
			want: ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: true,
					Value:   variant.NewUTCTimeVariant(time.Date(2026, 1, 5, 8, 27, 51, 153999984, time.UTC)),
				}},
			},
		},
		{
			// Чтение mag$f, q и t одним запросом: результаты
			// идут в порядке переменных запроса
			name: "несколько результатов в одном ответе",
			buffer: "a0 1d 02 01 05 a4 18 a1 16" +
				"87 05 08 3d a8 83 7c" +
				"84 03 03 00 00" +
				"91 08 69 5b 76 07 27 6c 8b 80",
			want: ReadResponse{
				InvokeID: 5,
				ListOfAccessResult: []AccessResult{
					{
						Success: true,
						Value:   variant.NewFloat32Variant(math.Float32frombits(0x3da8837c)),
					},
					{
						Success: true,
						Value:   variant.NewBitStringVariant([]byte{0x00, 0x00}, 13),
					},
					{
						Success: true,
						Value:   variant.NewUTCTimeVariant(time.Date(2026, 1, 5, 8, 27, 51, 153999984, time.UTC)),
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReadResponse(parseHexString(tt.buffer))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReadResponse_Errors(t *testing.T) {
	tests := []struct {
		name      string
		buffer    string
		wantError string
	}{
		{
			name:      "пустой буфер",
			buffer:    "",
			wantError: "empty buffer",
		},
		{
			name:      "длина больше буфера",
			buffer:    "a0 ff 02 01 01",
			wantError: "failed to decode length: buffer overflow",
		},
		{
			name:      "вместо read другой тег",
			buffer:    "a1 08 02 01 01 a4 03 a2 01 7f",
			wantError: "failed to parse read service response: invalid tag: expected 0xA1 (read), got 0xa2",
		},
		{
			name:      "неподдерживаемый тег данных",
			buffer:    "a1 0a 02 01 01 a4 05 a1 03 88 01 00",
			wantError: "failed to parse read service response: unsupported data tag: 0x88",
		},
		{
			name:      "неверная длина floating-point",
			buffer:    "a1 0c 02 01 01 a4 07 a1 05 87 03 08 3d a8",
			wantError: "failed to parse read service response: invalid floating-point length: expected 5 or 9 bytes, got 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReadResponse(parseHexString(tt.buffer))
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantError)
		})
	}
}

func TestReadResponseString(t *testing.T) {
	r := ReadResponse{
		InvokeID: 3,
		ListOfAccessResult: []AccessResult{
			{Success: true, Value: variant.NewIntegerVariant(42)},
			{Success: false, Error: &DataAccessError{ErrorCode: ObjectAccessDenied}},
		},
	}
	assert.Equal(t,
		"ReadResponse{InvokeID: 3, Results: [integer(42), Error(object-access-denied)]}",
		r.String())
}
