package mms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGetVariableAccessAttributesResponse(t *testing.T) {
	// Ответ реального IED на запрос атрибутов датасета из четырёх
	// структур AnIn1..AnIn4. Каждая - структура с компонентами:
	//   mag - структура с одним компонентом f (float32)
	//   q - bit-string переменной длины до 13 бит (Quality)
	//   t - utc-time (Timestamp)
	//
	// a1 82 01 0b - confirmed-ResponsePDU
	//   02 01 02 - invokeID: 2
	//   a6 82 01 04 - getVariableAccessAttributes
	//      80 01 00 - mmsDeletable: false
	//      a2 81 fe - typeSpecification
	//         a2 81 fb - structure
	//            a1 81 f8 - components
	//               30 3c - component
	//                  80 05 41 6e 49 6e 31 - componentName: "AnIn1"
	//                  a1 33 - componentType
	//                     a2 31 - structure
	//                        a1 2f - components
	//                           30 1a - component
	//                              80 03 6d 61 67 - componentName: "mag"
	//                              a1 13 a2 11 a1 0f - структура с компонентами
	//                                 30 0d 80 01 66 - componentName: "f"
	//                                    a1 08 a7 06 02 01 20 02 01 08 - float: format 32, exponent 8
	//                           30 08 80 01 71 a1 03 84 01 f3 - "q": bit-string -13
	//                           30 07 80 01 74 a1 02 91 00 - "t": utc-time
	packet := "a182010b020102a6820104800100a281fea281fba181f8" +
		"303c8005416e496e31a133a231a12f301a80036d6167a113a211a10f300d800166a108a7060201200201083008800171a1038401f33007800174a1029100" +
		"303c8005416e496e32a133a231a12f301a80036d6167a113a211a10f300d800166a108a7060201200201083008800171a1038401f33007800174a1029100" +
		"303c8005416e496e33a133a231a12f301a80036d6167a113a211a10f300d800166a108a7060201200201083008800171a1038401f33007800174a1029100" +
		"303c8005416e496e34a133a231a12f301a80036d6167a113a211a10f300d800166a108a7060201200201083008800171a1038401f33007800174a1029100"

	// Тип AnIn, одинаковый у всех четырёх компонентов датасета
	anInType := &TypeSpecification{
		Type: TypeSpecStructure,
		Structure: &StructureTypeSpec{Components: []ComponentSpec{
			{
				Name: "mag",
				Type: &TypeSpecification{
					Type: TypeSpecStructure,
					Structure: &StructureTypeSpec{Components: []ComponentSpec{
						{
							Name: "f",
							Type: &TypeSpecification{
								Type:          TypeSpecFloatingPoint,
								FloatingPoint: &FloatingPointTypeSpec{FormatWidth: 32, ExponentWidth: 8},
							},
						},
					}},
				},
			},
			{
				Name: "q",
				Type: &TypeSpecification{Type: TypeSpecBitString, BitStringSize: -13},
			},
			{
				Name: "t",
				Type: &TypeSpecification{Type: TypeSpecUTCTime},
			},
		}},
	}

	want := &VariableAccessAttributesResponse{
		InvokeID:     2,
		MmsDeletable: false,
		TypeSpecification: &TypeSpecification{
			Type: TypeSpecStructure,
			Structure: &StructureTypeSpec{Components: []ComponentSpec{
				{Name: "AnIn1", Type: anInType},
				{Name: "AnIn2", Type: anInType},
				{Name: "AnIn3", Type: anInType},
				{Name: "AnIn4", Type: anInType},
			}},
		},
	}

	got, err := ParseGetVariableAccessAttributesResponse(parseHexString(packet))
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseGetVariableAccessAttributesResponse_SimpleTypes(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
		want   *VariableAccessAttributesResponse
	}{
		{
			// Ответ без внешнего тега confirmed-ResponsePDU
			name:   "floating-point без внешнего тега",
			buffer: "02 01 05 a6 0d 80 01 00 a2 08 a7 06 02 01 20 02 01 08",
			want: &VariableAccessAttributesResponse{
				InvokeID: 5,
				TypeSpecification: &TypeSpecification{
					Type:          TypeSpecFloatingPoint,
					FloatingPoint: &FloatingPointTypeSpec{FormatWidth: 32, ExponentWidth: 8},
				},
			},
		},
		{
			// VisString255 - visible-string переменной длины до 255
			name:   "удаляемая переменная visible-string",
			buffer: "a1 0e 02 01 07 a6 09 80 01 ff a2 04 8a 02 ff 01",
			want: &VariableAccessAttributesResponse{
				InvokeID:     7,
				MmsDeletable: true,
				TypeSpecification: &TypeSpecification{
					Type:              TypeSpecVisibleString,
					VisibleStringSize: -255,
				},
			},
		},
		{
			// Массив из десяти integer32
			name:   "массив integer",
			buffer: "02 01 03 a6 0f 80 01 00 a2 0a a1 08 81 01 0a a2 03 85 01 20",
			want: &VariableAccessAttributesResponse{
				InvokeID: 3,
				TypeSpecification: &TypeSpecification{
					Type: TypeSpecArray,
					Array: &ArrayTypeSpec{
						ElementCount: 10,
						ElementType:  &TypeSpecification{Type: TypeSpecInteger, IntegerSize: 32},
					},
				},
			},
		},
		{
			name:   "boolean",
			buffer: "02 01 04 a6 07 80 01 00 a2 02 83 00",
			want: &VariableAccessAttributesResponse{
				InvokeID:          4,
				TypeSpecification: &TypeSpecification{Type: TypeSpecBoolean},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGetVariableAccessAttributesResponse(parseHexString(tt.buffer))
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGetVariableAccessAttributesResponse_Errors(t *testing.T) {
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
			name:      "нет ответа getVariableAccessAttributes",
			buffer:    "02 01 01",
			wantError: "getVariableAccessAttributes response not found",
		},
		{
			name:   "неподдерживаемый тип",
			buffer: "02 01 01 a6 08 80 01 00 a2 03 8d 01 02",
			wantError: "failed to parse getVariableAccessAttributes response: " +
				"failed to parse typeSpecification: unsupported type specification tag: 0x8d",
		},
		{
			name:   "нет спецификации типа",
			buffer: "02 01 01 a6 03 80 01 00",
			wantError: "failed to parse getVariableAccessAttributes response: " +
				"typeSpecification not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGetVariableAccessAttributesResponse(parseHexString(tt.buffer))
			assert.EqualError(t, err, tt.wantError)
			assert.Nil(t, got)
		})
	}
}
