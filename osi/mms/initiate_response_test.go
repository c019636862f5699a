package mms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInitiateResponse(t *testing.T) {
	localDetail := uint32(65000)
	nestingLevel := uint32(10)

	tests := []struct {
		name      string
		buffer    string
		want      *InitiateResponse
		wantError string
	}{
		{
			// Ответ реального IED:
			// a9 26 - initiate-ResponsePDU
			//    80 03 00 fd e8 - localDetailCalled: 65000
			//    81 01 05 - negotiatedMaxServOutstandingCalling: 5
			//    82 01 05 - negotiatedMaxServOutstandingCalled: 5
			//    83 01 0a - negotiatedDataStructureNestingLevel: 10
			//    a4 16 - mmsInitResponseDetail
			//       80 01 01 - negotiatedVersionNumber: 1
			//       81 03 05 f1 00 - negotiatedParameterCBB
			//       82 0c 03 ee 1c 00 00 00 02 00 00 40 ed 18 - servicesSupportedCalled
			name: "ответ реального IED",
			buffer: "a9 26 80 03 00 fd e8 81 01 05 82 01 05 83 01 0a" +
				"a4 16 80 01 01 81 03 05 f1 00" +
				"82 0c 03 ee 1c 00 00 00 02 00 00 40 ed 18",
			want: &InitiateResponse{
				LocalDetailCalled:                   &localDetail,
				NegotiatedMaxServOutstandingCalling: 5,
				NegotiatedMaxServOutstandingCalled:  5,
				NegotiatedDataStructureNestingLevel: &nestingLevel,
				NegotiatedVersionNumber:             1,
				NegotiatedParameterCBB: []ParameterCBBBit{
					Str1, Str2, Vnam, Valt, Vlis,
				},
				ServicesSupportedCalled: []ServiceSupportedBit{
					Status, GetNameList, Identify, Read, Write,
					GetVariableAccessAttributes, DefineNamedVariableList,
					GetNamedVariableListAttributes, DeleteNamedVariableList,
					ObtainFile, ReadJournal,
					FileOpen, FileRead, FileClose, FileDelete, FileDirectory,
					InformationReportBit, Conclude, Cancel,
				},
			},
		},
		{
			// Опциональные localDetailCalled и nestingLevel отсутствуют
			name:   "без опциональных полей",
			buffer: "a9 06 81 01 05 82 01 05",
			want: &InitiateResponse{
				NegotiatedMaxServOutstandingCalling: 5,
				NegotiatedMaxServOutstandingCalled:  5,
			},
		},
		{
			name:      "пустой буфер",
			buffer:    "",
			wantError: "empty buffer",
		},
		{
			name:      "не initiate-ResponsePDU",
			buffer:    "a8 00",
			wantError: "invalid tag: expected 0xa9, got 0xa8",
		},
		{
			name:      "длина превышает размер буфера",
			buffer:    "a9 10 80 01",
			wantError: "failed to decode length: buffer overflow",
		},
		{
			name:      "длина элемента превышает размер буфера",
			buffer:    "a9 04 80 05 00 00",
			wantError: "failed to decode element: buffer overflow",
		},
		{
			name:      "BIT STRING без байта выравнивания",
			buffer:    "a9 04 a4 02 81 00",
			wantError: "invalid negotiatedParameterCBB: missing padding byte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInitiateResponse(parseHexString(tt.buffer))
			if tt.wantError != "" {
				assert.EqualError(t, err, tt.wantError)
				assert.Nil(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitiateResponseString(t *testing.T) {
	localDetail := uint32(65000)
	response := &InitiateResponse{
		LocalDetailCalled:                   &localDetail,
		NegotiatedMaxServOutstandingCalling: 5,
		NegotiatedMaxServOutstandingCalled:  5,
		NegotiatedVersionNumber:             1,
		NegotiatedParameterCBB:              []ParameterCBBBit{Str1, Vlis},
		ServicesSupportedCalled:             []ServiceSupportedBit{Status, InformationReportBit},
	}

	want := "InitiateResponse{LocalDetailCalled:65000" +
		" NegotiatedMaxServOutstandingCalling:5" +
		" NegotiatedMaxServOutstandingCalled:5" +
		" NegotiatedDataStructureNestingLevel:<nil>" +
		" NegotiatedVersionNumber:1" +
		" NegotiatedParameterCBB:[Str1 Vlis]" +
		" ServicesSupportedCalled:[Status InformationReport]}"
	assert.Equal(t, want, response.String())
}
