package mms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadRequestBytes(t *testing.T) {
	tests := []struct {
		name    string
		request *ReadRequest
		want    string // hex строка
	}{
		{
			// a0 38 - confirmed-RequestPDU
			//   02 01 01 - invokeID = 1
			//   a4 33 - confirmedServiceRequest: read
			//      a1 31 - read
			//         a0 2f - variableAccessSpecification: listOfVariable
			//            30 2d - SEQUENCE
			//               a0 2b - variableSpecification: name
			//                  a1 29 - domain-specific
			//                     1a 11 - domainId: "simpleIOGenericIO"
			//                     1a 14 - itemId: "GGIO1$MX$AnIn1$mag$f"
			name:    "одна переменная",
			request: NewReadRequest(1, "simpleIOGenericIO", "GGIO1$MX$AnIn1$mag$f"),
			want: "a038020101a433a131a02f302da02ba129" +
				"1a1173696d706c65494f47656e65726963494f" +
				"1a144747494f31244d5824416e496e31246d61672466",
		},
		{
			// Чтение атрибутов RCB одним запросом: на каждую переменную
			// свой элемент listOfVariable
			name: "несколько переменных одного домена",
			request: NewReadRequest(3, "VMC7LD0",
				"LLN0$RP$urcbA01$RptEna", "LLN0$RP$urcbA01$SqNum"),
			want: "a056020103a451a14fa04d" +
				"3025a023a1211a07564d43374c4430" +
				"1a164c4c4e30245250247572636241303124527074456e61" +
				"3024a022a1201a07564d43374c4430" +
				"1a154c4c4e3024525024757263624130312453714e756d",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.request.Bytes()
			assert.Equal(t, parseHexString(tt.want), got, tt.name)
		})
	}
}
