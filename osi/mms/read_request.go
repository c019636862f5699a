package mms

import (
	"github.com/slonegd/mmsreport/ber"
)

// ReadRequest представляет MMS Read Request PDU
// Структура согласно ISO/IEC 9506-2:
//
//	confirmed-RequestPDU ::= SEQUENCE {
//	  invokeID            [0] IMPLICIT Unsigned32,
//	  confirmedServiceRequest [1] CHOICE {
//	    read [4] Read-Request
//	  }
//	}
//
//	Read-Request ::= SEQUENCE {
//	  variableAccessSpecification [0] CHOICE {
//	    listOfVariable [0] SEQUENCE OF SEQUENCE {
//	      variableSpecification VariableSpecification
//	    }
//	  }
//	}
//
//	VariableSpecification ::= CHOICE {
//	  name [0] ObjectName
//	}
//
// Один запрос может читать несколько переменных одного домена:
// элементы listOfAccessResult в ответе идут в порядке ItemIDs
type ReadRequest struct {
	// InvokeID - идентификатор вызова
	InvokeID uint32
	// DomainID - имя домена (например, "VMC7_1LD0")
	DomainID string
	// ItemIDs - имена элементов (например, "LLN0$RP$urcbA01$RptEna")
	ItemIDs []string
}

// Bytes кодирует ReadRequest в BER-кодированный пакет MMS confirmed-RequestPDU
// Структура пакета (из wireshark, чтение двух атрибутов RCB):
// a0 56 - confirmed-RequestPDU (Context-specific 0, Constructed, длина 86 байт)
//
//	02 01 03 - invokeID (INTEGER, длина 1, значение 3)
//	a4 51 - confirmedServiceRequest: read (Context-specific 4, Constructed, длина 81 байт)
//	   a1 4f - variableAccessSpecification (Context-specific 1, Constructed, длина 79 байт)
//	      a0 4d - listOfVariable (Context-specific 0, Constructed, длина 77 байт)
//	         30 25 - первый элемент (SEQUENCE, длина 37 байт)
//	            a0 23 - variableSpecification: name (Context-specific 0, Constructed, длина 35 байт)
//	               a1 21 - name: domain-specific (Context-specific 1, Constructed, длина 33 байта)
//	                  1a 07 - domainId (VisibleString, длина 7 байт): "VMC7LD0"
//	                  1a 16 - itemId (VisibleString, длина 22 байта): "LLN0$RP$urcbA01$RptEna"
//	         30 24 - второй элемент (SEQUENCE, длина 36 байт)
//	            a0 22 - variableSpecification: name (Context-specific 0, Constructed, длина 34 байта)
//	               a1 20 - name: domain-specific (Context-specific 1, Constructed, длина 32 байта)
//	                  1a 07 - domainId (VisibleString, длина 7 байт): "VMC7LD0"
//	                  1a 15 - itemId (VisibleString, длина 21 байт): "LLN0$RP$urcbA01$SqNum"
func (r *ReadRequest) Bytes() []byte {
	// Сначала строим внутреннее содержимое, чтобы знать его размер
	innerContent := r.buildReadRequestContent()

	buffer := make([]byte, len(innerContent)+8)
	bufPos := 0

	// Кодируем confirmed-RequestPDU (Context-specific 0, Constructed)
	// 0xa0 = Context-specific 0, Constructed
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(innerContent)), buffer, bufPos)
	copy(buffer[bufPos:], innerContent)
	bufPos += len(innerContent)

	return buffer[:bufPos]
}

// buildReadRequestContent собирает содержимое confirmed-RequestPDU
func (r *ReadRequest) buildReadRequestContent() []byte {
	readRequestContent := r.buildReadServiceRequest()

	buffer := make([]byte, len(readRequestContent)+16)
	bufPos := 0

	// invokeID кодируется обычным INTEGER (0x02), не [0] IMPLICIT
	tempBuf := make([]byte, 8)
	tempPos := ber.EncodeUInt32(r.InvokeID, tempBuf, 0)
	intValue := tempBuf[0:tempPos]
	bufPos = ber.EncodeTL(ber.Integer, uint32(len(intValue)), buffer, bufPos)
	copy(buffer[bufPos:], intValue)
	bufPos += len(intValue)

	// confirmedServiceRequest: read (Context-specific 4, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific4Constructed, uint32(len(readRequestContent)), buffer, bufPos)
	copy(buffer[bufPos:], readRequestContent)
	bufPos += len(readRequestContent)

	return buffer[:bufPos]
}

// buildReadServiceRequest собирает содержимое read service request
func (r *ReadRequest) buildReadServiceRequest() []byte {
	readContent := r.buildReadContent()

	buffer := make([]byte, len(readContent)+8)
	bufPos := 0

	// variableAccessSpecification ([1], Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific1Constructed, uint32(len(readContent)), buffer, bufPos)
	copy(buffer[bufPos:], readContent)
	bufPos += len(readContent)

	return buffer[:bufPos]
}

// buildReadContent собирает содержимое Read-Request
func (r *ReadRequest) buildReadContent() []byte {
	listOfVariableContent := r.buildListOfVariable()

	buffer := make([]byte, len(listOfVariableContent)+8)
	bufPos := 0

	// variableAccessSpecification: listOfVariable (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(listOfVariableContent)), buffer, bufPos)
	copy(buffer[bufPos:], listOfVariableContent)
	bufPos += len(listOfVariableContent)

	return buffer[:bufPos]
}

// buildListOfVariable собирает SEQUENCE OF с элементом на каждую переменную
func (r *ReadRequest) buildListOfVariable() []byte {
	buffer := make([]byte, 0, 64*len(r.ItemIDs))

	for _, itemID := range r.ItemIDs {
		variableSpecContent := buildVariableSpecification(r.DomainID, itemID)

		element := make([]byte, len(variableSpecContent)+8)
		elementPos := ber.EncodeTL(ber.SequenceConstructed, uint32(len(variableSpecContent)), element, 0)
		copy(element[elementPos:], variableSpecContent)
		elementPos += len(variableSpecContent)

		buffer = append(buffer, element[:elementPos]...)
	}

	return buffer
}

// buildVariableSpecification собирает VariableSpecification
func buildVariableSpecification(domainID, itemID string) []byte {
	nameContent := buildObjectName(domainID, itemID)

	buffer := make([]byte, len(nameContent)+8)
	bufPos := 0

	// variableSpecification: name (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(nameContent)), buffer, bufPos)
	copy(buffer[bufPos:], nameContent)
	bufPos += len(nameContent)

	return buffer[:bufPos]
}

// buildObjectName собирает ObjectName в формате domain-specific
func buildObjectName(domainID, itemID string) []byte {
	domainSpecificContent := buildDomainSpecificName(domainID, itemID)

	buffer := make([]byte, len(domainSpecificContent)+8)
	bufPos := 0

	// name: domain-specific (Context-specific 1, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific1Constructed, uint32(len(domainSpecificContent)), buffer, bufPos)
	copy(buffer[bufPos:], domainSpecificContent)
	bufPos += len(domainSpecificContent)

	return buffer[:bufPos]
}

// buildDomainSpecificName собирает domain-specific имя
func buildDomainSpecificName(domainID, itemID string) []byte {
	buffer := make([]byte, ber.DetermineEncodedStringSize(domainID)+ber.DetermineEncodedStringSize(itemID))
	bufPos := 0

	// domainId (VisibleString, 0x1a)
	bufPos = ber.EncodeStringWithTag(ber.VisibleString, domainID, buffer, bufPos)

	// itemId (VisibleString, 0x1a)
	bufPos = ber.EncodeStringWithTag(ber.VisibleString, itemID, buffer, bufPos)

	return buffer[:bufPos]
}

// NewReadRequest создаёт новый ReadRequest
func NewReadRequest(invokeID uint32, domainID string, itemIDs ...string) *ReadRequest {
	return &ReadRequest{
		InvokeID: invokeID,
		DomainID: domainID,
		ItemIDs:  itemIDs,
	}
}
