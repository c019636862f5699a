package mms

import (
	"github.com/slonegd/mmsreport/ber"
)

// GetVariableAccessAttributesRequest представляет MMS GetVariableAccessAttributes Request PDU
// Структура согласно ISO/IEC 9506-2:
//
//	confirmed-RequestPDU ::= SEQUENCE {
//	  invokeID            [0] IMPLICIT Unsigned32,
//	  confirmedServiceRequest [1] CHOICE {
//	    getVariableAccessAttributes [6] GetVariableAccessAttributes-Request
//	  }
//	}
//
//	GetVariableAccessAttributes-Request ::= CHOICE {
//	  name [0] ObjectName
//	}
//
//	ObjectName ::= CHOICE {
//	  domain-specific [1] SEQUENCE {
//	    domainId [0] IMPLICIT VisibleString,
//	    itemId   [1] IMPLICIT VisibleString
//	  }
//	}
//
// Ответ разбирает ParseGetVariableAccessAttributesResponse
type GetVariableAccessAttributesRequest struct {
	// InvokeID - идентификатор вызова
	InvokeID uint32
	// DomainID - имя домена (например, "simpleIOGenericIO")
	DomainID string
	// ItemID - имя элемента (например, "GGIO1$MX")
	ItemID string
}

// NewGetVariableAccessAttributesRequest создаёт запрос атрибутов переменной домена
func NewGetVariableAccessAttributesRequest(invokeID uint32, domainID, itemID string) *GetVariableAccessAttributesRequest {
	return &GetVariableAccessAttributesRequest{
		InvokeID: invokeID,
		DomainID: domainID,
		ItemID:   itemID,
	}
}

// Bytes кодирует GetVariableAccessAttributesRequest в BER-кодированный пакет MMS confirmed-RequestPDU
// Структура пакета (из wireshark):
// a0 26 - confirmed-RequestPDU (Context-specific 0, Constructed, длина 38 байт)
//
//	02 01 02 - invokeID (INTEGER, длина 1, значение 2)
//	a6 21 - confirmedServiceRequest: getVariableAccessAttributes (Context-specific 6, Constructed, длина 33 байт)
//	   a0 1f - getVariableAccessAttributes: name (Context-specific 0, Constructed, длина 31 байт)
//	      a1 1d - name: domain-specific (Context-specific 1, Constructed, длина 29 байт)
//	         1a 11 - domainId (VisibleString, длина 17 байт): "simpleIOGenericIO"
//	         1a 08 - itemId (VisibleString, длина 8 байт): "GGIO1$MX"
func (r *GetVariableAccessAttributesRequest) Bytes() []byte {
	innerContent := r.buildRequestContent()

	buffer := make([]byte, len(innerContent)+8)
	bufPos := ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(innerContent)), buffer, 0)
	copy(buffer[bufPos:], innerContent)
	bufPos += len(innerContent)

	return buffer[:bufPos]
}

// buildRequestContent собирает содержимое confirmed-RequestPDU:
// invokeID и confirmedServiceRequest
func (r *GetVariableAccessAttributesRequest) buildRequestContent() []byte {
	// getVariableAccessAttributes: name (Context-specific 0, Constructed) -
	// единственная альтернатива CHOICE
	nameContent := buildObjectName(r.DomainID, r.ItemID)
	serviceContent := make([]byte, len(nameContent)+8)
	servicePos := ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(nameContent)), serviceContent, 0)
	copy(serviceContent[servicePos:], nameContent)
	servicePos += len(nameContent)

	buffer := make([]byte, servicePos+16)
	bufPos := 0

	// invokeID (INTEGER)
	tempBuf := make([]byte, 8)
	tempPos := ber.EncodeUInt32(r.InvokeID, tempBuf, 0)
	intValue := tempBuf[0:tempPos]
	bufPos = ber.EncodeTL(ber.Integer, uint32(len(intValue)), buffer, bufPos)
	copy(buffer[bufPos:], intValue)
	bufPos += len(intValue)

	// confirmedServiceRequest: getVariableAccessAttributes (Context-specific 6, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific6Constructed, uint32(servicePos), buffer, bufPos)
	copy(buffer[bufPos:], serviceContent[:servicePos])
	bufPos += servicePos

	return buffer[:bufPos]
}
