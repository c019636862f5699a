package mms

import (
	"github.com/slonegd/mmsreport/ber"
	"github.com/slonegd/mmsreport/osi/mms/variant"
)

// WriteRequest представляет MMS Write Request для одной переменной
// Структура согласно ISO/IEC 9506-2:
//
//	Write-Request ::= SEQUENCE {
//	  variableAccessSpecification VariableAccessSpecification,
//	  listOfData [0] IMPLICIT SEQUENCE OF Data
//	}
//
// VariableAccessSpecification и listOfData кодируются соседними
// контекстными тегами a0 внутри write (a5)
type WriteRequest struct {
	InvokeID uint32
	DomainID string
	ItemID   string
	Value    *variant.Variant
}

// Bytes кодирует WriteRequest в BER-кодированный пакет MMS confirmed-RequestPDU
// Структура пакета (из wireshark, запись RptEna):
// a0 33 - confirmed-RequestPDU (Context-specific 0, Constructed)
//
//	02 01 04 - invokeID (INTEGER, длина 1, значение 4)
//	a5 2e - confirmedServiceRequest: write (Context-specific 5, Constructed)
//	   a0 29 - variableAccessSpecification: listOfVariable (Context-specific 0, Constructed)
//	      30 27 - элемент listOfVariable (SEQUENCE)
//	         a0 25 - variableSpecification: name (Context-specific 0, Constructed)
//	            a1 23 - name: domain-specific (Context-specific 1, Constructed)
//	               1a 07 - domainId (VisibleString): "VMC7LD0"
//	               1a 18 - itemId (VisibleString): "LLN0$RP$urcbA01$RptEna"
//	   a0 03 - listOfData (Context-specific 0, Constructed)
//	      83 01 01 - Data: boolean true
func (r *WriteRequest) Bytes() ([]byte, error) {
	innerContent, err := r.buildWriteRequestContent()
	if err != nil {
		return nil, err
	}

	buffer := make([]byte, len(innerContent)+8)
	bufPos := 0

	// confirmed-RequestPDU (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(innerContent)), buffer, bufPos)
	copy(buffer[bufPos:], innerContent)
	bufPos += len(innerContent)

	return buffer[:bufPos], nil
}

// buildWriteRequestContent собирает содержимое confirmed-RequestPDU
func (r *WriteRequest) buildWriteRequestContent() ([]byte, error) {
	writeRequestContent, err := r.buildWriteServiceRequest()
	if err != nil {
		return nil, err
	}

	buffer := make([]byte, len(writeRequestContent)+16)
	bufPos := 0

	// invokeID (INTEGER)
	tempBuf := make([]byte, 8)
	tempPos := ber.EncodeUInt32(r.InvokeID, tempBuf, 0)
	intValue := tempBuf[0:tempPos]
	bufPos = ber.EncodeTL(ber.Integer, uint32(len(intValue)), buffer, bufPos)
	copy(buffer[bufPos:], intValue)
	bufPos += len(intValue)

	// confirmedServiceRequest: write (Context-specific 5, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific5Constructed, uint32(len(writeRequestContent)), buffer, bufPos)
	copy(buffer[bufPos:], writeRequestContent)
	bufPos += len(writeRequestContent)

	return buffer[:bufPos], nil
}

// buildWriteServiceRequest собирает содержимое Write-Request:
// variableAccessSpecification и listOfData
func (r *WriteRequest) buildWriteServiceRequest() ([]byte, error) {
	listOfVariable := r.buildWriteListOfVariable()

	dataContent, err := EncodeData(r.Value)
	if err != nil {
		return nil, err
	}

	buffer := make([]byte, len(listOfVariable)+len(dataContent)+16)
	bufPos := 0

	// variableAccessSpecification: listOfVariable (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(listOfVariable)), buffer, bufPos)
	copy(buffer[bufPos:], listOfVariable)
	bufPos += len(listOfVariable)

	// listOfData (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(dataContent)), buffer, bufPos)
	copy(buffer[bufPos:], dataContent)
	bufPos += len(dataContent)

	return buffer[:bufPos], nil
}

// buildWriteListOfVariable собирает SEQUENCE OF с одной переменной
func (r *WriteRequest) buildWriteListOfVariable() []byte {
	variableSpecContent := buildVariableSpecification(r.DomainID, r.ItemID)

	buffer := make([]byte, len(variableSpecContent)+8)
	bufPos := ber.EncodeTL(ber.SequenceConstructed, uint32(len(variableSpecContent)), buffer, 0)
	copy(buffer[bufPos:], variableSpecContent)
	bufPos += len(variableSpecContent)

	return buffer[:bufPos]
}

// NewWriteRequest создаёт новый WriteRequest
func NewWriteRequest(invokeID uint32, domainID, itemID string, value *variant.Variant) *WriteRequest {
	return &WriteRequest{
		InvokeID: invokeID,
		DomainID: domainID,
		ItemID:   itemID,
		Value:    value,
	}
}
