package mms

import (
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/ber"
)

// ObjectClass определяет класс объектов для GetNameList
// Значения согласно ISO/IEC 9506-2 (basicObjectClass)
type ObjectClass uint32

const (
	// ObjectClassNamedVariable переменные (структура данных IED)
	ObjectClassNamedVariable ObjectClass = 0
	// ObjectClassNamedVariableList наборы данных (data sets)
	ObjectClassNamedVariableList ObjectClass = 2
	// ObjectClassJournal журналы
	ObjectClassJournal ObjectClass = 8
	// ObjectClassDomain домены (логические устройства IED)
	ObjectClassDomain ObjectClass = 9
)

// GetNameListRequest представляет MMS GetNameList Request
// Структура согласно ISO/IEC 9506-2:
//
//	GetNameList-Request ::= SEQUENCE {
//	  objectClass   [0] ObjectClass,
//	  objectScope   [1] CHOICE {
//	    vmdSpecific    [0] IMPLICIT NULL,
//	    domainSpecific [1] IMPLICIT Identifier,
//	    aaSpecific     [2] IMPLICIT NULL
//	  },
//	  continueAfter [2] IMPLICIT Identifier OPTIONAL
//	}
//
// Пустой DomainID означает vmd-specific область (список доменов IED)
type GetNameListRequest struct {
	InvokeID      uint32
	ObjectClass   ObjectClass
	DomainID      string
	ContinueAfter string // имя, после которого продолжить (для длинных списков)
}

// Bytes кодирует GetNameListRequest в BER-кодированный пакет MMS confirmed-RequestPDU
// Структура пакета (из wireshark):
// a0 1a - confirmed-RequestPDU (Context-specific 0, Constructed)
//
//	02 01 02 - invokeID (INTEGER, длина 1, значение 2)
//	a1 15 - confirmedServiceRequest: getNameList (Context-specific 1, Constructed)
//	   a0 03 - objectClass (Context-specific 0, Constructed)
//	      80 01 00 - basicObjectClass: namedVariable (0)
//	   a1 09 - objectScope (Context-specific 1, Constructed)
//	      81 07 - domainSpecific (VisibleString): "VMC7LD0"
//	   82 03 - continueAfter (VisibleString): "LLN0" (опционально)
func (r *GetNameListRequest) Bytes() []byte {
	innerContent := r.buildGetNameListContent()

	buffer := make([]byte, len(innerContent)+8)
	bufPos := 0

	// confirmed-RequestPDU (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(len(innerContent)), buffer, bufPos)
	copy(buffer[bufPos:], innerContent)
	bufPos += len(innerContent)

	return buffer[:bufPos]
}

// buildGetNameListContent собирает содержимое confirmed-RequestPDU
func (r *GetNameListRequest) buildGetNameListContent() []byte {
	serviceContent := r.buildGetNameListServiceRequest()

	buffer := make([]byte, len(serviceContent)+16)
	bufPos := 0

	// invokeID (INTEGER)
	tempBuf := make([]byte, 8)
	tempPos := ber.EncodeUInt32(r.InvokeID, tempBuf, 0)
	intValue := tempBuf[0:tempPos]
	bufPos = ber.EncodeTL(ber.Integer, uint32(len(intValue)), buffer, bufPos)
	copy(buffer[bufPos:], intValue)
	bufPos += len(intValue)

	// confirmedServiceRequest: getNameList (Context-specific 1, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific1Constructed, uint32(len(serviceContent)), buffer, bufPos)
	copy(buffer[bufPos:], serviceContent)
	bufPos += len(serviceContent)

	return buffer[:bufPos]
}

// buildGetNameListServiceRequest собирает содержимое GetNameList-Request
func (r *GetNameListRequest) buildGetNameListServiceRequest() []byte {
	// objectClass: basicObjectClass (Context-specific 0 внутри objectClass)
	classSize := ber.UInt32DetermineEncodedSize(uint32(r.ObjectClass))

	// objectScope: domainSpecific либо vmdSpecific
	var scopeContentSize int
	if r.DomainID != "" {
		scopeContentSize = ber.DetermineEncodedStringSize(r.DomainID)
	} else {
		scopeContentSize = 2 // vmdSpecific: NULL (80 00)
	}

	bufferSize := 4 + 2 + classSize + 4 + scopeContentSize
	if r.ContinueAfter != "" {
		bufferSize += ber.DetermineEncodedStringSize(r.ContinueAfter)
	}

	buffer := make([]byte, bufferSize)
	bufPos := 0

	// objectClass (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(2+classSize), buffer, bufPos)
	bufPos = ber.EncodeUInt32WithTL(ber.ContextSpecific0Primitive, uint32(r.ObjectClass), buffer, bufPos)

	// objectScope (Context-specific 1, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific1Constructed, uint32(scopeContentSize), buffer, bufPos)
	if r.DomainID != "" {
		// domainSpecific (Context-specific 1): Identifier
		bufPos = ber.EncodeStringWithTag(ber.ContextSpecific1Primitive, r.DomainID, buffer, bufPos)
	} else {
		// vmdSpecific (Context-specific 0): NULL
		bufPos = ber.EncodeTL(ber.ContextSpecific0Primitive, 0, buffer, bufPos)
	}

	// continueAfter (Context-specific 2) - опционально
	if r.ContinueAfter != "" {
		bufPos = ber.EncodeStringWithTag(ber.ContextSpecific2Primitive, r.ContinueAfter, buffer, bufPos)
	}

	return buffer[:bufPos]
}

// NewGetNameListRequest создаёт GetNameListRequest для списка переменных домена
func NewGetNameListRequest(invokeID uint32, domainID string) *GetNameListRequest {
	return &GetNameListRequest{
		InvokeID:    invokeID,
		ObjectClass: ObjectClassNamedVariable,
		DomainID:    domainID,
	}
}

// GetNameListResponse представляет MMS GetNameList Response
// Структура согласно ISO/IEC 9506-2:
//
//	GetNameList-Response ::= SEQUENCE {
//	  listOfIdentifier [0] IMPLICIT SEQUENCE OF Identifier,
//	  moreFollows      [1] IMPLICIT BOOLEAN DEFAULT TRUE
//	}
type GetNameListResponse struct {
	InvokeID         uint32
	ListOfIdentifier []string
	MoreFollows      bool
}

// ParseGetNameListResponse парсит MMS GetNameList Response PDU
// Структура из wireshark:
// a1 2b - confirmed-ResponsePDU (Context-specific 1, Constructed)
//
//	02 01 02 - invokeID
//	a1 26 - confirmedServiceResponse: getNameList (Context-specific 1, Constructed)
//	   a0 21 - listOfIdentifier (Context-specific 0, Constructed)
//	      1a 0f - Identifier (VisibleString): "LLN0$BR$brcbA01"
//	      1a 0e - Identifier (VisibleString): "LLN0$RP$urcbA01"
//	   81 01 00 - moreFollows: false
func ParseGetNameListResponse(buffer []byte) (GetNameListResponse, error) {
	response := GetNameListResponse{MoreFollows: false}
	if len(buffer) == 0 {
		return response, errors.New("empty buffer")
	}

	bufPos := 0
	maxBufPos := len(buffer)

	if buffer[0] == 0xA1 {
		newPos, length, err := ber.DecodeLength(buffer, 1, maxBufPos)
		if err != nil {
			return response, fmt.Errorf("failed to decode length: %w", err)
		}
		bufPos = newPos

		if bufPos+length > maxBufPos {
			return response, errors.New("invalid length: exceeds buffer size")
		}
		maxBufPos = bufPos + length
	}

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return response, fmt.Errorf("failed to decode tag 0x%02x: %w", tag, err)
		}

		switch tag {
		case 0x02: // invokeID (INTEGER)
			response.InvokeID = ber.DecodeUint32(buffer, length, newPos)

		case 0xA1: // confirmedServiceResponse: getNameList (Context-specific 1, Constructed)
			if err := response.parseGetNameListContent(buffer, newPos, newPos+length); err != nil {
				return response, fmt.Errorf("failed to parse getNameList response: %w", err)
			}

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	return response, nil
}

// parseGetNameListContent парсит содержимое GetNameList-Response
func (r *GetNameListResponse) parseGetNameListContent(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}

		switch tag {
		case 0xA0: // listOfIdentifier (Context-specific 0, Constructed)
			if err := r.parseListOfIdentifier(buffer, newPos, newPos+length); err != nil {
				return err
			}

		case 0x81: // moreFollows (Context-specific 1, BOOLEAN)
			if length >= 1 {
				r.MoreFollows = ber.DecodeBoolean(buffer, newPos)
			}

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	return nil
}

// parseListOfIdentifier парсит SEQUENCE OF Identifier
func (r *GetNameListResponse) parseListOfIdentifier(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}

		if tag != byte(ber.VisibleString) {
			return fmt.Errorf("unexpected identifier tag: 0x%02x", tag)
		}

		identifier, err := ber.DecodeString(buffer, length, newPos, maxBufPos)
		if err != nil {
			return err
		}
		r.ListOfIdentifier = append(r.ListOfIdentifier, identifier)

		bufPos = newPos + length
	}

	return nil
}
