package mms

import (
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/ber"
)

// IdentifyRequest представляет MMS Identify Request.
// Тело запроса пустое, используется как keep-alive
// Структура согласно ISO/IEC 9506-2:
//
//	confirmedServiceRequest CHOICE {
//	  identify [2] IMPLICIT Identify-Request  -- NULL
//	}
type IdentifyRequest struct {
	InvokeID uint32
}

// Bytes кодирует IdentifyRequest в BER-кодированный пакет MMS confirmed-RequestPDU
// Структура пакета (из wireshark):
// a0 05 - confirmed-RequestPDU (Context-specific 0, Constructed)
//
//	02 01 2c - invokeID (INTEGER, длина 1, значение 44)
//	82 00 - confirmedServiceRequest: identify (Context-specific 2, Primitive, пустой)
func (r *IdentifyRequest) Bytes() []byte {
	buffer := make([]byte, 16)
	bufPos := 0

	// invokeID (INTEGER)
	tempBuf := make([]byte, 8)
	tempPos := ber.EncodeUInt32(r.InvokeID, tempBuf, 0)
	intValue := tempBuf[0:tempPos]

	innerLength := 2 + len(intValue) + 2 // TL+значение invokeID + пустой identify

	// confirmed-RequestPDU (Context-specific 0, Constructed)
	bufPos = ber.EncodeTL(ber.ContextSpecific0Constructed, uint32(innerLength), buffer, bufPos)

	bufPos = ber.EncodeTL(ber.Integer, uint32(len(intValue)), buffer, bufPos)
	copy(buffer[bufPos:], intValue)
	bufPos += len(intValue)

	// confirmedServiceRequest: identify (Context-specific 2, Primitive, длина 0)
	bufPos = ber.EncodeTL(ber.ContextSpecific2Primitive, 0, buffer, bufPos)

	return buffer[:bufPos]
}

// NewIdentifyRequest создаёт новый IdentifyRequest
func NewIdentifyRequest(invokeID uint32) *IdentifyRequest {
	return &IdentifyRequest{InvokeID: invokeID}
}

// IdentifyResponse представляет MMS Identify Response
// Структура согласно ISO/IEC 9506-2:
//
//	Identify-Response ::= SEQUENCE {
//	  vendorName   [0] IMPLICIT MMSString,
//	  modelName    [1] IMPLICIT MMSString,
//	  revision     [2] IMPLICIT MMSString
//	}
type IdentifyResponse struct {
	InvokeID   uint32
	VendorName string
	ModelName  string
	Revision   string
}

// ParseIdentifyResponse парсит MMS Identify Response PDU
// Структура из wireshark:
// a1 24 - confirmed-ResponsePDU (Context-specific 1, Constructed)
//
//	02 01 2c - invokeID
//	a2 1f - confirmedServiceResponse: identify (Context-specific 2, Constructed)
//	   80 08 - vendorName (VisibleString): "Vendor A"
//	   81 09 - modelName (VisibleString): "Model XYZ"
//	   82 05 - revision (VisibleString): "1.0.3"
func ParseIdentifyResponse(buffer []byte) (IdentifyResponse, error) {
	var response IdentifyResponse
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

		case 0xA2: // confirmedServiceResponse: identify (Context-specific 2, Constructed)
			if err := response.parseIdentifyContent(buffer, newPos, newPos+length); err != nil {
				return response, fmt.Errorf("failed to parse identify response: %w", err)
			}

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	return response, nil
}

// parseIdentifyContent парсит содержимое Identify-Response
func (r *IdentifyResponse) parseIdentifyContent(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}

		switch tag {
		case 0x80: // vendorName (Context-specific 0)
			r.VendorName, err = ber.DecodeString(buffer, length, newPos, maxBufPos)

		case 0x81: // modelName (Context-specific 1)
			r.ModelName, err = ber.DecodeString(buffer, length, newPos, maxBufPos)

		case 0x82: // revision (Context-specific 2)
			r.Revision, err = ber.DecodeString(buffer, length, newPos, maxBufPos)

		default:
			// Пропускаем неизвестные теги
		}
		if err != nil {
			return err
		}

		bufPos = newPos + length
	}

	return nil
}

// String возвращает строковое представление IdentifyResponse
func (r *IdentifyResponse) String() string {
	return fmt.Sprintf("IdentifyResponse{InvokeID: %d, Vendor: %q, Model: %q, Revision: %q}",
		r.InvokeID, r.VendorName, r.ModelName, r.Revision)
}
