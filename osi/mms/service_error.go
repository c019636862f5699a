package mms

import (
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/ber"
)

// ErrorClass определяет класс ошибки MMS ServiceError
// Значения согласно ISO/IEC 9506-2 (теги CHOICE errorClass)
type ErrorClass uint8

const (
	ErrorClassVmdState             ErrorClass = 0
	ErrorClassApplicationReference ErrorClass = 1
	ErrorClassDefinition           ErrorClass = 2
	ErrorClassResource             ErrorClass = 3
	ErrorClassService              ErrorClass = 4
	ErrorClassServicePreempt       ErrorClass = 5
	ErrorClassTimeResolution       ErrorClass = 6
	ErrorClassAccess               ErrorClass = 7
	ErrorClassInitiate             ErrorClass = 8
	ErrorClassConclude             ErrorClass = 9
	ErrorClassCancel               ErrorClass = 10
	ErrorClassFile                 ErrorClass = 11
	ErrorClassOthers               ErrorClass = 12
)

// String возвращает строковое представление класса ошибки
func (c ErrorClass) String() string {
	switch c {
	case ErrorClassVmdState:
		return "vmd-state"
	case ErrorClassApplicationReference:
		return "application-reference"
	case ErrorClassDefinition:
		return "definition"
	case ErrorClassResource:
		return "resource"
	case ErrorClassService:
		return "service"
	case ErrorClassServicePreempt:
		return "service-preempt"
	case ErrorClassTimeResolution:
		return "time-resolution"
	case ErrorClassAccess:
		return "access"
	case ErrorClassInitiate:
		return "initiate"
	case ErrorClassConclude:
		return "conclude"
	case ErrorClassCancel:
		return "cancel"
	case ErrorClassFile:
		return "file"
	case ErrorClassOthers:
		return "others"
	default:
		return fmt.Sprintf("unknown-class-%d", c)
	}
}

// ServiceError представляет MMS confirmed-ErrorPDU
// Структура согласно ISO/IEC 9506-2:
//
//	Confirmed-ErrorPDU ::= SEQUENCE {
//	  invokeID     [0] IMPLICIT Unsigned32,
//	  modifierPosition [1] IMPLICIT Unsigned32 OPTIONAL,
//	  serviceError [2] IMPLICIT ServiceError
//	}
//
//	ServiceError ::= SEQUENCE {
//	  errorClass [0] CHOICE { vmd-state [0], ..., others [12] },
//	  additionalCode [1] IMPLICIT INTEGER OPTIONAL,
//	  additionalDescription [2] IMPLICIT VisibleString OPTIONAL
//	}
type ServiceError struct {
	InvokeID              uint32
	ErrorClass            ErrorClass
	ErrorCode             uint32
	AdditionalDescription string
}

// Error реализует интерфейс error
func (e *ServiceError) Error() string {
	if e.AdditionalDescription != "" {
		return fmt.Sprintf("mms service error: class %s, code %d (%s)", e.ErrorClass, e.ErrorCode, e.AdditionalDescription)
	}
	return fmt.Sprintf("mms service error: class %s, code %d", e.ErrorClass, e.ErrorCode)
}

// ParseServiceError парсит MMS confirmed-ErrorPDU
// Структура из wireshark:
// a2 0c - confirmed-ErrorPDU (Context-specific 2, Constructed)
//
//	80 01 04 - invokeID: 4
//	a2 07 - serviceError (Context-specific 2, Constructed)
//	   a0 03 - errorClass (Context-specific 0, Constructed)
//	      81 01 0a - application-reference: other (10)
func ParseServiceError(buffer []byte) (*ServiceError, error) {
	if len(buffer) == 0 {
		return nil, errors.New("empty buffer")
	}

	serviceError := &ServiceError{}

	bufPos := 0
	maxBufPos := len(buffer)

	if buffer[0] == 0xA2 {
		newPos, length, err := ber.DecodeLength(buffer, 1, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode length: %w", err)
		}
		bufPos = newPos

		if bufPos+length > maxBufPos {
			return nil, errors.New("invalid length: exceeds buffer size")
		}
		maxBufPos = bufPos + length
	}

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tag 0x%02x: %w", tag, err)
		}

		switch tag {
		case 0x80: // invokeID (Context-specific 0)
			serviceError.InvokeID = ber.DecodeUint32(buffer, length, newPos)

		case 0xA2: // serviceError (Context-specific 2, Constructed)
			if err := serviceError.parseServiceErrorContent(buffer, newPos, newPos+length); err != nil {
				return nil, fmt.Errorf("failed to parse serviceError: %w", err)
			}

		default:
			// Пропускаем неизвестные теги (modifierPosition и прочие)
		}

		bufPos = newPos + length
	}

	return serviceError, nil
}

// parseServiceErrorContent парсит содержимое ServiceError
func (e *ServiceError) parseServiceErrorContent(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}

		switch tag {
		case 0xA0: // errorClass (Context-specific 0, Constructed)
			// Внутри CHOICE: тег выбора задает класс, значение - код ошибки
			classPos, classTag, classLength, err := ber.DecodeTLV(buffer, newPos, newPos+length)
			if err != nil {
				return err
			}
			e.ErrorClass = ErrorClass(classTag & 0x1f)
			e.ErrorCode = ber.DecodeUint32(buffer, classLength, classPos)

		case 0x82: // additionalDescription (Context-specific 2, VisibleString)
			description, err := ber.DecodeString(buffer, length, newPos, maxBufPos)
			if err != nil {
				return err
			}
			e.AdditionalDescription = description

		default:
			// additionalCode и serviceSpecificInformation не используются
		}

		bufPos = newPos + length
	}

	return nil
}
