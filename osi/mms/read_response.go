package mms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slonegd/mmsreport/ber"
	"github.com/slonegd/mmsreport/osi/mms/variant"
)

// ReadResponse представляет MMS Read Response PDU
// Структура согласно ISO/IEC 9506-2:
//
//	confirmed-ResponsePDU ::= SEQUENCE {
//	  invokeID            [0] IMPLICIT Unsigned32,
//	  confirmedServiceResponse [1] CHOICE {
//	    read [4] Read-Response
//	  }
//	}
//
//	Read-Response ::= SEQUENCE {
//	  variableAccessSpecification [0] VariableAccessSpecification OPTIONAL,
//	  listOfAccessResult [1] SEQUENCE OF AccessResult
//	}
//
//	AccessResult ::= CHOICE {
//	  failure [0] DataAccessError,
//	  success Data
//	}
//
// Варианты Data и их теги описаны в data.go
type ReadResponse struct {
	InvokeID           uint32
	ListOfAccessResult []AccessResult
}

// AccessResult представляет результат доступа к переменной
type AccessResult struct {
	Success bool
	Value   *variant.Variant // Типизированное значение MMS Data
	Error   *DataAccessError
}

// DataAccessErrorCode представляет код ошибки доступа к данным MMS
// Значения согласно ISO/IEC 9506-2 (MMS) и ASN.1 определению DataAccessError
type DataAccessErrorCode uint32

const (
	// ObjectInvalidated объект был инвалидирован
	ObjectInvalidated DataAccessErrorCode = 0
	// HardwareFault ошибка оборудования
	HardwareFault DataAccessErrorCode = 1
	// TemporarilyUnavailable объект временно недоступен
	TemporarilyUnavailable DataAccessErrorCode = 2
	// ObjectAccessDenied доступ к объекту запрещен
	ObjectAccessDenied DataAccessErrorCode = 3
	// ObjectUndefined объект не определен
	ObjectUndefined DataAccessErrorCode = 4
	// InvalidAddress неверный адрес
	InvalidAddress DataAccessErrorCode = 5
	// TypeUnsupported тип не поддерживается
	TypeUnsupported DataAccessErrorCode = 6
	// TypeInconsistent тип не согласован
	TypeInconsistent DataAccessErrorCode = 7
	// ObjectAttributeInconsistent атрибуты объекта не согласованы
	ObjectAttributeInconsistent DataAccessErrorCode = 8
	// ObjectAccessUnsupported доступ к объекту не поддерживается
	ObjectAccessUnsupported DataAccessErrorCode = 9
	// ObjectNonExistent объект не существует
	ObjectNonExistent DataAccessErrorCode = 10
	// ObjectValueInvalid значение объекта неверно
	ObjectValueInvalid DataAccessErrorCode = 11
)

// String возвращает строковое представление кода ошибки
func (c DataAccessErrorCode) String() string {
	switch c {
	case ObjectInvalidated:
		return "object-invalidated"
	case HardwareFault:
		return "hardware-fault"
	case TemporarilyUnavailable:
		return "temporarily-unavailable"
	case ObjectAccessDenied:
		return "object-access-denied"
	case ObjectUndefined:
		return "object-undefined"
	case InvalidAddress:
		return "invalid-address"
	case TypeUnsupported:
		return "type-unsupported"
	case TypeInconsistent:
		return "type-inconsistent"
	case ObjectAttributeInconsistent:
		return "object-attribute-inconsistent"
	case ObjectAccessUnsupported:
		return "object-access-unsupported"
	case ObjectNonExistent:
		return "object-non-existent"
	case ObjectValueInvalid:
		return "object-value-invalid"
	default:
		return fmt.Sprintf("unknown-error-code-%d", c)
	}
}

// DataAccessError представляет ошибку доступа к данным
type DataAccessError struct {
	ErrorCode DataAccessErrorCode
}

// String возвращает строковое представление ошибки доступа к данным
func (e *DataAccessError) String() string {
	if e == nil {
		return "<nil>"
	}
	return e.ErrorCode.String()
}

// Error позволяет возвращать ошибку доступа как error и доставать её
// через errors.As для различения отказа IED от транспортных проблем
func (e *DataAccessError) Error() string {
	return e.String()
}

// ParseReadResponse парсит MMS Read Response PDU из BER-кодированного буфера
// Структура из wireshark:
// a0 10 - confirmed-ResponsePDU (Context-specific 0, Constructed, длина 16 байт)
//
//	02 01 01 - invokeID (INTEGER, длина 1, значение 1)
//	a4 09 - confirmedServiceResponse: read (Context-specific 4, Constructed, длина 9 байт)
//	   a1 07 - read (Context-specific 1, Constructed, длина 7 байт)
//	      87 05 - listOfAccessResult: success (Context-specific 7, длина 5 байт)
//	         08 3d a8 83 7c - floating-point: формат 0x08 (IEEE 754 single) + 4 байта значения
//
// После установления соединения данные могут приходить без внешнего тега confirmed-ResponsePDU:
// a1 0e - read (Context-specific 1, Constructed, длина 14 байт)
//
//	02 01 01 - invokeID
//	a4 09 - confirmedServiceResponse: read
//	   a1 07 - read
//	      87 05 - success
func ParseReadResponse(buffer []byte) (ReadResponse, error) {
	var response ReadResponse
	if len(buffer) == 0 {
		return response, errors.New("empty buffer")
	}

	// После установления соединения данные могут приходить в разных форматах:
	// 1. Стандартный: a0 (confirmed-ResponsePDU) + length + invokeID + confirmedServiceResponse
	// 2. Без обертки: a1 (read) + length + invokeID + confirmedServiceResponse
	// 3. Прямое содержимое: invokeID + confirmedServiceResponse (без внешних тегов)
	bufPos := 0
	maxBufPos := len(buffer)

	if buffer[0] == 0xA0 || buffer[0] == 0xA1 {
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

	// Парсим поля confirmed-ResponsePDU
	for bufPos < maxBufPos {
		tag := buffer[bufPos]
		bufPos++

		newPos, length, err := ber.DecodeLength(buffer, bufPos, maxBufPos)
		if err != nil {
			return response, fmt.Errorf("failed to decode length for tag 0x%02x: %w", tag, err)
		}
		bufPos = newPos

		if bufPos+length > maxBufPos {
			return response, fmt.Errorf("invalid length for tag 0x%02x: exceeds buffer size", tag)
		}

		switch tag {
		case 0x02: // invokeID (INTEGER)
			response.InvokeID = ber.DecodeUint32(buffer, length, bufPos)

		case 0xA4: // confirmedServiceResponse: read (Context-specific 4, Constructed)
			results, err := parseReadServiceResponse(buffer, bufPos, bufPos+length)
			if err != nil {
				return response, fmt.Errorf("failed to parse read service response: %w", err)
			}
			response.ListOfAccessResult = results

		default:
			// Пропускаем неизвестные теги
		}

		bufPos += length
	}

	return response, nil
}

// parseReadServiceResponse парсит read service response:
// a1 (read) + length + listOfAccessResult
func parseReadServiceResponse(buffer []byte, bufPos, maxBufPos int) ([]AccessResult, error) {
	if bufPos >= maxBufPos {
		return nil, errors.New("empty buffer")
	}

	// Проверяем, что это read (tag 0xA1)
	if buffer[bufPos] != 0xA1 {
		return nil, fmt.Errorf("invalid tag: expected 0xA1 (read), got 0x%02x", buffer[bufPos])
	}

	newPos, length, err := ber.DecodeLength(buffer, bufPos+1, maxBufPos)
	if err != nil {
		return nil, fmt.Errorf("failed to decode length: %w", err)
	}
	bufPos = newPos

	if bufPos+length > maxBufPos {
		return nil, errors.New("invalid length: exceeds buffer size")
	}

	return decodeAccessResults(buffer, bufPos, bufPos+length)
}

// decodeAccessResults декодирует последовательность AccessResult.
// Используется и для read response, и для information report.
// У некоторых устройств listOfAccessResult дополнительно обернут в SEQUENCE (0x30) -
// такие обертки разворачиваются
func decodeAccessResults(buffer []byte, bufPos, maxBufPos int) ([]AccessResult, error) {
	var results []AccessResult

	for bufPos < maxBufPos {
		tag := buffer[bufPos]

		switch tag {
		case 0x80: // failure (Context-specific 0) - DataAccessError
			newPos, _, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
			if err != nil {
				return nil, fmt.Errorf("failed to decode failure: %w", err)
			}
			errorCode := DataAccessErrorCode(ber.DecodeUint32(buffer, length, newPos))
			results = append(results, AccessResult{
				Success: false,
				Error: &DataAccessError{
					ErrorCode: errorCode,
				},
			})
			bufPos = newPos + length

		case 0x30: // SEQUENCE обертка listOfAccessResult
			newPos, _, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
			if err != nil {
				return nil, fmt.Errorf("failed to decode sequence: %w", err)
			}
			seqResults, err := decodeAccessResults(buffer, newPos, newPos+length)
			if err != nil {
				return nil, err
			}
			results = append(results, seqResults...)
			bufPos = newPos + length

		default: // success - значение Data
			value, newPos, err := DecodeData(buffer, bufPos, maxBufPos)
			if err != nil {
				return nil, err
			}
			results = append(results, AccessResult{
				Success: true,
				Value:   value,
			})
			bufPos = newPos
		}
	}

	return results, nil
}

// String возвращает строковое представление ReadResponse
func (r *ReadResponse) String() string {
	var b strings.Builder
	b.WriteString("ReadResponse{InvokeID: ")
	fmt.Fprintf(&b, "%d", r.InvokeID)
	b.WriteString(", Results: [")

	for i, result := range r.ListOfAccessResult {
		if i > 0 {
			b.WriteString(", ")
		}
		if result.Success {
			b.WriteString(result.Value.String())
		} else {
			fmt.Fprintf(&b, "Error(%s)", result.Error)
		}
	}

	b.WriteString("]}")
	return b.String()
}
