package mms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slonegd/mmsreport/ber"
)

// WriteResponse представляет MMS Write Response PDU
// Структура согласно ISO/IEC 9506-2:
//
//	Write-Response ::= SEQUENCE OF CHOICE {
//	  failure [0] IMPLICIT DataAccessError,
//	  success [1] IMPLICIT NULL
//	}
type WriteResponse struct {
	InvokeID uint32
	Results  []WriteResult
}

// WriteResult представляет результат записи одной переменной
type WriteResult struct {
	Success bool
	Error   *DataAccessError
}

// ParseWriteResponse парсит MMS Write Response PDU из BER-кодированного буфера
// Структура из wireshark:
// a1 07 - confirmed-ResponsePDU (Context-specific 1, Constructed)
//
//	02 01 04 - invokeID (INTEGER, длина 1, значение 4)
//	a5 02 - confirmedServiceResponse: write (Context-specific 5, Constructed)
//	   81 00 - success (NULL)
//
// Вариант с отказом:
//
//	a5 03
//	   80 01 03 - failure: DataAccessError object-access-denied
func ParseWriteResponse(buffer []byte) (WriteResponse, error) {
	var response WriteResponse
	if len(buffer) == 0 {
		return response, errors.New("empty buffer")
	}

	bufPos := 0
	maxBufPos := len(buffer)

	// Внешний тег confirmed-ResponsePDU может отсутствовать (как у read)
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

		case 0xA5: // confirmedServiceResponse: write (Context-specific 5, Constructed)
			results, err := parseWriteResults(buffer, bufPos, bufPos+length)
			if err != nil {
				return response, fmt.Errorf("failed to parse write results: %w", err)
			}
			response.Results = results

		default:
			// Пропускаем неизвестные теги
		}

		bufPos += length
	}

	return response, nil
}

// parseWriteResults парсит SEQUENCE OF результатов записи
func parseWriteResults(buffer []byte, bufPos, maxBufPos int) ([]WriteResult, error) {
	var results []WriteResult

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode write result: %w", err)
		}

		switch tag {
		case 0x80: // failure (Context-specific 0) - DataAccessError
			errorCode := DataAccessErrorCode(ber.DecodeUint32(buffer, length, newPos))
			results = append(results, WriteResult{
				Success: false,
				Error: &DataAccessError{
					ErrorCode: errorCode,
				},
			})

		case 0x81: // success (Context-specific 1, NULL)
			results = append(results, WriteResult{Success: true})

		default:
			return nil, fmt.Errorf("unexpected write result tag: 0x%02x", tag)
		}

		bufPos = newPos + length
	}

	return results, nil
}

// Failed возвращает первую ошибку записи или nil, если все записи успешны.
// Ответ без единого результата тоже считается отказом
func (r *WriteResponse) Failed() *DataAccessError {
	if len(r.Results) == 0 {
		return &DataAccessError{ErrorCode: ObjectUndefined}
	}
	for _, result := range r.Results {
		if !result.Success {
			return result.Error
		}
	}
	return nil
}

// String возвращает строковое представление WriteResponse
func (r *WriteResponse) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "WriteResponse{InvokeID: %d, Results: [", r.InvokeID)

	for i, result := range r.Results {
		if i > 0 {
			b.WriteString(", ")
		}
		if result.Success {
			b.WriteString("success")
		} else {
			fmt.Fprintf(&b, "failure(%s)", result.Error)
		}
	}

	b.WriteString("]}")
	return b.String()
}
