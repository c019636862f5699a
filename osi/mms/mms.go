package mms

import (
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/ber"
)

// PduType определяет тип MMS PDU по внешнему тегу
// Значения согласно ISO/IEC 9506-2:
//
//	MmsPdu ::= CHOICE {
//	  confirmed-RequestPDU   [0] IMPLICIT Confirmed-RequestPDU,
//	  confirmed-ResponsePDU  [1] IMPLICIT Confirmed-ResponsePDU,
//	  confirmed-ErrorPDU     [2] IMPLICIT Confirmed-ErrorPDU,
//	  unconfirmed-PDU        [3] IMPLICIT Unconfirmed-PDU,
//	  rejectPDU              [4] IMPLICIT RejectPDU,
//	  initiate-RequestPDU    [8] IMPLICIT Initiate-RequestPDU,
//	  initiate-ResponsePDU   [9] IMPLICIT Initiate-ResponsePDU,
//	  initiate-ErrorPDU      [10] IMPLICIT Initiate-ErrorPDU,
//	  conclude-RequestPDU    [11] IMPLICIT Conclude-RequestPDU
//	}
type PduType byte

const (
	// PduConfirmedRequest confirmed-RequestPDU (запрос с подтверждением)
	PduConfirmedRequest PduType = 0xA0
	// PduConfirmedResponse confirmed-ResponsePDU (ответ на запрос)
	PduConfirmedResponse PduType = 0xA1
	// PduConfirmedError confirmed-ErrorPDU (ошибка выполнения запроса)
	PduConfirmedError PduType = 0xA2
	// PduUnconfirmed unconfirmed-PDU (informationReport приходит в нем)
	PduUnconfirmed PduType = 0xA3
	// PduReject rejectPDU (запрос отвергнут до выполнения)
	PduReject PduType = 0xA4
	// PduInitiateRequest initiate-RequestPDU
	PduInitiateRequest PduType = 0xA8
	// PduInitiateResponse initiate-ResponsePDU
	PduInitiateResponse PduType = 0xA9
	// PduInitiateError initiate-ErrorPDU
	PduInitiateError PduType = 0xAA
	// PduConcludeRequest conclude-RequestPDU (примитивный тег [11])
	PduConcludeRequest PduType = 0x8B
)

// String возвращает строковое представление типа PDU
func (t PduType) String() string {
	switch t {
	case PduConfirmedRequest:
		return "confirmed-RequestPDU"
	case PduConfirmedResponse:
		return "confirmed-ResponsePDU"
	case PduConfirmedError:
		return "confirmed-ErrorPDU"
	case PduUnconfirmed:
		return "unconfirmed-PDU"
	case PduReject:
		return "rejectPDU"
	case PduInitiateRequest:
		return "initiate-RequestPDU"
	case PduInitiateResponse:
		return "initiate-ResponsePDU"
	case PduInitiateError:
		return "initiate-ErrorPDU"
	case PduConcludeRequest:
		return "conclude-RequestPDU"
	default:
		return fmt.Sprintf("unknown-pdu-0x%02x", byte(t))
	}
}

// DecodePduType определяет тип MMS PDU по первому байту буфера.
// Дальнейший разбор выполняют Parse-функции соответствующего типа
func DecodePduType(buffer []byte) (PduType, error) {
	if len(buffer) == 0 {
		return 0, errors.New("empty buffer")
	}

	pduType := PduType(buffer[0])
	switch pduType {
	case PduConfirmedRequest, PduConfirmedResponse, PduConfirmedError,
		PduUnconfirmed, PduReject,
		PduInitiateRequest, PduInitiateResponse, PduInitiateError,
		PduConcludeRequest:
		return pduType, nil
	default:
		return pduType, fmt.Errorf("unknown MMS PDU tag: 0x%02x", buffer[0])
	}
}

// DecodeInvokeID извлекает invokeID из confirmed PDU, не разбирая сервисную часть.
// Нужен для сопоставления ответа с ожидающим запросом до полного парсинга.
// В confirmed-Request/ResponsePDU invokeID кодируется универсальным INTEGER (0x02),
// в confirmed-ErrorPDU и rejectPDU - контекстным тегом [0] (0x80)
func DecodeInvokeID(buffer []byte) (uint32, error) {
	if len(buffer) == 0 {
		return 0, errors.New("empty buffer")
	}

	// Пропускаем внешний тег PDU и его длину
	bufPos, _, length, err := ber.DecodeTLV(buffer, 0, len(buffer))
	if err != nil {
		return 0, fmt.Errorf("failed to decode PDU header: %w", err)
	}
	maxBufPos := bufPos + length

	if bufPos >= maxBufPos {
		return 0, errors.New("empty PDU content")
	}

	tag := buffer[bufPos]
	if tag != 0x02 && tag != 0x80 {
		return 0, fmt.Errorf("unexpected invokeID tag: 0x%02x", tag)
	}

	newPos, _, idLength, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
	if err != nil {
		return 0, fmt.Errorf("failed to decode invokeID: %w", err)
	}

	return ber.DecodeUint32(buffer, idLength, newPos), nil
}
