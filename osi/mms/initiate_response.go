package mms

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slonegd/mmsreport/ber"
)

// InitiateResponse содержит параметры ассоциации, согласованные сервером
// в initiate-ResponsePDU. Опциональные поля стандарта - указатели,
// nil означает, что сервер параметр не прислал
type InitiateResponse struct {
	// LocalDetailCalled - максимальный размер MMS PDU, который готов принять сервер
	LocalDetailCalled *uint32
	// NegotiatedMaxServOutstandingCalling - максимум одновременных запросов от клиента
	NegotiatedMaxServOutstandingCalling uint32
	// NegotiatedMaxServOutstandingCalled - максимум одновременных запросов от сервера
	NegotiatedMaxServOutstandingCalled uint32
	// NegotiatedDataStructureNestingLevel - максимальная вложенность структур данных
	NegotiatedDataStructureNestingLevel *uint32
	// NegotiatedVersionNumber - версия протокола MMS
	NegotiatedVersionNumber uint32
	// NegotiatedParameterCBB - поддерживаемые параметры (список установленных битов)
	NegotiatedParameterCBB []ParameterCBBBit
	// ServicesSupportedCalled - поддерживаемые услуги (список установленных битов)
	ServicesSupportedCalled []ServiceSupportedBit
}

// String реализует fmt.Stringer, битовые маски выводит списком имён битов
func (r *InitiateResponse) String() string {
	var b strings.Builder
	b.WriteString("InitiateResponse{")
	fmt.Fprintf(&b, "LocalDetailCalled:%s", optUint32(r.LocalDetailCalled))
	fmt.Fprintf(&b, " NegotiatedMaxServOutstandingCalling:%d", r.NegotiatedMaxServOutstandingCalling)
	fmt.Fprintf(&b, " NegotiatedMaxServOutstandingCalled:%d", r.NegotiatedMaxServOutstandingCalled)
	fmt.Fprintf(&b, " NegotiatedDataStructureNestingLevel:%s", optUint32(r.NegotiatedDataStructureNestingLevel))
	fmt.Fprintf(&b, " NegotiatedVersionNumber:%d", r.NegotiatedVersionNumber)
	fmt.Fprintf(&b, " NegotiatedParameterCBB:[%s]", bitNames(r.NegotiatedParameterCBB))
	fmt.Fprintf(&b, " ServicesSupportedCalled:[%s]", bitNames(r.ServicesSupportedCalled))
	b.WriteString("}")
	return b.String()
}

// optUint32 выводит опциональный параметр, <nil> если он не пришёл
func optUint32(v *uint32) string {
	if v == nil {
		return "<nil>"
	}
	return strconv.FormatUint(uint64(*v), 10)
}

// bitNames выводит имена битов через пробел
func bitNames[T fmt.Stringer](bits []T) string {
	names := make([]string, len(bits))
	for i, bit := range bits {
		names[i] = bit.String()
	}
	return strings.Join(names, " ")
}

// ParseInitiateResponse парсит BER-кодированный initiate-ResponsePDU.
// Структура пакета (из wireshark, ответ реального IED):
// a9 26 - initiate-ResponsePDU
//
//	80 03 00 fd e8 - localDetailCalled: 65000
//	81 01 05 - negotiatedMaxServOutstandingCalling: 5
//	82 01 05 - negotiatedMaxServOutstandingCalled: 5
//	83 01 0a - negotiatedDataStructureNestingLevel: 10
//	a4 16 - mmsInitResponseDetail
//	   80 01 01 - negotiatedVersionNumber: 1
//	   81 03 05 f1 00 - negotiatedParameterCBB
//	   82 0c 03 ee 1c 00 00 00 02 00 00 40 ed 18 - servicesSupportedCalled
//
// localDetailCalled и negotiatedDataStructureNestingLevel опциональны
func ParseInitiateResponse(buffer []byte) (*InitiateResponse, error) {
	if len(buffer) == 0 {
		return nil, errors.New("empty buffer")
	}
	if PduType(buffer[0]) != PduInitiateResponse {
		return nil, fmt.Errorf("invalid tag: expected 0xa9, got 0x%02x", buffer[0])
	}

	bufPos, length, err := ber.DecodeLength(buffer, 1, len(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to decode length: %w", err)
	}
	maxBufPos := bufPos + length

	response := &InitiateResponse{}
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode element: %w", err)
		}

		switch tag {
		case 0x80: // localDetailCalled (опционально)
			value := ber.DecodeUint32(buffer, length, newPos)
			response.LocalDetailCalled = &value

		case 0x81: // negotiatedMaxServOutstandingCalling
			response.NegotiatedMaxServOutstandingCalling = ber.DecodeUint32(buffer, length, newPos)

		case 0x82: // negotiatedMaxServOutstandingCalled
			response.NegotiatedMaxServOutstandingCalled = ber.DecodeUint32(buffer, length, newPos)

		case 0x83: // negotiatedDataStructureNestingLevel (опционально)
			value := ber.DecodeUint32(buffer, length, newPos)
			response.NegotiatedDataStructureNestingLevel = &value

		case 0xA4: // mmsInitResponseDetail
			if err := response.parseInitResponseDetail(buffer, newPos, newPos+length); err != nil {
				return nil, err
			}

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	return response, nil
}

// parseInitResponseDetail парсит содержимое mmsInitResponseDetail:
// версия протокола и две битовые маски
func (r *InitiateResponse) parseInitResponseDetail(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return fmt.Errorf("failed to decode detail element: %w", err)
		}

		switch tag {
		case 0x80: // negotiatedVersionNumber
			r.NegotiatedVersionNumber = ber.DecodeUint32(buffer, length, newPos)

		case 0x81: // negotiatedParameterCBB (BIT STRING)
			offsets, err := decodeBitStringOffsets(buffer, newPos, length, ProposedParameterCBBBitmaskSize)
			if err != nil {
				return fmt.Errorf("invalid negotiatedParameterCBB: %w", err)
			}
			r.NegotiatedParameterCBB = make([]ParameterCBBBit, len(offsets))
			for i, offset := range offsets {
				r.NegotiatedParameterCBB[i] = ParameterCBBBit(offset)
			}

		case 0x82: // servicesSupportedCalled (BIT STRING)
			offsets, err := decodeBitStringOffsets(buffer, newPos, length, ServicesSupportedCallingBitmaskSize)
			if err != nil {
				return fmt.Errorf("invalid servicesSupportedCalled: %w", err)
			}
			r.ServicesSupportedCalled = make([]ServiceSupportedBit, len(offsets))
			for i, offset := range offsets {
				r.ServicesSupportedCalled[i] = ServiceSupportedBit(offset)
			}

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}
	return nil
}

// decodeBitStringOffsets декодирует содержимое BIT STRING в номера
// установленных бит. Первый байт содержимого - число неиспользуемых бит
// в последнем байте, sizeBytes ограничивает маску размером по стандарту
func decodeBitStringOffsets(buffer []byte, bufPos, length, sizeBytes int) ([]uint, error) {
	if length < 1 {
		return nil, errors.New("missing padding byte")
	}
	paddingBits := buffer[bufPos]
	bitmask := buffer[bufPos+1 : bufPos+length]
	return ber.DecodeBitmaskFromBytes(bitmask, paddingBits, sizeBytes), nil
}
