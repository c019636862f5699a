// Package presentation реализует уровень представления ISO 8823 в объёме,
// необходимом для MMS: CP-type/CPA-PPDU фазы соединения и user-data
// (fully-encoded-data) фазы передачи данных.
package presentation

import (
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/ber"
)

// PDUType тип Presentation PDU
type PDUType uint8

const (
	// CPA тег CPA-PPDU (SET). CP-type использует тот же тег,
	// направление обмена определяет какой из них пришёл.
	CPA PDUType = 0x31
	// UserData тег user-data (fully-encoded-data) фазы передачи данных
	UserData PDUType = 0x61
)

// Идентификаторы контекстов представления, согласованные в CP-type
const (
	ContextACSE = 1 // id-as-acse
	ContextMMS  = 3 // mms-abstract-syntax-version1
)

// PresentationPDU представляет разобранный Presentation PDU
type PresentationPDU struct {
	Type                           PDUType
	ModeValue                      int    // mode-selector: 1 = normal-mode
	CallingPresentationSelector    []byte // из CP-type
	CalledPresentationSelector     []byte // из CP-type
	RespondingPresentationSelector []byte // из CPA-PPDU
	AcseContextId                  int    // из context-definition-list CP-type
	MmsContextId                   int    // из context-definition-list CP-type
	PresentationContextId          int    // контекст PDV-list в user-data
	PresentationDataValuesType     int    // 0 = single-ASN1-type
	Data                           []byte // содержимое presentation-data-values
}

// appendLength добавляет BER длину в буфер
func appendLength(buffer []byte, length int) []byte {
	if length < 0x80 {
		return append(buffer, byte(length))
	}
	if length <= 0xFF {
		return append(buffer, 0x81, byte(length))
	}
	return append(buffer, 0x82, byte(length>>8), byte(length&0xFF))
}

// lengthSize возвращает размер BER длины в байтах
func lengthSize(length int) int {
	if length < 0x80 {
		return 1
	}
	if length <= 0xFF {
		return 2
	}
	return 3
}

// BuildCPType создаёт CP-type с двумя контекстами представления
// (1 = ACSE, 3 = MMS) и userData в контексте ACSE.
func BuildCPType(userData []byte) []byte {
	// CP-type согласно дампу из Wireshark:
	// 31 <len>
	//   a0 03 80 01 01             - mode-selector: normal-mode (1)
	//   a2 <len>                   - normal-mode-parameters
	//     81 04 00 00 00 01        - calling-presentation-selector
	//     82 04 00 00 00 01        - called-presentation-selector
	//     a4 23                    - presentation-context-definition-list
	//       30 0f 02 01 01 06 04 52 01 00 01 30 04 06 02 51 01  - [1] id-as-acse
	//       30 10 02 01 03 06 05 28 ca 22 02 01 30 04 06 02 51 01 - [3] mms
	//     61 <len>                 - user-data: fully-encoded-data
	//       30 <len>               - PDV-list
	//         02 01 01             - presentation-context-identifier: 1
	//         a0 <len> <userData>  - single-ASN1-type

	pdvValuesLength := 1 + lengthSize(len(userData)) + len(userData)
	pdvListLength := 3 + pdvValuesLength
	userDataLength := 1 + lengthSize(pdvListLength) + pdvListLength
	contextListLength := 2 + 0x23
	normalModeLength := 6 + 6 + contextListLength + 1 + lengthSize(userDataLength) + userDataLength
	totalLength := 5 + 1 + lengthSize(normalModeLength) + normalModeLength

	cpType := make([]byte, 0, 2+lengthSize(totalLength)+totalLength)

	// CP-type tag (SET)
	cpType = append(cpType, byte(CPA))
	cpType = appendLength(cpType, totalLength)

	// mode-selector: mode-value: normal-mode (1)
	cpType = append(cpType, 0xA0, 0x03, 0x80, 0x01, 0x01)

	// normal-mode-parameters
	cpType = append(cpType, 0xA2)
	cpType = appendLength(cpType, normalModeLength)

	// calling-presentation-selector: 00000001
	cpType = append(cpType, 0x81, 0x04, 0x00, 0x00, 0x00, 0x01)

	// called-presentation-selector: 00000001
	cpType = append(cpType, 0x82, 0x04, 0x00, 0x00, 0x00, 0x01)

	// presentation-context-definition-list: 2 items
	cpType = append(cpType, 0xA4, 0x23)
	// [1] id-as-acse 2.2.1.0.1, transfer-syntax basic-encoding 2.1.1
	cpType = append(cpType, 0x30, 0x0F)
	cpType = append(cpType, 0x02, 0x01, ContextACSE)
	cpType = append(cpType, 0x06, 0x04, 0x52, 0x01, 0x00, 0x01)
	cpType = append(cpType, 0x30, 0x04, 0x06, 0x02, 0x51, 0x01)
	// [3] mms-abstract-syntax-version1 1.0.9506.2.1
	cpType = append(cpType, 0x30, 0x10)
	cpType = append(cpType, 0x02, 0x01, ContextMMS)
	cpType = append(cpType, 0x06, 0x05, 0x28, 0xca, 0x22, 0x02, 0x01)
	cpType = append(cpType, 0x30, 0x04, 0x06, 0x02, 0x51, 0x01)

	// user-data: fully-encoded-data в контексте ACSE
	cpType = append(cpType, byte(UserData))
	cpType = appendLength(cpType, userDataLength)
	cpType = append(cpType, 0x30)
	cpType = appendLength(cpType, pdvListLength)
	cpType = append(cpType, 0x02, 0x01, ContextACSE)
	cpType = append(cpType, 0xA0)
	cpType = appendLength(cpType, len(userData))
	cpType = append(cpType, userData...)

	return cpType
}

// BuildUserData оборачивает PDU в user-data (fully-encoded-data)
// для фазы передачи данных: 61 L { 30 L { 02 01 <ctx>, a0 L <pdu> } }
func BuildUserData(pdu []byte, contextId byte) []byte {
	pdvValuesLength := 1 + lengthSize(len(pdu)) + len(pdu)
	pdvListLength := 3 + pdvValuesLength
	totalLength := 1 + lengthSize(pdvListLength) + pdvListLength

	userData := make([]byte, 0, 1+lengthSize(totalLength)+totalLength)

	userData = append(userData, byte(UserData))
	userData = appendLength(userData, totalLength)
	userData = append(userData, 0x30)
	userData = appendLength(userData, pdvListLength)
	userData = append(userData, 0x02, 0x01, contextId)
	userData = append(userData, 0xA0)
	userData = appendLength(userData, len(pdu))
	userData = append(userData, pdu...)

	return userData
}

// ParsePresentationPDU парсит Presentation PDU: CP-type/CPA-PPDU (0x31)
// фазы соединения или user-data (0x61) фазы передачи данных.
func ParsePresentationPDU(data []byte) (*PresentationPDU, error) {
	if len(data) < 2 {
		return nil, errors.New("presentation PDU too short")
	}

	pdu := &PresentationPDU{Type: PDUType(data[0])}

	switch pdu.Type {
	case CPA:
		pos, _, length, err := ber.DecodeTLV(data, 0, len(data))
		if err != nil {
			return nil, err
		}
		if err := pdu.parseConnectContent(data, pos, pos+length); err != nil {
			return nil, err
		}

	case UserData:
		if err := pdu.parseUserData(data, 0, len(data)); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown presentation PDU tag: 0x%02x", data[0])
	}

	return pdu, nil
}

// parseConnectContent парсит содержимое CP-type/CPA-PPDU
func (p *PresentationPDU) parseConnectContent(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}
		bufPos = newPos

		switch tag {
		case 0xA0: // mode-selector
			if err := p.parseModeSelector(buffer, bufPos, bufPos+length); err != nil {
				return err
			}

		case 0xA2: // normal-mode-parameters
			if err := p.parseNormalModeParameters(buffer, bufPos, bufPos+length); err != nil {
				return err
			}

		default:
			// Игнорируем неизвестные теги
		}

		bufPos += length
	}

	return nil
}

// parseModeSelector парсит mode-selector: mode-value
func (p *PresentationPDU) parseModeSelector(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}
		bufPos = newPos

		if tag == 0x80 {
			p.ModeValue = int(ber.DecodeUint32(buffer, length, bufPos))
		}

		bufPos += length
	}

	return nil
}

// parseNormalModeParameters парсит normal-mode-parameters:
// селекторы, списки контекстов и user-data
func (p *PresentationPDU) parseNormalModeParameters(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}
		bufPos = newPos

		switch tag {
		case 0x81: // calling-presentation-selector
			p.CallingPresentationSelector = append([]byte(nil), buffer[bufPos:bufPos+length]...)

		case 0x82: // called-presentation-selector
			p.CalledPresentationSelector = append([]byte(nil), buffer[bufPos:bufPos+length]...)

		case 0x83: // responding-presentation-selector
			p.RespondingPresentationSelector = append([]byte(nil), buffer[bufPos:bufPos+length]...)

		case 0xA4: // presentation-context-definition-list (CP-type)
			if err := p.parseContextDefinitionList(buffer, bufPos, bufPos+length); err != nil {
				return err
			}

		case 0xA5: // presentation-context-definition-result-list (CPA-PPDU)
			// Результаты согласования контекстов не извлекаем:
			// идентификаторы известны из CP-type

		case byte(UserData): // user-data
			if err := p.parseUserDataContent(buffer, bufPos, bufPos+length); err != nil {
				return err
			}

		default:
			// Игнорируем неизвестные теги
		}

		bufPos += length
	}

	return nil
}

// parseContextDefinitionList извлекает идентификаторы контекстов ACSE и MMS
// из context-definition-list CP-type. Первый контекст ACSE, второй MMS.
func (p *PresentationPDU) parseContextDefinitionList(buffer []byte, bufPos, maxBufPos int) error {
	index := 0

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}
		bufPos = newPos

		if tag == 0x30 && length >= 3 && buffer[bufPos] == 0x02 {
			idLen := int(buffer[bufPos+1])
			if bufPos+2+idLen <= maxBufPos {
				id := int(ber.DecodeUint32(buffer, idLen, bufPos+2))
				if index == 0 {
					p.AcseContextId = id
				} else {
					p.MmsContextId = id
				}
				index++
			}
		}

		bufPos += length
	}

	return nil
}

// parseUserData парсит user-data (fully-encoded-data) целиком, включая тег
func (p *PresentationPDU) parseUserData(buffer []byte, bufPos, maxBufPos int) error {
	newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
	if err != nil {
		return err
	}

	if tag != byte(UserData) {
		return fmt.Errorf("expected user-data tag 0x61, got 0x%02x", tag)
	}

	return p.parseUserDataContent(buffer, newPos, newPos+length)
}

// parseUserDataContent парсит PDV-list внутри user-data:
// 30 L { 02 01 <ctx>, a0 L <data> }
func (p *PresentationPDU) parseUserDataContent(buffer []byte, bufPos, maxBufPos int) error {
	newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
	if err != nil {
		return err
	}

	if tag != 0x30 {
		return fmt.Errorf("expected PDV-list tag 0x30, got 0x%02x", tag)
	}

	bufPos = newPos
	maxBufPos = newPos + length

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return err
		}
		bufPos = newPos

		switch tag {
		case 0x02: // presentation-context-identifier
			p.PresentationContextId = int(ber.DecodeUint32(buffer, length, bufPos))

		case 0xA0: // single-ASN1-type
			p.PresentationDataValuesType = 0
			p.Data = buffer[bufPos : bufPos+length]

		case 0x81: // octet-aligned
			p.PresentationDataValuesType = 1
			p.Data = buffer[bufPos : bufPos+length]

		default:
			// Игнорируем неизвестные теги
		}

		bufPos += length
	}

	return nil
}
