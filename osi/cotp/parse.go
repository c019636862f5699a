package cotp

import (
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/osi/tpkt"
)

// COTPType тип TPDU
type COTPType byte

const (
	COTPTypeConnectionRequest COTPType = 0xe0 // CR Connection Request
	COTPTypeConnectionConfirm COTPType = 0xd0 // CC Connection Confirm
	COTPTypeData              COTPType = 0xf0 // DT Data
	COTPTypeDisconnectRequest COTPType = 0x80 // DR Disconnect Request
	COTPTypeDisconnectConfirm COTPType = 0xc0 // DC Disconnect Confirm
)

// TPKT представляет разобранный TPKT пакет
type TPKT struct {
	Version  byte
	Reserved byte
	Length   uint16 // Полная длина пакета, включая заголовок
	Data     []byte // COTP TPDU
}

// COTP представляет разобранный COTP TPDU
type COTP struct {
	Length             byte     // LI: длина заголовка без самого байта длины
	Type               COTPType // Тип TPDU
	DestRef            uint16   // Destination reference (CR/CC/DR)
	SrcRef             uint16   // Source reference (CR/CC/DR)
	Class              byte     // Класс протокола (старший полубайт)
	ExtendedFormats    bool     // Расширенные форматы
	NoExplicitFlowCtrl bool     // Без явного управления потоком
	ProtocolClass      byte     // Байт класса протокола целиком
	TpduSize           byte     // Размер TPDU в виде степени двойки (опция 0xc0)
	SrcTSAP            []byte   // Calling TSAP (опция 0xc1)
	DstTSAP            []byte   // Called TSAP (опция 0xc2)
	Flags              byte     // Байт флагов Data TPDU
	IsLastDataUnit     bool     // Бит EOT в Data TPDU
	Data               []byte   // Полезная нагрузка после заголовка
}

// ParseTPKT парсит TPKT пакет целиком (заголовок + COTP TPDU)
func ParseTPKT(data []byte) (*TPKT, error) {
	length, err := tpkt.ValidateHeader(data)
	if err != nil {
		return nil, err
	}

	if int(length) != len(data) {
		return nil, fmt.Errorf("%w: length %d does not match packet size %d",
			tpkt.ErrFraming, length, len(data))
	}

	return &TPKT{
		Version:  data[0],
		Reserved: data[1],
		Length:   length,
		Data:     data[tpkt.HeaderSize:],
	}, nil
}

// ParseCOTP парсит COTP TPDU (без уровня TPKT)
func ParseCOTP(data []byte) (*COTP, error) {
	if len(data) < 2 {
		return nil, errors.New("COTP TPDU too short")
	}

	pdu := &COTP{
		Length: data[0],
		Type:   COTPType(data[1]),
	}

	headerEnd := int(pdu.Length) + 1
	if headerEnd > len(data) {
		return nil, fmt.Errorf("invalid length indicator: %d, packet size %d", pdu.Length, len(data))
	}

	switch pdu.Type {
	case COTPTypeConnectionRequest, COTPTypeConnectionConfirm:
		if headerEnd < 7 {
			return nil, errors.New("connection TPDU too short")
		}

		pdu.DestRef = uint16(data[2])<<8 | uint16(data[3])
		pdu.SrcRef = uint16(data[4])<<8 | uint16(data[5])
		pdu.ProtocolClass = data[6]
		pdu.Class = data[6] >> 4
		pdu.ExtendedFormats = data[6]&0x02 != 0
		pdu.NoExplicitFlowCtrl = data[6]&0x01 != 0

		if err := pdu.parseOptions(data[7:headerEnd]); err != nil {
			return nil, err
		}

		pdu.Data = data[headerEnd:]

	case COTPTypeData:
		if len(data) < 3 {
			return nil, errors.New("data TPDU too short")
		}

		pdu.Flags = data[2]
		pdu.IsLastDataUnit = data[2]&0x80 != 0
		pdu.Data = data[3:]

	case COTPTypeDisconnectRequest, COTPTypeDisconnectConfirm:
		if headerEnd >= 6 {
			pdu.DestRef = uint16(data[2])<<8 | uint16(data[3])
			pdu.SrcRef = uint16(data[4])<<8 | uint16(data[5])
		}
		pdu.Data = data[headerEnd:]

	default:
		return nil, fmt.Errorf("unknown TPDU type: 0x%02x", byte(pdu.Type))
	}

	return pdu, nil
}

// parseOptions парсит опции заголовка CR/CC TPDU
func (p *COTP) parseOptions(buffer []byte) error {
	bufPos := 0

	for bufPos < len(buffer) {
		if bufPos+1 >= len(buffer) {
			return errors.New("invalid option: missing type or length")
		}

		optionType := buffer[bufPos]
		optionLen := int(buffer[bufPos+1])
		bufPos += 2

		if bufPos+optionLen > len(buffer) {
			return fmt.Errorf("option too long: optionLen=%d, remaining=%d", optionLen, len(buffer)-bufPos)
		}

		switch optionType {
		case 0xc0: // TPDU size
			if optionLen != 1 {
				return errors.New("invalid TPDU size option length")
			}
			p.TpduSize = buffer[bufPos]

		case 0xc1: // calling TSAP
			p.SrcTSAP = make([]byte, optionLen)
			copy(p.SrcTSAP, buffer[bufPos:bufPos+optionLen])

		case 0xc2: // called TSAP
			p.DstTSAP = make([]byte, optionLen)
			copy(p.DstTSAP, buffer[bufPos:bufPos+optionLen])

		default:
			// Игнорируем неизвестные опции
		}

		bufPos += optionLen
	}

	return nil
}
