package session

import (
	"errors"
	"fmt"
)

// SessionSPDUType тип SPDU (Session Protocol Data Unit)
type SessionSPDUType byte

const (
	// SessionSPDUTypeData GIVE TOKENS / DATA TRANSFER SPDU (оба SI = 1,
	// в фазе данных идут сцепленными: 01 00 01 00)
	SessionSPDUTypeData SessionSPDUType = 0x01
	// SessionSPDUTypeFinish FINISH SPDU (9)
	SessionSPDUTypeFinish SessionSPDUType = 0x09
	// SessionSPDUTypeRefuse REFUSE SPDU (12)
	SessionSPDUTypeRefuse SessionSPDUType = 0x0C
	// SessionSPDUTypeConnect CONNECT SPDU (13)
	SessionSPDUTypeConnect SessionSPDUType = 0x0D
	// SessionSPDUTypeAccept ACCEPT SPDU (14)
	SessionSPDUTypeAccept SessionSPDUType = 0x0E
	// SessionSPDUTypeAbort ABORT SPDU (25)
	SessionSPDUTypeAbort SessionSPDUType = 0x19
)

// SessionSPDU представляет разобранный SPDU
type SessionSPDU struct {
	Type                   SessionSPDUType
	Length                 int    // Длина SPDU без типа и самого поля длины
	ProtocolOptions        byte   // Параметр Protocol Options (19)
	ProtocolVersion        byte   // Параметр Version Number (22)
	SessionRequirement     uint16 // Параметр Session Requirement (20)
	CallingSessionSelector []byte // Параметр Calling Session Selector (51)
	CalledSessionSelector  []byte // Параметр Called Session Selector (52)
	Data                   []byte // Session user data (193) или данные фазы передачи
}

// readLength читает длину SPDU или параметра.
// В Session Protocol короткий формат используется до 255 (в отличие от BER),
// длинный формат: 0x82 + два байта длины.
func readLength(data []byte, pos int) (int, int, error) {
	if pos >= len(data) {
		return 0, 0, errors.New("missing length")
	}

	b := data[pos]
	if b != 0x82 {
		return int(b), 1, nil
	}

	if pos+3 > len(data) {
		return 0, 0, errors.New("truncated long-form length")
	}

	return int(data[pos+1])<<8 | int(data[pos+2]), 3, nil
}

// ParseSessionSPDU парсит SPDU (без уровней TPKT и COTP).
// Поддерживаются CONNECT/ACCEPT/REFUSE с параметрами и сцепка
// GIVE TOKENS + DATA TRANSFER фазы передачи данных.
func ParseSessionSPDU(data []byte) (*SessionSPDU, error) {
	if len(data) < 2 {
		return nil, errors.New("session SPDU too short")
	}

	spdu := &SessionSPDU{Type: SessionSPDUType(data[0])}

	// Фаза передачи данных: GIVE TOKENS (01 00) + DATA TRANSFER (01 00) + данные
	if spdu.Type == SessionSPDUTypeData {
		if len(data) < 4 || data[1] != 0x00 || data[2] != 0x01 || data[3] != 0x00 {
			return nil, fmt.Errorf("unexpected data phase SPDU: % x", data[:min(len(data), 4)])
		}
		spdu.Data = data[4:]
		return spdu, nil
	}

	length, n, err := readLength(data, 1)
	if err != nil {
		return nil, err
	}
	spdu.Length = length

	end := 1 + n + length
	if end > len(data) {
		return nil, fmt.Errorf("SPDU length %d exceeds packet size %d", length, len(data))
	}

	switch spdu.Type {
	case SessionSPDUTypeConnect, SessionSPDUTypeAccept, SessionSPDUTypeRefuse:
		if err := spdu.parseParameters(data[1+n : end]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported SPDU type: 0x%02x", byte(spdu.Type))
	}

	return spdu, nil
}

// parseParameters парсит параметры CONNECT/ACCEPT SPDU
func (s *SessionSPDU) parseParameters(buffer []byte) error {
	pos := 0

	for pos < len(buffer) {
		paramType := buffer[pos]
		pos++

		paramLen, n, err := readLength(buffer, pos)
		if err != nil {
			return err
		}
		pos += n

		if pos+paramLen > len(buffer) {
			return fmt.Errorf("parameter 0x%02x too long: %d, remaining %d", paramType, paramLen, len(buffer)-pos)
		}

		value := buffer[pos : pos+paramLen]

		switch paramType {
		case 0x05: // Connect Accept Item: вложенные параметры
			if err := s.parseParameters(value); err != nil {
				return err
			}

		case 0x13: // Protocol Options
			if paramLen >= 1 {
				s.ProtocolOptions = value[0]
			}

		case 0x16: // Version Number
			if paramLen >= 1 {
				s.ProtocolVersion = value[0]
			}

		case 0x14: // Session Requirement
			if paramLen >= 2 {
				s.SessionRequirement = uint16(value[0])<<8 | uint16(value[1])
			}

		case 0x33: // Calling Session Selector
			s.CallingSessionSelector = append([]byte(nil), value...)

		case 0x34: // Called Session Selector
			s.CalledSessionSelector = append([]byte(nil), value...)

		case 0xC1: // Session user data
			s.Data = value

		default:
			// Игнорируем неизвестные параметры
		}

		pos += paramLen
	}

	return nil
}

// BuildDataTransferWithTokens создаёт сцепку GIVE TOKENS + DATA TRANSFER SPDU
// для фазы передачи данных
func BuildDataTransferWithTokens(userData []byte) []byte {
	spdu := make([]byte, 0, 4+len(userData))
	spdu = append(spdu, 0x01, 0x00, 0x01, 0x00)
	spdu = append(spdu, userData...)
	return spdu
}

// appendLength добавляет длину SPDU или параметра: короткий формат
// до 255 (в отличие от BER), длинный - 0x82 и два байта
func appendLength(spdu []byte, length int) []byte {
	if length <= 0xFF {
		return append(spdu, byte(length))
	}
	return append(spdu, 0x82, byte(length>>8), byte(length))
}

// BuildConnectSPDU создаёт CONNECT SPDU с параметрами, принятыми
// для MMS поверх ISO session:
//
//	0d <len> - CONNECT (13)
//	  05 06 - Connect Accept Item
//	    13 01 00 - Protocol Options
//	    16 01 02 - Version Number: 2
//	  14 02 00 02 - Session Requirement: Duplex
//	  33 02 00 01 - Calling Session Selector
//	  34 02 00 01 - Called Session Selector
//	  c1 <len> <userData> - Session user data
func BuildConnectSPDU(userData []byte) []byte {
	parameters := []byte{
		0x05, 0x06, 0x13, 0x01, 0x00, 0x16, 0x01, 0x02,
		0x14, 0x02, 0x00, 0x02,
		0x33, 0x02, 0x00, 0x01,
		0x34, 0x02, 0x00, 0x01,
	}
	userDataHeader := appendLength([]byte{0xC1}, len(userData))

	totalLength := len(parameters) + len(userDataHeader) + len(userData)

	spdu := make([]byte, 0, 4+totalLength)
	spdu = appendLength(append(spdu, byte(SessionSPDUTypeConnect)), totalLength)
	spdu = append(spdu, parameters...)
	spdu = append(spdu, userDataHeader...)
	spdu = append(spdu, userData...)

	return spdu
}

