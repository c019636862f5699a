package mms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/slonegd/mmsreport/ber"
)

// InformationReport представляет MMS informationReport из unconfirmed-PDU.
// Отчёты RCB приходят в нем с variableListName "RPT" (vmd-specific)
// Структура согласно ISO/IEC 9506-2:
//
//	Unconfirmed-PDU ::= SEQUENCE {
//	  unconfirmedService CHOICE {
//	    informationReport [0] IMPLICIT InformationReport
//	  }
//	}
//
//	InformationReport ::= SEQUENCE {
//	  variableAccessSpecification VariableAccessSpecification,
//	  listOfAccessResult [0] IMPLICIT SEQUENCE OF AccessResult
//	}
type InformationReport struct {
	// VariableListName имя списка переменных: "RPT" для отчётов RCB,
	// "DOMAIN/ITEM" для domain-specific списков
	VariableListName string
	AccessResults    []AccessResult
}

// ParseInformationReport парсит informationReport из unconfirmed-PDU
// Структура из wireshark:
// a3 81 с7 - unconfirmed-PDU (Context-specific 3, Constructed)
//
//	a0 81 c3 - unconfirmedService: informationReport (Context-specific 0, Constructed)
//	   a1 05 - variableAccessSpecification: variableListName (Context-specific 1, Constructed)
//	      80 03 - vmd-specific (VisibleString): "RPT"
//	   a0 81 b9 - listOfAccessResult (Context-specific 0, Constructed)
//	      8a 0b - visible-string: "urcbA01rpt1" (RptID)
//	      84 03 06 7e 80 - bit-string: OptFlds
//	      ...
func ParseInformationReport(buffer []byte) (InformationReport, error) {
	var report InformationReport
	if len(buffer) == 0 {
		return report, errors.New("empty buffer")
	}

	bufPos := 0
	maxBufPos := len(buffer)

	// Внешний тег unconfirmed-PDU
	if buffer[0] == 0xA3 {
		newPos, length, err := ber.DecodeLength(buffer, 1, maxBufPos)
		if err != nil {
			return report, fmt.Errorf("failed to decode length: %w", err)
		}
		bufPos = newPos

		if bufPos+length > maxBufPos {
			return report, errors.New("invalid length: exceeds buffer size")
		}
		maxBufPos = bufPos + length
	}

	if bufPos >= maxBufPos {
		return report, errors.New("empty unconfirmed-PDU")
	}

	// unconfirmedService: informationReport (Context-specific 0, Constructed)
	if buffer[bufPos] != 0xA0 {
		return report, fmt.Errorf("invalid tag: expected 0xA0 (informationReport), got 0x%02x", buffer[bufPos])
	}

	newPos, length, err := ber.DecodeLength(buffer, bufPos+1, maxBufPos)
	if err != nil {
		return report, fmt.Errorf("failed to decode length: %w", err)
	}
	bufPos = newPos

	if bufPos+length > maxBufPos {
		return report, errors.New("invalid length: exceeds buffer size")
	}

	return report, report.parseInformationReportContent(buffer, bufPos, bufPos+length)
}

// parseInformationReportContent парсит содержимое InformationReport.
// Элементы идут позиционно: variableAccessSpecification (a1 при
// variableListName, a0 при listOfVariable), затем a0 listOfAccessResult.
// Последний a0 - всегда listOfAccessResult
func (r *InformationReport) parseInformationReportContent(buffer []byte, bufPos, maxBufPos int) error {
	// Позиции элементов верхнего уровня с тегом a0
	type element struct {
		pos, length int
	}
	var a0Elements []element

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return fmt.Errorf("failed to decode tag 0x%02x: %w", tag, err)
		}

		switch tag {
		case 0xA1: // variableAccessSpecification: variableListName
			if err := r.parseVariableListName(buffer, newPos, newPos+length); err != nil {
				return fmt.Errorf("failed to parse variableListName: %w", err)
			}

		case 0xA0: // listOfVariable либо listOfAccessResult
			a0Elements = append(a0Elements, element{pos: newPos, length: length})

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	if len(a0Elements) == 0 {
		return errors.New("missing listOfAccessResult")
	}

	last := a0Elements[len(a0Elements)-1]
	results, err := decodeAccessResults(buffer, last.pos, last.pos+last.length)
	if err != nil {
		return fmt.Errorf("failed to parse listOfAccessResult: %w", err)
	}
	r.AccessResults = results

	return nil
}

// parseVariableListName парсит ObjectName списка переменных
//
//	ObjectName ::= CHOICE {
//	  vmd-specific    [0] Identifier,
//	  domain-specific [1] SEQUENCE { domainId Identifier, itemId Identifier },
//	  aa-specific     [2] Identifier
//	}
func (r *InformationReport) parseVariableListName(buffer []byte, bufPos, maxBufPos int) error {
	if bufPos >= maxBufPos {
		return errors.New("empty variableListName")
	}

	newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
	if err != nil {
		return err
	}

	switch tag {
	case 0x80, 0x82: // vmd-specific / aa-specific: Identifier
		name, err := ber.DecodeString(buffer, length, newPos, maxBufPos)
		if err != nil {
			return err
		}
		r.VariableListName = name

	case 0xA1: // domain-specific: domainId + itemId
		var parts []string
		innerPos := newPos
		innerMax := newPos + length
		for innerPos < innerMax {
			strPos, strTag, strLength, err := ber.DecodeTLV(buffer, innerPos, innerMax)
			if err != nil {
				return err
			}
			if strTag != byte(ber.VisibleString) {
				return fmt.Errorf("unexpected identifier tag: 0x%02x", strTag)
			}
			part, err := ber.DecodeString(buffer, strLength, strPos, innerMax)
			if err != nil {
				return err
			}
			parts = append(parts, part)
			innerPos = strPos + strLength
		}
		r.VariableListName = strings.Join(parts, "/")

	default:
		return fmt.Errorf("unexpected variableListName tag: 0x%02x", tag)
	}

	return nil
}

// String возвращает строковое представление InformationReport
func (r *InformationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "InformationReport{Name: %q, Results: [", r.VariableListName)

	for i, result := range r.AccessResults {
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
