package mms

import (
	"errors"
	"fmt"

	"github.com/slonegd/mmsreport/ber"
)

// TypeSpecification описывает тип переменной MMS.
// Согласно ISO/IEC 9506-2 (в скобках контекстные теги CHOICE):
//
//	TypeSpecification ::= CHOICE {
//	  array          [1] IMPLICIT SEQUENCE {
//	    packed           [0] IMPLICIT BOOLEAN DEFAULT FALSE,
//	    numberOfElements [1] IMPLICIT Unsigned32,
//	    elementType      [2] TypeSpecification
//	  },
//	  structure      [2] IMPLICIT SEQUENCE {
//	    packed     [0] IMPLICIT BOOLEAN DEFAULT FALSE,
//	    components [1] IMPLICIT SEQUENCE OF SEQUENCE {
//	      componentName [0] IMPLICIT Identifier OPTIONAL,
//	      componentType [1] TypeSpecification
//	    }
//	  },
//	  boolean        [3] IMPLICIT NULL,
//	  bit-string     [4] IMPLICIT Integer32,
//	  integer        [5] IMPLICIT Unsigned8,
//	  unsigned       [6] IMPLICIT Unsigned8,
//	  floating-point [7] IMPLICIT SEQUENCE {
//	    format-width   Unsigned8,
//	    exponent-width Unsigned8
//	  },
//	  octet-string   [9] IMPLICIT Integer32,
//	  visible-string [10] IMPLICIT Integer32,
//	  binary-time    [12] IMPLICIT BOOLEAN,
//	  mms-string     [16] IMPLICIT Integer32,
//	  utc-time       [17] IMPLICIT NULL
//	}
//
// utc-time - расширение IEC 61850-8-1. typeName [0], generalized-time [11],
// bcd [13] и objId [15] не поддерживаются: IED в данных 61850 их не выдают
type TypeSpecification struct {
	Type TypeSpecType

	// Structure - компоненты структуры (для TypeSpecStructure)
	Structure *StructureTypeSpec
	// Array - количество и тип элементов (для TypeSpecArray)
	Array *ArrayTypeSpec
	// FloatingPoint - ширина формата и экспоненты (для TypeSpecFloatingPoint)
	FloatingPoint *FloatingPointTypeSpec

	// BitStringSize - размер bit-string в битах. Отрицательное значение -
	// переменная длина до |n| бит (качество Quality приходит как -13)
	BitStringSize int
	// IntegerSize - размер integer в битах
	IntegerSize int
	// UnsignedSize - размер unsigned в битах
	UnsignedSize int
	// OctetStringSize - размер octet-string в октетах, отрицательное значение -
	// переменная длина
	OctetStringSize int
	// VisibleStringSize - размер visible-string, отрицательное значение -
	// переменная длина
	VisibleStringSize int
	// MMSStringSize - размер mms-string, отрицательное значение - переменная длина
	MMSStringSize int
	// BinaryTimeWithDays - true, если binary-time содержит дни (6 байт вместо 4)
	BinaryTimeWithDays bool
}

// TypeSpecType - вид спецификации типа
type TypeSpecType int

const (
	TypeSpecStructure TypeSpecType = iota
	TypeSpecArray
	TypeSpecBoolean
	TypeSpecBitString
	TypeSpecInteger
	TypeSpecUnsigned
	TypeSpecFloatingPoint
	TypeSpecOctetString
	TypeSpecVisibleString
	TypeSpecMMSString
	TypeSpecUTCTime
	TypeSpecBinaryTime
)

// StructureTypeSpec - структура с именованными компонентами
type StructureTypeSpec struct {
	Components []ComponentSpec
}

// ComponentSpec - компонент структуры
type ComponentSpec struct {
	Name string
	Type *TypeSpecification
}

// ArrayTypeSpec - массив однотипных элементов
type ArrayTypeSpec struct {
	ElementCount int
	ElementType  *TypeSpecification
}

// FloatingPointTypeSpec - параметры floating-point: полная ширина значения
// и ширина экспоненты в битах. float32 - это {32, 8}, float64 - {64, 11}
type FloatingPointTypeSpec struct {
	FormatWidth   int
	ExponentWidth int
}

// VariableAccessAttributesResponse - разобранный ответ
// getVariableAccessAttributes
type VariableAccessAttributesResponse struct {
	InvokeID          uint32
	MmsDeletable      bool
	TypeSpecification *TypeSpecification
}

// ParseGetVariableAccessAttributesResponse парсит confirmed-ResponsePDU
// со спецификацией типа переменной или датасета.
// Структура из wireshark (датасет из четырёх структур AnIn):
// a1 82 01 0b - confirmed-ResponsePDU
//
//	02 01 02 - invokeID: 2
//	a6 82 01 04 - confirmedServiceResponse: getVariableAccessAttributes
//	   80 01 00 - mmsDeletable: false
//	   a2 81 fe - typeSpecification (явный тег поля, внутри CHOICE)
//	      a2 81 fb - structure
//	         a1 81 f8 - components
//	            30 3c - component
//	               80 05 41 6e 49 6e 31 - componentName: "AnIn1"
//	               a1 33 - componentType (явный тег, внутри CHOICE)
//	                  a2 31 - structure
//	                  ...
//
// Сервер может прислать ответ с внешним тегом a0, a1 или вовсе без него,
// начиная сразу с invokeID
func ParseGetVariableAccessAttributesResponse(buffer []byte) (*VariableAccessAttributesResponse, error) {
	if len(buffer) == 0 {
		return nil, errors.New("empty buffer")
	}

	bufPos := 0
	maxBufPos := len(buffer)

	// Внешний тег confirmed-ResponsePDU, если есть
	if buffer[0] == 0xA0 || buffer[0] == 0xA1 {
		newPos, length, err := ber.DecodeLength(buffer, 1, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode confirmed-ResponsePDU length: %w", err)
		}
		bufPos = newPos
		maxBufPos = newPos + length
	}

	response := &VariableAccessAttributesResponse{}
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode element: %w", err)
		}

		switch tag {
		case 0x02: // invokeID (INTEGER)
			response.InvokeID = ber.DecodeUint32(buffer, length, newPos)

		case 0xA6: // confirmedServiceResponse: getVariableAccessAttributes
			if err := response.parseAttributesContent(buffer, newPos, newPos+length); err != nil {
				return nil, fmt.Errorf("failed to parse getVariableAccessAttributes response: %w", err)
			}
			return response, nil

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	return nil, errors.New("getVariableAccessAttributes response not found")
}

// parseAttributesContent парсит содержимое GetVariableAccessAttributes-Response:
// mmsDeletable [0], address [1] (опционально, пропускается),
// typeSpecification [2] - явный тег, внутри CHOICE
func (r *VariableAccessAttributesResponse) parseAttributesContent(buffer []byte, bufPos, maxBufPos int) error {
	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return fmt.Errorf("failed to decode element: %w", err)
		}

		switch tag {
		case 0x80: // mmsDeletable (BOOLEAN)
			if length > 0 {
				r.MmsDeletable = ber.DecodeBoolean(buffer, newPos)
			}

		case 0xA1: // address, не используется

		case 0xA2: // typeSpecification
			spec, err := parseTypeSpecification(buffer, newPos, newPos+length)
			if err != nil {
				return fmt.Errorf("failed to parse typeSpecification: %w", err)
			}
			r.TypeSpecification = spec

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	if r.TypeSpecification == nil {
		return errors.New("typeSpecification not found")
	}
	return nil
}

// parseTypeSpecification парсит один элемент CHOICE TypeSpecification,
// начинающийся в bufPos. Для структур и массивов спускается рекурсивно
func parseTypeSpecification(buffer []byte, bufPos, maxBufPos int) (*TypeSpecification, error) {
	newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
	if err != nil {
		return nil, fmt.Errorf("failed to decode type specification: %w", err)
	}
	end := newPos + length

	switch tag {
	case 0xA1: // array
		return parseArraySpec(buffer, newPos, end)

	case 0xA2: // structure
		return parseStructureSpec(buffer, newPos, end)

	case 0x83: // boolean
		return &TypeSpecification{Type: TypeSpecBoolean}, nil

	case 0x84: // bit-string (Integer32 со знаком)
		return &TypeSpecification{
			Type:          TypeSpecBitString,
			BitStringSize: decodeSize(buffer, length, newPos),
		}, nil

	case 0x85: // integer
		return &TypeSpecification{
			Type:        TypeSpecInteger,
			IntegerSize: int(ber.DecodeUint32(buffer, length, newPos)),
		}, nil

	case 0x86: // unsigned
		return &TypeSpecification{
			Type:         TypeSpecUnsigned,
			UnsignedSize: int(ber.DecodeUint32(buffer, length, newPos)),
		}, nil

	case 0xA7: // floating-point
		return parseFloatingPointSpec(buffer, newPos, end)

	case 0x89: // octet-string (Integer32 со знаком)
		return &TypeSpecification{
			Type:            TypeSpecOctetString,
			OctetStringSize: decodeSize(buffer, length, newPos),
		}, nil

	case 0x8A: // visible-string (Integer32 со знаком)
		return &TypeSpecification{
			Type:              TypeSpecVisibleString,
			VisibleStringSize: decodeSize(buffer, length, newPos),
		}, nil

	case 0x8C: // binary-time (BOOLEAN: true - 6 байт с днями)
		spec := &TypeSpecification{Type: TypeSpecBinaryTime}
		if length > 0 {
			spec.BinaryTimeWithDays = ber.DecodeBoolean(buffer, newPos)
		}
		return spec, nil

	case 0x90: // mms-string (Integer32 со знаком)
		return &TypeSpecification{
			Type:          TypeSpecMMSString,
			MMSStringSize: decodeSize(buffer, length, newPos),
		}, nil

	case 0x91: // utc-time
		return &TypeSpecification{Type: TypeSpecUTCTime}, nil

	default:
		return nil, fmt.Errorf("unsupported type specification tag: 0x%02x", tag)
	}
}

// decodeSize декодирует размер Integer32 со знаком, пустое содержимое - 0
func decodeSize(buffer []byte, length, bufPos int) int {
	if length == 0 {
		return 0
	}
	return int(ber.DecodeInt32(buffer, length, bufPos))
}

// parseStructureSpec парсит содержимое structure: packed [0] пропускается,
// components [1] - SEQUENCE OF SEQUENCE {componentName, componentType}
func parseStructureSpec(buffer []byte, bufPos, maxBufPos int) (*TypeSpecification, error) {
	var components []ComponentSpec

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode structure element: %w", err)
		}

		if tag == 0xA1 { // components
			components, err = parseComponents(buffer, newPos, newPos+length)
			if err != nil {
				return nil, err
			}
		}

		bufPos = newPos + length
	}

	return &TypeSpecification{
		Type:      TypeSpecStructure,
		Structure: &StructureTypeSpec{Components: components},
	}, nil
}

// parseComponents парсит SEQUENCE OF компонентов структуры
func parseComponents(buffer []byte, bufPos, maxBufPos int) ([]ComponentSpec, error) {
	var components []ComponentSpec

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode component: %w", err)
		}
		if tag != 0x30 {
			return nil, fmt.Errorf("unexpected tag in components: 0x%02x", tag)
		}

		component, err := parseComponent(buffer, newPos, newPos+length)
		if err != nil {
			return nil, err
		}
		components = append(components, component)

		bufPos = newPos + length
	}

	return components, nil
}

// parseComponent парсит один компонент: componentName [0],
// componentType [1] - явный тег, внутри CHOICE
func parseComponent(buffer []byte, bufPos, maxBufPos int) (ComponentSpec, error) {
	var component ComponentSpec

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return component, fmt.Errorf("failed to decode component element: %w", err)
		}

		switch tag {
		case 0x80: // componentName (Identifier)
			component.Name = string(buffer[newPos : newPos+length])

		case 0xA1: // componentType
			spec, err := parseTypeSpecification(buffer, newPos, newPos+length)
			if err != nil {
				return component, fmt.Errorf("component %q: %w", component.Name, err)
			}
			component.Type = spec

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	return component, nil
}

// parseArraySpec парсит содержимое array: packed [0] пропускается,
// numberOfElements [1], elementType [2] - явный тег, внутри CHOICE
func parseArraySpec(buffer []byte, bufPos, maxBufPos int) (*TypeSpecification, error) {
	array := &ArrayTypeSpec{}

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode array element: %w", err)
		}

		switch tag {
		case 0x81: // numberOfElements (Unsigned32)
			array.ElementCount = int(ber.DecodeUint32(buffer, length, newPos))

		case 0xA2: // elementType
			elementType, err := parseTypeSpecification(buffer, newPos, newPos+length)
			if err != nil {
				return nil, fmt.Errorf("array element type: %w", err)
			}
			array.ElementType = elementType

		default:
			// Пропускаем неизвестные теги
		}

		bufPos = newPos + length
	}

	if array.ElementType == nil {
		return nil, errors.New("array element type not found")
	}

	return &TypeSpecification{Type: TypeSpecArray, Array: array}, nil
}

// parseFloatingPointSpec парсит содержимое floating-point: два INTEGER
// в порядке определения - format-width, затем exponent-width
func parseFloatingPointSpec(buffer []byte, bufPos, maxBufPos int) (*TypeSpecification, error) {
	fp := &FloatingPointTypeSpec{}
	count := 0

	for bufPos < maxBufPos {
		newPos, tag, length, err := ber.DecodeTLV(buffer, bufPos, maxBufPos)
		if err != nil {
			return nil, fmt.Errorf("failed to decode floating-point field: %w", err)
		}

		if tag == 0x02 {
			value := int(ber.DecodeUint32(buffer, length, newPos))
			switch count {
			case 0:
				fp.FormatWidth = value
			case 1:
				fp.ExponentWidth = value
			}
			count++
		}

		bufPos = newPos + length
	}

	return &TypeSpecification{Type: TypeSpecFloatingPoint, FloatingPoint: fp}, nil
}
