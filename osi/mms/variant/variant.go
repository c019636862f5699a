package variant

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Type представляет тип значения в MMS Data
type Type int

const (
	// Float32 - IEEE 754 single precision floating-point (32-bit)
	Float32 Type = iota
	// Float64 - IEEE 754 double precision floating-point (64-bit)
	Float64
	// Integer - знаковое целое (до 64 бит)
	Integer
	// Unsigned - беззнаковое целое (до 64 бит)
	Unsigned
	// Bool - boolean
	Bool
	// BitString - битовая строка (OptFlds, TrgOps, inclusion-bitstring, quality)
	BitString
	// OctetString - последовательность байт (EntryID)
	OctetString
	// VisibleString - строка (RptID, DatSet, имена переменных)
	VisibleString
	// BinaryTime - binary-time согласно ISO/IEC 9506-2 (TimeOfEntry)
	BinaryTime
	// BCD - binary coded decimal
	BCD
	// BoolArray - массив boolean
	BoolArray
	// UTCTime - UTC time согласно ISO/IEC 9506-2 (8 байт: 4 байта секунды + 3 байта доля секунды + 1 байт качество)
	UTCTime
	// Structure - structure (последовательность вложенных Data)
	Structure
	// Array - array (последовательность вложенных Data одного типа)
	Array
)

// String возвращает строковое представление Type
func (t Type) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Integer:
		return "integer"
	case Unsigned:
		return "unsigned"
	case Bool:
		return "bool"
	case BitString:
		return "bit-string"
	case OctetString:
		return "octet-string"
	case VisibleString:
		return "visible-string"
	case BinaryTime:
		return "binary-time"
	case BCD:
		return "bcd"
	case BoolArray:
		return "bool-array"
	case UTCTime:
		return "utc-time"
	case Structure:
		return "structure"
	case Array:
		return "array"
	default:
		// Используем strings.Builder вместо fmt.Sprintf для лучшей производительности
		var b strings.Builder
		b.WriteString("unknown(")
		b.WriteString(strconv.Itoa(int(t)))
		b.WriteByte(')')
		return b.String()
	}
}

// BitStringValue представляет битовую строку MMS: байты данных и число
// значащих бит. Бит 0 - старший бит первого байта (как в BER BIT STRING)
type BitStringValue struct {
	Data    []byte
	BitSize int
}

// Bit возвращает бит с номером i (0 - старший бит первого байта).
// Для i за пределами BitSize возвращает false
func (b BitStringValue) Bit(i int) bool {
	if i < 0 || i >= b.BitSize {
		return false
	}
	byteIdx := i / 8
	if byteIdx >= len(b.Data) {
		return false
	}
	return b.Data[byteIdx]&(0x80>>(i%8)) != 0
}

// CountSetBits возвращает число установленных бит в пределах BitSize
func (b BitStringValue) CountSetBits() int {
	count := 0
	for i := 0; i < b.BitSize; i++ {
		if b.Bit(i) {
			count++
		}
	}
	return count
}

// String возвращает битовую строку в виде "0b...."
func (b BitStringValue) String() string {
	var sb strings.Builder
	sb.WriteString("0b")
	for i := 0; i < b.BitSize; i++ {
		if b.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Variant представляет типизированное значение MMS Data
// Согласно ISO/IEC 9506-2, Data может быть разных типов:
// - array, structure (вложенные Data)
// - boolean, bit-string, integer, unsigned
// - floating-point (IEEE 754 single или double precision)
// - octet-string, visible-string
// - binary-time, bcd, booleanArray, utc-time
type Variant struct {
	typ   Type
	value interface{}
}

// Type возвращает тип значения Variant
func (v *Variant) Type() Type {
	return v.typ
}

// Float32 возвращает значение как float32
// Если тип не совпадает, пытается преобразовать значение к float32
// Возвращает 0.0 если преобразование невозможно
func (v *Variant) Float32() float32 {
	if v == nil {
		return 0.0
	}
	val, err := cast.ToFloat32E(v.value)
	if err != nil {
		return 0.0
	}
	return val
}

// Float64 возвращает значение как float64
// Возвращает 0.0 если преобразование невозможно
func (v *Variant) Float64() float64 {
	if v == nil {
		return 0.0
	}
	val, err := cast.ToFloat64E(v.value)
	if err != nil {
		return 0.0
	}
	return val
}

// Int64 возвращает значение как int64
// Возвращает 0 если преобразование невозможно
func (v *Variant) Int64() int64 {
	if v == nil {
		return 0
	}
	val, err := cast.ToInt64E(v.value)
	if err != nil {
		return 0
	}
	return val
}

// Int32 возвращает значение как int32
// Возвращает 0 если преобразование невозможно
func (v *Variant) Int32() int32 {
	if v == nil {
		return 0
	}
	val, err := cast.ToInt32E(v.value)
	if err != nil {
		return 0
	}
	return val
}

// Uint64 возвращает значение как uint64
// Возвращает 0 если преобразование невозможно
func (v *Variant) Uint64() uint64 {
	if v == nil {
		return 0
	}
	val, err := cast.ToUint64E(v.value)
	if err != nil {
		return 0
	}
	return val
}

// Bool возвращает значение как bool
// Возвращает false если преобразование невозможно
func (v *Variant) Bool() bool {
	if v == nil {
		return false
	}
	val, err := cast.ToBoolE(v.value)
	if err != nil {
		return false
	}
	return val
}

// Str возвращает строковое значение для visible-string
// Для остальных типов возвращает пустую строку
func (v *Variant) Str() string {
	if v == nil {
		return ""
	}
	if val, ok := v.value.(string); ok {
		return val
	}
	return ""
}

// Bytes возвращает байты octet-string
// Для остальных типов возвращает nil
func (v *Variant) Bytes() []byte {
	if v == nil {
		return nil
	}
	if val, ok := v.value.([]byte); ok {
		return val
	}
	return nil
}

// BitString возвращает значение как BitStringValue
// Для остальных типов возвращает нулевое значение
func (v *Variant) BitString() BitStringValue {
	if v == nil {
		return BitStringValue{}
	}
	if val, ok := v.value.(BitStringValue); ok {
		return val
	}
	return BitStringValue{}
}

// Bools возвращает значения bool-array
// Для остальных типов возвращает nil
func (v *Variant) Bools() []bool {
	if v == nil {
		return nil
	}
	if val, ok := v.value.([]bool); ok {
		return val
	}
	return nil
}

// Time возвращает значение как time.Time (utc-time или binary-time)
// Если тип не совпадает, возвращает нулевое время
func (v *Variant) Time() time.Time {
	if v == nil {
		return time.Time{}
	}
	switch val := v.value.(type) {
	case time.Time:
		return val
	default:
		return time.Time{}
	}
}

// Items возвращает вложенные элементы structure или array
// Для остальных типов возвращает nil
func (v *Variant) Items() []*Variant {
	if v == nil {
		return nil
	}
	if val, ok := v.value.([]*Variant); ok {
		return val
	}
	return nil
}

// NewFloat32Variant создаёт новый Variant с float32 значением
func NewFloat32Variant(value float32) *Variant {
	return &Variant{
		typ:   Float32,
		value: value,
	}
}

// NewFloat64Variant создаёт новый Variant с float64 значением
func NewFloat64Variant(value float64) *Variant {
	return &Variant{
		typ:   Float64,
		value: value,
	}
}

// NewIntegerVariant создаёт новый Variant со знаковым целым значением
func NewIntegerVariant(value int64) *Variant {
	return &Variant{
		typ:   Integer,
		value: value,
	}
}

// NewUnsignedVariant создаёт новый Variant с беззнаковым целым значением
func NewUnsignedVariant(value uint64) *Variant {
	return &Variant{
		typ:   Unsigned,
		value: value,
	}
}

// NewBoolVariant создаёт новый Variant с bool значением
func NewBoolVariant(value bool) *Variant {
	return &Variant{
		typ:   Bool,
		value: value,
	}
}

// NewBitStringVariant создаёт новый Variant с битовой строкой
func NewBitStringVariant(data []byte, bitSize int) *Variant {
	return &Variant{
		typ: BitString,
		value: BitStringValue{
			Data:    data,
			BitSize: bitSize,
		},
	}
}

// NewOctetStringVariant создаёт новый Variant с octet-string значением
func NewOctetStringVariant(data []byte) *Variant {
	return &Variant{
		typ:   OctetString,
		value: data,
	}
}

// NewVisibleStringVariant создаёт новый Variant со строковым значением
func NewVisibleStringVariant(value string) *Variant {
	return &Variant{
		typ:   VisibleString,
		value: value,
	}
}

// NewBinaryTimeVariant создаёт новый Variant с time.Time значением (binary-time)
func NewBinaryTimeVariant(value time.Time) *Variant {
	return &Variant{
		typ:   BinaryTime,
		value: value,
	}
}

// NewBCDVariant создаёт новый Variant с BCD значением
func NewBCDVariant(value int64) *Variant {
	return &Variant{
		typ:   BCD,
		value: value,
	}
}

// NewBoolArrayVariant создаёт новый Variant с массивом bool
func NewBoolArrayVariant(values []bool) *Variant {
	return &Variant{
		typ:   BoolArray,
		value: values,
	}
}

// NewUTCTimeVariant создаёт новый Variant с time.Time значением
func NewUTCTimeVariant(value time.Time) *Variant {
	return &Variant{
		typ:   UTCTime,
		value: value,
	}
}

// NewStructureVariant создаёт новый Variant с вложенными элементами structure
func NewStructureVariant(items []*Variant) *Variant {
	return &Variant{
		typ:   Structure,
		value: items,
	}
}

// NewArrayVariant создаёт новый Variant с вложенными элементами array
func NewArrayVariant(items []*Variant) *Variant {
	return &Variant{
		typ:   Array,
		value: items,
	}
}

// String возвращает строковое представление Variant в формате "тип(значение)"
// Например: "float32(4.2)"
// Использует strings.Builder вместо fmt.Sprintf для лучшей производительности GC
func (v *Variant) String() string {
	if v == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString(v.typ.String())
	b.WriteByte('(')

	switch v.typ {
	case Float32:
		b.WriteString(strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32))
	case Float64:
		b.WriteString(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case Integer, BCD:
		b.WriteString(strconv.FormatInt(v.Int64(), 10))
	case Unsigned:
		b.WriteString(strconv.FormatUint(v.Uint64(), 10))
	case Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case BitString:
		b.WriteString(v.BitString().String())
	case OctetString:
		for _, octet := range v.Bytes() {
			if octet < 0x10 {
				b.WriteByte('0')
			}
			b.WriteString(strconv.FormatUint(uint64(octet), 16))
		}
	case VisibleString:
		b.WriteString(v.Str())
	case BinaryTime, UTCTime:
		// Форматируем время в RFC3339 с наносекундами
		b.WriteString(v.Time().Format(time.RFC3339Nano))
	case BoolArray:
		for i, val := range v.Bools() {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatBool(val))
		}
	case Structure, Array:
		for i, item := range v.Items() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(item.String())
		}
	default:
		b.WriteString("<unknown>")
	}

	b.WriteByte(')')
	return b.String()
}
