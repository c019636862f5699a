// Package rcb реализует модель блоков управления отчётами (Report Control
// Block) IEC 61850: битовые поля OptFlds и TrgOps, чтение значений RCB из
// результатов MMS Read и план активации подписки.
package rcb

import (
	"fmt"
	"strings"

	"github.com/slonegd/mmsreport/ber"
	"github.com/slonegd/mmsreport/osi/mms"
	"github.com/slonegd/mmsreport/osi/mms/variant"
)

// Kind определяет тип RCB
type Kind int

const (
	// KindURCB небуферизованный RCB (путь содержит $RP$)
	KindURCB Kind = iota
	// KindBRCB буферизованный RCB (путь содержит $BR$)
	KindBRCB
)

// String возвращает строковое представление типа RCB
func (k Kind) String() string {
	if k == KindBRCB {
		return "BRCB"
	}
	return "URCB"
}

// Биты OptFlds согласно IEC 61850-8-1 (нумерация от старшего бита):
// 0 - зарезервирован, 1 - sequence-number, 2 - report-time-stamp,
// 3 - reason-for-inclusion, 4 - data-set-name, 5 - data-reference,
// 6 - buffer-overflow, 7 - entryID, 8 - conf-revision, 9 - segmentation
const (
	optFldsBitSeqNum             = 1
	optFldsBitReportTimestamp    = 2
	optFldsBitReasonForInclusion = 3
	optFldsBitDataSetName        = 4
	optFldsBitDataReference      = 5
	optFldsBitBufferOverflow     = 6
	optFldsBitEntryID            = 7
	optFldsBitConfRevision       = 8
	optFldsBitSegmentation       = 9

	optFldsBitCount = 10
)

// OptFlds описывает, какие необязательные поля IED включает в отчёт
type OptFlds struct {
	SeqNum             bool
	ReportTimestamp    bool
	ReasonForInclusion bool
	DataSetName        bool
	DataReference      bool
	BufferOverflow     bool
	EntryID            bool
	ConfRevision       bool
	Segmentation       bool
}

// DefaultOptFlds возвращает политику включения по умолчанию (0b0111111010):
// включены sequence-number, report-time-stamp, reason-for-inclusion,
// data-set-name, data-reference, buffer-overflow и conf-revision.
// Отчёты с такими полями декодируются без знания конфигурации IED
func DefaultOptFlds() OptFlds {
	return OptFlds{
		SeqNum:             true,
		ReportTimestamp:    true,
		ReasonForInclusion: true,
		DataSetName:        true,
		DataReference:      true,
		BufferOverflow:     true,
		ConfRevision:       true,
	}
}

// bitOffsets возвращает номера установленных бит
func (f OptFlds) bitOffsets() []uint {
	var offsets []uint
	add := func(set bool, bit uint) {
		if set {
			offsets = append(offsets, bit)
		}
	}
	add(f.SeqNum, optFldsBitSeqNum)
	add(f.ReportTimestamp, optFldsBitReportTimestamp)
	add(f.ReasonForInclusion, optFldsBitReasonForInclusion)
	add(f.DataSetName, optFldsBitDataSetName)
	add(f.DataReference, optFldsBitDataReference)
	add(f.BufferOverflow, optFldsBitBufferOverflow)
	add(f.EntryID, optFldsBitEntryID)
	add(f.ConfRevision, optFldsBitConfRevision)
	add(f.Segmentation, optFldsBitSegmentation)
	return offsets
}

// Variant кодирует OptFlds в MMS bit-string из 10 бит
func (f OptFlds) Variant() *variant.Variant {
	data := ber.EncodeBitmaskFromOffsets(f.bitOffsets(), 2)
	return variant.NewBitStringVariant(data, optFldsBitCount)
}

// OptFldsFromBitString декодирует OptFlds из MMS bit-string
func OptFldsFromBitString(bits variant.BitStringValue) OptFlds {
	return OptFlds{
		SeqNum:             bits.Bit(optFldsBitSeqNum),
		ReportTimestamp:    bits.Bit(optFldsBitReportTimestamp),
		ReasonForInclusion: bits.Bit(optFldsBitReasonForInclusion),
		DataSetName:        bits.Bit(optFldsBitDataSetName),
		DataReference:      bits.Bit(optFldsBitDataReference),
		BufferOverflow:     bits.Bit(optFldsBitBufferOverflow),
		EntryID:            bits.Bit(optFldsBitEntryID),
		ConfRevision:       bits.Bit(optFldsBitConfRevision),
		Segmentation:       bits.Bit(optFldsBitSegmentation),
	}
}

// String возвращает список включенных полей
func (f OptFlds) String() string {
	names := []string{"seq-num", "report-time-stamp", "reason-for-inclusion",
		"data-set-name", "data-reference", "buffer-overflow", "entry-id",
		"conf-revision", "segmentation"}
	set := []bool{f.SeqNum, f.ReportTimestamp, f.ReasonForInclusion,
		f.DataSetName, f.DataReference, f.BufferOverflow, f.EntryID,
		f.ConfRevision, f.Segmentation}

	var enabled []string
	for i, name := range names {
		if set[i] {
			enabled = append(enabled, name)
		}
	}
	return "{" + strings.Join(enabled, ", ") + "}"
}

// Биты TrgOps согласно IEC 61850-8-1 (нумерация от старшего бита):
// 0 - зарезервирован, 1 - data-change, 2 - quality-change,
// 3 - data-update, 4 - integrity, 5 - general-interrogation
const (
	trgOpsBitDataChange           = 1
	trgOpsBitQualityChange        = 2
	trgOpsBitDataUpdate           = 3
	trgOpsBitIntegrity            = 4
	trgOpsBitGeneralInterrogation = 5

	trgOpsBitCount = 6
)

// TrgOps описывает условия, при которых IED генерирует отчёт
type TrgOps struct {
	DataChange           bool
	QualityChange        bool
	DataUpdate           bool
	Integrity            bool
	GeneralInterrogation bool
}

// DefaultTrgOps возвращает условия срабатывания по умолчанию:
// data-change, quality-change, integrity и general-interrogation
func DefaultTrgOps() TrgOps {
	return TrgOps{
		DataChange:           true,
		QualityChange:        true,
		Integrity:            true,
		GeneralInterrogation: true,
	}
}

// bitOffsets возвращает номера установленных бит
func (t TrgOps) bitOffsets() []uint {
	var offsets []uint
	add := func(set bool, bit uint) {
		if set {
			offsets = append(offsets, bit)
		}
	}
	add(t.DataChange, trgOpsBitDataChange)
	add(t.QualityChange, trgOpsBitQualityChange)
	add(t.DataUpdate, trgOpsBitDataUpdate)
	add(t.Integrity, trgOpsBitIntegrity)
	add(t.GeneralInterrogation, trgOpsBitGeneralInterrogation)
	return offsets
}

// Variant кодирует TrgOps в MMS bit-string из 6 бит
func (t TrgOps) Variant() *variant.Variant {
	data := ber.EncodeBitmaskFromOffsets(t.bitOffsets(), 1)
	return variant.NewBitStringVariant(data, trgOpsBitCount)
}

// TrgOpsFromBitString декодирует TrgOps из MMS bit-string
func TrgOpsFromBitString(bits variant.BitStringValue) TrgOps {
	return TrgOps{
		DataChange:           bits.Bit(trgOpsBitDataChange),
		QualityChange:        bits.Bit(trgOpsBitQualityChange),
		DataUpdate:           bits.Bit(trgOpsBitDataUpdate),
		Integrity:            bits.Bit(trgOpsBitIntegrity),
		GeneralInterrogation: bits.Bit(trgOpsBitGeneralInterrogation),
	}
}

// Values содержит атрибуты RCB, прочитанные из IED.
// Resv заполняется только для URCB, ResvTms и EntryID - только для BRCB
type Values struct {
	RptID   string
	RptEna  bool
	Resv    bool
	ResvTms int64
	DatSet  string
	ConfRev uint64
	OptFlds OptFlds
	BufTm   uint64
	SqNum   uint64
	TrgOps  TrgOps
	IntgPd  uint64
	GI      bool
	EntryID []byte
}

// ReadAttributes возвращает имена атрибутов RCB в порядке чтения
// перед настройкой. Порядок фиксирован: по нему же раскладываются
// результаты в ValuesFromAccessResults
func ReadAttributes(kind Kind) []string {
	reserve := "Resv"
	if kind == KindBRCB {
		reserve = "ResvTms"
	}
	return []string{"RptEna", reserve, "DatSet", "ConfRev", "OptFlds",
		"TrgOps", "BufTm", "IntgPd", "GI", "RptID"}
}

// ValuesFromAccessResults раскладывает результаты MMS Read по атрибутам RCB.
// Порядок результатов соответствует attrs (обычно ReadAttributes).
// Ошибки доступа к отдельным атрибутам не фатальны: IED может не
// поддерживать часть из них, такие атрибуты остаются нулевыми
func ValuesFromAccessResults(attrs []string, results []mms.AccessResult) Values {
	var values Values

	for i, result := range results {
		if i >= len(attrs) {
			break
		}
		if !result.Success || result.Value == nil {
			continue
		}

		v := result.Value
		switch attrs[i] {
		case "RptEna":
			values.RptEna = v.Bool()
		case "Resv":
			values.Resv = v.Bool()
		case "ResvTms":
			values.ResvTms = v.Int64()
		case "DatSet":
			values.DatSet = v.Str()
		case "ConfRev":
			values.ConfRev = v.Uint64()
		case "OptFlds":
			values.OptFlds = OptFldsFromBitString(v.BitString())
		case "TrgOps":
			values.TrgOps = TrgOpsFromBitString(v.BitString())
		case "BufTm":
			values.BufTm = v.Uint64()
		case "SqNum":
			values.SqNum = v.Uint64()
		case "IntgPd":
			values.IntgPd = v.Uint64()
		case "GI":
			values.GI = v.Bool()
		case "RptID":
			values.RptID = v.Str()
		case "EntryID":
			values.EntryID = v.Bytes()
		}
	}

	return values
}

// String возвращает строковое представление значений RCB
func (v Values) String() string {
	return fmt.Sprintf("Values{RptID: %q, RptEna: %t, DatSet: %q, ConfRev: %d, OptFlds: %s, BufTm: %d, IntgPd: %d}",
		v.RptID, v.RptEna, v.DatSet, v.ConfRev, v.OptFlds, v.BufTm, v.IntgPd)
}
