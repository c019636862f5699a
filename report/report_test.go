package report

import (
	"testing"
	"time"

	"github.com/slonegd/mmsreport/osi/mms"
	"github.com/slonegd/mmsreport/osi/mms/variant"
	"github.com/slonegd/mmsreport/rcb"
	"github.com/stretchr/testify/assert"
)

func ok(v *variant.Variant) mms.AccessResult {
	return mms.AccessResult{Success: true, Value: v}
}

func uptr(v uint64) *uint64      { return &v }
func bptr(v bool) *bool          { return &v }
func tptr(v time.Time) *time.Time { return &v }

func TestDecodeInclusionOnly(t *testing.T) {
	// Отчёт без блока значений: заголовок и inclusion, 12 членов из 24
	// включены (fff000). Записи создаются на каждый член набора данных,
	// Included выставлен по битам inclusion
	timeOfEntry := time.Date(1984, 12, 4, 4, 8, 33, 234970092, time.UTC)
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("LDPHAS1_CYPO_DEP1")),
		ok(variant.NewUnsignedVariant(1)),
		ok(variant.NewBinaryTimeVariant(timeOfEntry)),
		ok(variant.NewBoolVariant(false)),
		ok(variant.NewBitStringVariant([]byte{0xff, 0xf0, 0x00}, 24)),
	}
	subscribed := rcb.OptFlds{SeqNum: true, ReportTimestamp: true, BufferOverflow: true}

	var d Decoder
	rpt, err := d.Decode(results, subscribed, 24)

	assert.NoError(t, err)
	assert.Equal(t, "LDPHAS1_CYPO_DEP1", rpt.RptID)
	assert.Equal(t, uptr(1), rpt.SqNum)
	assert.Equal(t, tptr(timeOfEntry), rpt.TimeOfEntry)
	assert.Equal(t, bptr(false), rpt.BufOvfl)
	assert.Nil(t, rpt.Mismatch)

	assert.Len(t, rpt.Entries, 24)
	assert.Equal(t, 12, rpt.IncludedCount())
	for i, entry := range rpt.Entries {
		assert.Equal(t, i, entry.Index)
		assert.Equal(t, i < 12, entry.Included, "член %d", i)
		assert.Nil(t, entry.Value)
	}
}

func TestDecodeValuesInDataSetOrder(t *testing.T) {
	// Включены члены 1 и 3 из четырёх, значения идут в порядке набора
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewUnsignedVariant(7)),
		ok(variant.NewBitStringVariant([]byte{0x50}, 4)), // 0101
		ok(variant.NewFloat32Variant(10.5)),
		ok(variant.NewFloat32Variant(-3.25)),
	}
	subscribed := rcb.OptFlds{SeqNum: true}

	var d Decoder
	rpt, err := d.Decode(results, subscribed, 4)

	assert.NoError(t, err)
	assert.Nil(t, rpt.Mismatch)
	assert.Len(t, rpt.Entries, 4)
	assert.Nil(t, rpt.Entries[0].Value)
	assert.Equal(t, variant.NewFloat32Variant(10.5), rpt.Entries[1].Value)
	assert.Nil(t, rpt.Entries[2].Value)
	assert.Equal(t, variant.NewFloat32Variant(-3.25), rpt.Entries[3].Value)
}

func TestDecodeWireOptFldsOverride(t *testing.T) {
	// Второй элемент - битовая строка из 10 бит: OptFlds с провода
	// важнее подписанных. 7f80 включает entryID в отличие от 7e80
	entryID := []byte{0, 0, 0, 0, 0, 0, 0, 0x2a}
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewBitStringVariant([]byte{0x7f, 0x80}, 10)),
		ok(variant.NewUnsignedVariant(3)),                        // SqNum
		ok(variant.NewBinaryTimeVariant(time.Date(2026, 1, 5, 8, 27, 51, 0, time.UTC))),
		ok(variant.NewVisibleStringVariant("VMC7LD0/LLN0$DS1")),  // DatSet
		ok(variant.NewBoolVariant(true)),                         // BufOvfl
		ok(variant.NewOctetStringVariant(entryID)),               // EntryID
		ok(variant.NewUnsignedVariant(5)),                        // ConfRev
		ok(variant.NewBitStringVariant([]byte{0x80}, 2)),         // inclusion 10
		ok(variant.NewVisibleStringVariant("VMC7LD0/MMXU1$MX$A")), // data-reference
		ok(variant.NewFloat32Variant(230.5)),                     // значение
		ok(variant.NewBitStringVariant([]byte{0x40}, 6)),         // reason
	}
	// подписка без entryID - должна быть переопределена с провода
	subscribed := rcb.DefaultOptFlds()

	var d Decoder
	rpt, err := d.Decode(results, subscribed, 2)

	assert.NoError(t, err)
	assert.Nil(t, rpt.Mismatch)
	assert.True(t, rpt.OptFlds.EntryID)
	assert.Equal(t, uptr(3), rpt.SqNum)
	assert.Equal(t, "VMC7LD0/LLN0$DS1", rpt.DatSet)
	assert.Equal(t, bptr(true), rpt.BufOvfl)
	assert.Equal(t, entryID, rpt.EntryID)
	assert.Equal(t, uptr(5), rpt.ConfRev)

	assert.Len(t, rpt.Entries, 2)
	entry := rpt.Entries[0]
	assert.True(t, entry.Included)
	assert.Equal(t, "VMC7LD0/MMXU1$MX$A", entry.Reference)
	assert.Equal(t, variant.NewFloat32Variant(230.5), entry.Value)
	assert.Equal(t, variant.NewBitStringVariant([]byte{0x40}, 6), entry.Reason)
	assert.False(t, rpt.Entries[1].Included)
}

func TestDecodePerColumnLayout(t *testing.T) {
	// Колоночный формат: все значения, затем все качества, затем все
	// метки времени. Включены члены 0 и 2 из трёх
	ts0 := time.Date(2026, 1, 5, 8, 27, 51, 0, time.UTC)
	ts1 := time.Date(2026, 1, 5, 8, 27, 52, 0, time.UTC)
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewBitStringVariant([]byte{0xa0}, 3)), // inclusion 101
		ok(variant.NewFloat32Variant(1.5)),
		ok(variant.NewFloat32Variant(2.5)),
		ok(variant.NewBitStringVariant([]byte{0x02, 0x08}, 13)),
		ok(variant.NewBitStringVariant([]byte{0x03, 0x00}, 13)),
		ok(variant.NewUTCTimeVariant(ts0)),
		ok(variant.NewUTCTimeVariant(ts1)),
	}

	var d Decoder
	rpt, err := d.Decode(results, rcb.OptFlds{}, 3)

	assert.NoError(t, err)
	assert.Nil(t, rpt.Mismatch)

	first := rpt.Entries[0]
	assert.Equal(t, variant.NewFloat32Variant(1.5), first.Value)
	assert.Equal(t, variant.NewBitStringVariant([]byte{0x02, 0x08}, 13), first.Quality)
	assert.Equal(t, tptr(ts0), first.Timestamp)

	assert.False(t, rpt.Entries[1].Included)
	assert.Nil(t, rpt.Entries[1].Value)

	third := rpt.Entries[2]
	assert.Equal(t, variant.NewFloat32Variant(2.5), third.Value)
	assert.Equal(t, variant.NewBitStringVariant([]byte{0x03, 0x00}, 13), third.Quality)
	assert.Equal(t, tptr(ts1), third.Timestamp)
}

func TestDecodePerRowLayout(t *testing.T) {
	// Строчный формат: каждое значение - структура [значение, качество, время]
	ts := time.Date(2026, 1, 5, 8, 27, 51, 153999984, time.UTC)
	row := variant.NewStructureVariant([]*variant.Variant{
		variant.NewFloat32Variant(230.5),
		variant.NewBitStringVariant([]byte{0x02, 0x08}, 13),
		variant.NewUTCTimeVariant(ts),
	})
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewBitStringVariant([]byte{0x80}, 1)),
		ok(row),
	}

	var d Decoder
	rpt, err := d.Decode(results, rcb.OptFlds{}, 1)

	assert.NoError(t, err)
	assert.Nil(t, rpt.Mismatch)

	entry := rpt.Entries[0]
	assert.Equal(t, variant.NewFloat32Variant(230.5), entry.Value)
	assert.Equal(t, variant.NewBitStringVariant([]byte{0x02, 0x08}, 13), entry.Quality)
	assert.Equal(t, tptr(ts), entry.Timestamp)
}

func TestDecodeKeepsAnalogueValueStructure(t *testing.T) {
	// Структура из двух чисел - это AnalogueValue {i, f}, а не формат
	// [значение, качество, время]: остаётся значением целиком
	analogue := variant.NewStructureVariant([]*variant.Variant{
		variant.NewIntegerVariant(100),
		variant.NewFloat32Variant(100.5),
	})
	// Vector {mag, ang} с вложенными AnalogueValue тоже не трогаем
	vector := variant.NewStructureVariant([]*variant.Variant{
		variant.NewStructureVariant([]*variant.Variant{variant.NewFloat32Variant(10)}),
		variant.NewStructureVariant([]*variant.Variant{variant.NewFloat32Variant(-100)}),
	})
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewBitStringVariant([]byte{0xc0}, 2)),
		ok(analogue),
		ok(vector),
	}

	var d Decoder
	rpt, err := d.Decode(results, rcb.OptFlds{}, 2)

	assert.NoError(t, err)
	assert.Equal(t, analogue, rpt.Entries[0].Value)
	assert.Nil(t, rpt.Entries[0].Quality)
	assert.Equal(t, vector, rpt.Entries[1].Value)
}

func TestDecodeLabels(t *testing.T) {
	d := Decoder{Labels: Labels{
		"VMC7LD0/LLN0$DS1": {"Beh", "Health", "A.phsA"},
	}}
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewVisibleStringVariant("VMC7LD0/LLN0$DS1")), // DatSet
		ok(variant.NewBitStringVariant([]byte{0xe0}, 3)),
		ok(variant.NewIntegerVariant(1)),
		ok(variant.NewIntegerVariant(2)),
		ok(variant.NewFloat32Variant(230.5)),
	}

	rpt, err := d.Decode(results, rcb.OptFlds{DataSetName: true}, 3)

	assert.NoError(t, err)
	assert.Equal(t, "Beh", rpt.Entries[0].Label)
	assert.Equal(t, "Health", rpt.Entries[1].Label)
	assert.Equal(t, "A.phsA", rpt.Entries[2].Label)
}

func TestDecodeMismatchPartialValues(t *testing.T) {
	// Включены два члена, а значение пришло одно: отчёт доставляется
	// с разобранной частью и предупреждением
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewBitStringVariant([]byte{0xc0}, 2)),
		ok(variant.NewFloat32Variant(1.5)),
	}

	var d Decoder
	rpt, err := d.Decode(results, rcb.OptFlds{}, 2)

	assert.NoError(t, err)
	assert.NotNil(t, rpt.Mismatch)
	assert.Equal(t, "report decode mismatch: value count inconsistent with inclusion: want 2, got 1", rpt.Mismatch.Error())
	assert.Equal(t, variant.NewFloat32Variant(1.5), rpt.Entries[0].Value)
	assert.Nil(t, rpt.Entries[1].Value)
}

func TestDecodeMismatchInclusionSize(t *testing.T) {
	// Длина inclusion не совпала с числом членов набора из SCL
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewBitStringVariant([]byte{0x80}, 2)),
		ok(variant.NewFloat32Variant(1.5)),
	}

	var d Decoder
	rpt, err := d.Decode(results, rcb.OptFlds{}, 24)

	assert.NoError(t, err)
	assert.NotNil(t, rpt.Mismatch)
	assert.Equal(t, 24, rpt.Mismatch.Want)
	assert.Equal(t, 2, rpt.Mismatch.Got)
	// записи строятся по фактической длине inclusion
	assert.Len(t, rpt.Entries, 2)
}

func TestDecodeMissingInclusion(t *testing.T) {
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewUnsignedVariant(1)), // SqNum
	}

	var d Decoder
	rpt, err := d.Decode(results, rcb.OptFlds{SeqNum: true}, 0)

	assert.NoError(t, err)
	assert.NotNil(t, rpt.Mismatch)
	assert.Equal(t, "report decode mismatch: inclusion bit-string not found", rpt.Mismatch.Error())
	assert.Equal(t, uptr(1), rpt.SqNum)
	assert.Empty(t, rpt.Entries)
}

func TestDecodeRejects(t *testing.T) {
	var d Decoder

	_, err := d.Decode(nil, rcb.OptFlds{}, 0)
	assert.EqualError(t, err, "empty report")

	_, err = d.Decode([]mms.AccessResult{
		ok(variant.NewIntegerVariant(42)),
	}, rcb.OptFlds{}, 0)
	assert.EqualError(t, err, "first report element must be a visible-string RptID")
}

func TestDecodeSegmentation(t *testing.T) {
	results := []mms.AccessResult{
		ok(variant.NewVisibleStringVariant("rptA")),
		ok(variant.NewUnsignedVariant(2)),                // SubSqNum
		ok(variant.NewBoolVariant(true)),                 // MoreSegmentsFollow
		ok(variant.NewBitStringVariant([]byte{0x80}, 1)), // inclusion
		ok(variant.NewFloat32Variant(1.5)),
	}

	var d Decoder
	rpt, err := d.Decode(results, rcb.OptFlds{Segmentation: true}, 1)

	assert.NoError(t, err)
	assert.Nil(t, rpt.Mismatch)
	assert.Equal(t, uptr(2), rpt.SubSqNum)
	assert.Equal(t, bptr(true), rpt.MoreFollows)
}

func TestLabelsForDataSet(t *testing.T) {
	labels := Labels{
		"VMC7_1LD0/LLN0$DS1": {"Beh", "Health"},
	}

	assert.Equal(t, []string{"Beh", "Health"}, labels.ForDataSet("VMC7_1LD0/LLN0$DS1"))
	// IED назвал домен иначе - ищем по суффиксу от первого '$'
	assert.Equal(t, []string{"Beh", "Health"}, labels.ForDataSet("OTHERLD/LLN0$DS1"))
	assert.Nil(t, labels.ForDataSet("VMC7_1LD0/LLN0$DS2"))
	assert.Nil(t, labels.ForDataSet(""))
	assert.Nil(t, Labels(nil).ForDataSet("VMC7_1LD0/LLN0$DS1"))
}

func TestReportString(t *testing.T) {
	rpt := &Report{
		RptID:     "rptA",
		DatSet:    "VMC7LD0/LLN0$DS1",
		SqNum:     uptr(7),
		Inclusion: variant.BitStringValue{Data: []byte{0xa0}, BitSize: 3},
	}
	assert.Equal(t, `report "rptA" dataset "VMC7LD0/LLN0$DS1" seq 7 included 2/3`, rpt.String())
}

func TestQualityLabel(t *testing.T) {
	assert.Equal(t, "good", QualityLabel(variant.BitStringValue{Data: []byte{0x02, 0x08}, BitSize: 13}))
	assert.Equal(t, "questionable", QualityLabel(variant.BitStringValue{Data: []byte{0x03, 0x00}, BitSize: 13}))
	assert.Equal(t, "invalid", QualityLabel(variant.BitStringValue{Data: []byte{0x00, 0x00}, BitSize: 13}))
	assert.Equal(t, "", QualityLabel(variant.BitStringValue{Data: []byte{0x12, 0x34}, BitSize: 13}))
}

func TestFormatQuality(t *testing.T) {
	good := variant.NewBitStringVariant([]byte{0x02, 0x08}, 13)
	assert.Equal(t, "0208 (good)", FormatQuality(good))

	unknown := variant.NewBitStringVariant([]byte{0x12, 0x34}, 13)
	assert.Equal(t, "1234", FormatQuality(unknown))

	assert.Equal(t, "", FormatQuality(nil))
}
