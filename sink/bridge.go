package sink

import (
	"strconv"
	"strings"
	"time"

	"github.com/slonegd/mmsreport/osi/mms/variant"
	"github.com/slonegd/mmsreport/report"
)

// reportMetric имя метрики для всех значений отчётов
const reportMetric = "mms_report_value"

// tsFloorMs - 2000-01-01T00:00:00Z в миллисекундах. Более ранние метки
// времени означают невыставленные часы IED (эпоха BinaryTime - 1984 год)
const tsFloorMs = 946684800000

// Имена заголовочных членов отчёта в метке member
const (
	memberSeqNum  = "SeqNum"
	memberBufOvfl = "BufOvfl"
)

// phasorPatterns - имена членов типа фазор (магнитуда + угол). Когда SCL
// не дает имён компонентов, пара чисел такого члена подписывается mag/ang
var phasorPatterns = []string{"phsA", "phsB", "phsC"}

// PushReport ставит в очередь отправки числовые значения отчёта: сэмпл
// на каждое число включённого члена плюс SeqNum и BufOvfl из заголовка.
// Метка member - имя из SCL, для безымянных членов entry_<индекс>.
// Многокомпонентные члены различаются меткой component
func (s *Sink) PushReport(rpt *report.Report) {
	if rpt == nil || (len(rpt.Entries) == 0 && rpt.SqNum == nil && rpt.BufOvfl == nil) {
		return
	}

	rptID := orUnknown(rpt.RptID)
	dataSet := orUnknown(rpt.DatSet)

	var lines []string
	headerTs := headerTimestampMs(rpt)

	if rpt.SqNum != nil {
		lines = append(lines, formatLine(reportMetric,
			reportLabels(rptID, dataSet, memberSeqNum, ""), float64(*rpt.SqNum), headerTs))
	}
	if rpt.BufOvfl != nil {
		lines = append(lines, formatLine(reportMetric,
			reportLabels(rptID, dataSet, memberBufOvfl, ""), boolValue(*rpt.BufOvfl), headerTs))
	}

	for i := range rpt.Entries {
		entry := &rpt.Entries[i]
		nums := numericValues(entry.Value)
		if len(nums) == 0 {
			continue
		}

		member := entry.Label
		if member == "" {
			member = "entry_" + strconv.Itoa(entry.Index)
		}
		ts := entryTimestampMs(entry, rpt)
		components := componentNames(member, len(nums))

		for idx, num := range nums {
			component := ""
			if len(nums) > 1 {
				component = strconv.Itoa(idx)
				if idx < len(components) {
					component = components[idx]
				}
			}
			lines = append(lines, formatLine(reportMetric,
				reportLabels(rptID, dataSet, member, component), num, ts))
		}
	}

	s.add(lines)
}

// reportLabels собирает метки сэмпла отчёта в фиксированном порядке
func reportLabels(rptID, dataSet, member, component string) []label {
	labels := []label{
		{name: "rpt_id", value: rptID},
		{name: "data_set", value: dataSet},
		{name: "member", value: member},
	}
	if component != "" {
		labels = append(labels, label{name: "component", value: component})
	}
	return labels
}

// orUnknown подставляет "unknown" вместо пустого значения метки
func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// numericValues рекурсивно собирает числовые значения варианта в порядке
// обхода. Булевы значения превращаются в 0/1, строки, битовые строки и
// метки времени пропускаются
func numericValues(v *variant.Variant) []float64 {
	var out []float64
	collectNumeric(v, &out)
	return out
}

func collectNumeric(v *variant.Variant, out *[]float64) {
	if v == nil {
		return
	}

	switch v.Type() {
	case variant.Bool:
		*out = append(*out, boolValue(v.Bool()))
	case variant.Integer, variant.BCD:
		*out = append(*out, float64(v.Int64()))
	case variant.Unsigned:
		*out = append(*out, float64(v.Uint64()))
	case variant.Float32, variant.Float64:
		*out = append(*out, v.Float64())
	case variant.BoolArray:
		for _, b := range v.Bools() {
			*out = append(*out, boolValue(b))
		}
	case variant.Structure, variant.Array:
		for _, item := range v.Items() {
			collectNumeric(item, out)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// componentNames возвращает имена компонентов многокомпонентного члена.
// Пока единственный источник - подстановка mag/ang для фазоров
func componentNames(member string, n int) []string {
	if n != 2 {
		return nil
	}
	for _, pattern := range phasorPatterns {
		if strings.Contains(member, pattern) {
			return []string{"mag", "ang"}
		}
	}
	return nil
}

// entryTimestampMs возвращает метку времени сэмпла: время члена,
// иначе время заголовка отчёта, иначе текущее
func entryTimestampMs(entry *report.Entry, rpt *report.Report) int64 {
	if entry.Timestamp != nil {
		if ms := entry.Timestamp.UnixMilli(); ms >= tsFloorMs {
			return ms
		}
	}
	return headerTimestampMs(rpt)
}

func headerTimestampMs(rpt *report.Report) int64 {
	if rpt.TimeOfEntry != nil {
		if ms := rpt.TimeOfEntry.UnixMilli(); ms >= tsFloorMs {
			return ms
		}
	}
	return time.Now().UnixMilli()
}
