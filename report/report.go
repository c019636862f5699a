// Package report декодирует informationReport в структурированный отчёт:
// заголовок по битам OptFlds, битовая строка inclusion и по одной записи
// на каждый член набора данных.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slonegd/mmsreport/osi/mms"
	"github.com/slonegd/mmsreport/osi/mms/variant"
	"github.com/slonegd/mmsreport/rcb"
)

// Report - декодированный отчёт IED. Поля заголовка присутствуют только
// если соответствующий бит OptFlds установлен, отсутствующие равны nil
type Report struct {
	RptID       string
	OptFlds     rcb.OptFlds // действующая политика: с провода или из подписки
	SqNum       *uint64
	TimeOfEntry *time.Time
	DatSet      string
	BufOvfl     *bool
	EntryID     []byte
	ConfRev     *uint64
	SubSqNum    *uint64
	MoreFollows *bool
	Inclusion   variant.BitStringValue
	Entries     []Entry
	// Mismatch отмечает расхождение структуры отчёта с ожидаемой;
	// отчёт при этом доставлен с разобранной частью
	Mismatch *MismatchError
}

// Entry - один член набора данных в отчёте. Записи идут в порядке набора
// данных, по записи на каждый член; Value заполнен только у включённых
type Entry struct {
	Index     int
	Label     string
	Included  bool
	Reference string // data-reference, если бит установлен
	Value     *variant.Variant
	Quality   *variant.Variant // битовая строка качества
	Timestamp *time.Time
	Reason    *variant.Variant // reason-for-inclusion, если бит установлен
}

// MismatchError описывает расхождение числа элементов отчёта с inclusion
type MismatchError struct {
	Reason string
	Want   int
	Got    int
}

// Error возвращает описание расхождения
func (e *MismatchError) Error() string {
	if e.Want != 0 || e.Got != 0 {
		return fmt.Sprintf("report decode mismatch: %s: want %d, got %d", e.Reason, e.Want, e.Got)
	}
	return "report decode mismatch: " + e.Reason
}

// Labels хранит имена членов наборов данных по ссылке набора (из SCL)
type Labels map[string][]string

// ForDataSet возвращает имена членов набора данных: сначала точное
// совпадение ключа, затем поиск по суффиксу начиная с первого '$'
// (IED передаёт DatSet в форме "DOMAIN/LN$DS", а SCL может называть
// домен иначе)
func (l Labels) ForDataSet(ref string) []string {
	if len(l) == 0 || ref == "" {
		return nil
	}
	if labels, ok := l[ref]; ok {
		return labels
	}
	idx := strings.IndexByte(ref, '$')
	if idx < 0 {
		return nil
	}
	suffix := ref[idx:]
	for key, labels := range l {
		if len(key) > len(suffix) && strings.HasSuffix(key, suffix) {
			return labels
		}
	}
	return nil
}

// Decoder разбирает listOfAccessResult отчётов в Report.
// Labels может быть nil - записи останутся без имён
type Decoder struct {
	Labels Labels
}

// размер битовой строки OptFlds, по нему распознаётся второй элемент
const optFldsBitCount = 10

// Decode разбирает список результатов informationReport. subscribed -
// политика OptFlds подписки, применяется когда IED не передал OptFlds
// в самом отчёте. memberCount - число членов набора данных (0 если
// неизвестно, тогда берётся длина inclusion).
//
// Ошибка возвращается только если первый элемент не RptID: такой пакет
// не является отчётом. Прочие расхождения не фатальны - отчёт
// доставляется с разобранной частью и заполненным Mismatch
func (d *Decoder) Decode(results []mms.AccessResult, subscribed rcb.OptFlds, memberCount int) (*Report, error) {
	if len(results) == 0 {
		return nil, errors.New("empty report")
	}
	first := elementValue(results, 0)
	if first == nil || first.Type() != variant.VisibleString {
		return nil, errors.New("first report element must be a visible-string RptID")
	}

	rpt := &Report{
		RptID:   first.Str(),
		OptFlds: subscribed,
	}
	pos := 1

	// OptFlds с провода важнее подписанных: IED мог скорректировать политику
	if v := elementValue(results, pos); v != nil && v.Type() == variant.BitString &&
		v.BitString().BitSize == optFldsBitCount {
		rpt.OptFlds = rcb.OptFldsFromBitString(v.BitString())
		pos++
	}

	pos = d.decodeHeader(rpt, results, pos)

	incl := elementValue(results, pos)
	if incl == nil || incl.Type() != variant.BitString {
		rpt.noteMismatch(&MismatchError{Reason: "inclusion bit-string not found"})
		return rpt, nil
	}
	rpt.Inclusion = incl.BitString()
	pos++

	n := rpt.Inclusion.BitSize
	if memberCount > 0 && memberCount != n {
		rpt.noteMismatch(&MismatchError{
			Reason: "inclusion size differs from dataset",
			Want:   memberCount,
			Got:    n,
		})
	}

	labels := d.Labels.ForDataSet(rpt.DatSet)
	rpt.Entries = make([]Entry, n)
	var included []int
	for m := 0; m < n; m++ {
		rpt.Entries[m] = Entry{Index: m, Included: rpt.Inclusion.Bit(m)}
		if m < len(labels) {
			rpt.Entries[m].Label = labels[m]
		}
		if rpt.Entries[m].Included {
			included = append(included, m)
		}
	}

	d.decodeEntries(rpt, results, pos, included)
	return rpt, nil
}

// decodeHeader разбирает необязательные поля заголовка в фиксированном
// порядке, каждое присутствует только при установленном бите OptFlds
func (d *Decoder) decodeHeader(rpt *Report, results []mms.AccessResult, pos int) int {
	if rpt.OptFlds.SeqNum {
		if v := elementValue(results, pos); v != nil {
			n := v.Uint64()
			rpt.SqNum = &n
		}
		pos++
	}
	if rpt.OptFlds.ReportTimestamp {
		if v := elementValue(results, pos); v != nil {
			if t := v.Time(); !t.IsZero() {
				rpt.TimeOfEntry = &t
			}
		}
		pos++
	}
	if rpt.OptFlds.DataSetName {
		if v := elementValue(results, pos); v != nil {
			rpt.DatSet = v.Str()
		}
		pos++
	}
	if rpt.OptFlds.BufferOverflow {
		if v := elementValue(results, pos); v != nil {
			b := v.Bool()
			rpt.BufOvfl = &b
		}
		pos++
	}
	if rpt.OptFlds.EntryID {
		if v := elementValue(results, pos); v != nil {
			rpt.EntryID = v.Bytes()
		}
		pos++
	}
	if rpt.OptFlds.ConfRevision {
		if v := elementValue(results, pos); v != nil {
			n := v.Uint64()
			rpt.ConfRev = &n
		}
		pos++
	}
	if rpt.OptFlds.Segmentation {
		if v := elementValue(results, pos); v != nil {
			n := v.Uint64()
			rpt.SubSqNum = &n
		}
		pos++
		if v := elementValue(results, pos); v != nil {
			b := v.Bool()
			rpt.MoreFollows = &b
		}
		pos++
	}
	return pos
}

// decodeEntries раскладывает значения по включённым членам. Поддерживает
// оба наблюдаемых формата: колоночный (все значения, затем все качества,
// затем все метки времени) и строчный (каждое значение - структура
// [значение, качество, время]). Формат определяется подсчётом оставшихся
// элементов относительно числа включённых членов
func (d *Decoder) decodeEntries(rpt *Report, results []mms.AccessResult, pos int, included []int) {
	remaining := len(results) - pos
	p := len(included)

	if p == 0 {
		if remaining > 0 {
			rpt.noteMismatch(&MismatchError{
				Reason: "elements after empty inclusion",
				Got:    remaining,
			})
		}
		return
	}
	if remaining == 0 {
		// отчёт без блока значений: только факт включения членов
		return
	}

	// блок причин идёт последним: по битовой строке на включённый член
	reasonCount := 0
	if rpt.OptFlds.ReasonForInclusion && remaining >= 2*p {
		reasonCount = p
	}

	// блок ссылок предшествует значениям
	refCount := 0
	if rpt.OptFlds.DataReference && remaining-reasonCount >= 2*p {
		refCount = p
	}

	valueCount := remaining - reasonCount - refCount
	columns := 0
	switch valueCount {
	case p:
		columns = 1
	case 2 * p:
		columns = 2
	case 3 * p:
		columns = 3
	default:
		columns = 1
		rpt.noteMismatch(&MismatchError{
			Reason: "value count inconsistent with inclusion",
			Want:   p,
			Got:    valueCount,
		})
	}

	for k, m := range included {
		if k >= refCount {
			break
		}
		if v := elementValue(results, pos+k); v != nil {
			rpt.Entries[m].Reference = v.Str()
		}
	}
	pos += refCount

	for k, m := range included {
		if k >= valueCount {
			break
		}
		entry := &rpt.Entries[m]
		entry.Value = elementValue(results, pos+k)
		if columns == 1 {
			splitRowStructure(entry)
			continue
		}
		if q := elementValue(results, pos+p+k); q != nil && q.Type() == variant.BitString {
			entry.Quality = q
		}
		if columns >= 3 {
			if v := elementValue(results, pos+2*p+k); v != nil {
				if t := v.Time(); !t.IsZero() {
					entry.Timestamp = &t
				}
			}
		}
	}
	// блок причин считаем от хвоста списка: при расхождении числа
	// значений позиция после них ненадёжна
	reasonStart := len(results) - reasonCount
	for k, m := range included {
		if k >= reasonCount {
			break
		}
		if v := elementValue(results, reasonStart+k); v != nil && v.Type() == variant.BitString {
			rpt.Entries[m].Reason = v
		}
	}
}

// splitRowStructure распаковывает строчный формат: структура из 3-4
// элементов, где предпоследний или последний - битовая строка качества,
// а последний может быть меткой времени. Структуры других форм остаются
// значением как есть: AnalogueValue {i, f} и Vector {mag, ang} - это
// легальные значения-структуры
func splitRowStructure(entry *Entry) {
	v := entry.Value
	if v == nil || v.Type() != variant.Structure {
		return
	}
	items := v.Items()
	if len(items) < 3 || len(items) > 4 {
		return
	}

	var quality, ts *variant.Variant
	if len(items) == 3 {
		switch {
		case isQuality(items[2]):
			// [значение, резерв, качество] без времени
			quality = items[2]
		case isQuality(items[1]) || isTimestamp(items[2]):
			quality, ts = items[1], items[2]
		default:
			return
		}
	} else {
		// [значение, резерв, качество, время]
		quality, ts = items[2], items[3]
	}

	if !isQuality(quality) && !isTimestamp(ts) {
		return
	}

	entry.Value = items[0]
	if isQuality(quality) {
		entry.Quality = quality
	}
	if isTimestamp(ts) {
		t := ts.Time()
		entry.Timestamp = &t
	}
}

func isQuality(v *variant.Variant) bool {
	return v != nil && v.Type() == variant.BitString
}

func isTimestamp(v *variant.Variant) bool {
	if v == nil {
		return false
	}
	return (v.Type() == variant.BinaryTime || v.Type() == variant.UTCTime) && !v.Time().IsZero()
}

// elementValue возвращает значение элемента списка или nil: ошибки
// доступа и выход за границы списка обрабатываются в одном месте
func elementValue(results []mms.AccessResult, i int) *variant.Variant {
	if i < 0 || i >= len(results) || !results[i].Success {
		return nil
	}
	return results[i].Value
}

func (r *Report) noteMismatch(e *MismatchError) {
	if r.Mismatch == nil {
		r.Mismatch = e
	}
}

// IncludedCount возвращает число включённых членов
func (r *Report) IncludedCount() int {
	return r.Inclusion.CountSetBits()
}

// String возвращает краткое описание отчёта
func (r *Report) String() string {
	seq := "-"
	if r.SqNum != nil {
		seq = fmt.Sprintf("%d", *r.SqNum)
	}
	return fmt.Sprintf("report %q dataset %q seq %s included %d/%d",
		r.RptID, r.DatSet, seq, r.IncludedCount(), r.Inclusion.BitSize)
}
