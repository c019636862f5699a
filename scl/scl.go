// Package scl извлекает из файлов SCL/ICD (IEC 61850-6) состав наборов
// данных: имена членов (FCDA) в порядке объявления. Имена используются
// как подписи значений в отчётах.
package scl

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// Модель файла SCL в объёме, достаточном для обхода
// IED -> AccessPoint -> Server -> LDevice -> LN0/LN -> DataSet -> FCDA.
// Имена элементов сверяются без учёта пространства имён
type sclFile struct {
	IEDs []sclIED `xml:"IED"`
}

type sclIED struct {
	Name         string           `xml:"name,attr"`
	AccessPoints []sclAccessPoint `xml:"AccessPoint"`
}

type sclAccessPoint struct {
	Servers []sclServer `xml:"Server"`
}

type sclServer struct {
	LDevices []sclLDevice `xml:"LDevice"`
}

type sclLDevice struct {
	Inst string  `xml:"inst,attr"`
	LN0  []sclLN `xml:"LN0"`
	LNs  []sclLN `xml:"LN"`
}

type sclLN struct {
	LNClass  string       `xml:"lnClass,attr"`
	Inst     string       `xml:"inst,attr"`
	DataSets []sclDataSet `xml:"DataSet"`
}

type sclDataSet struct {
	Name string `xml:"name,attr"`
	// члены набора в порядке объявления: FCDA вперемешку с FCCB
	Members []sclMember `xml:",any"`
}

type sclMember struct {
	XMLName xml.Name
	DoName  string `xml:"doName,attr"`
	Do      string `xml:"do,attr"`
	DaName  string `xml:"daName,attr"`
	Da      string `xml:"da,attr"`
	CBName  string `xml:"cbName,attr"`
}

// Parse читает SCL/ICD файл и возвращает словарь: ключ - идентификатор
// набора данных (в формах, которыми IED называет DatSet в отчётах),
// значение - имена членов по порядку. Один набор регистрируется под
// несколькими ключами
func Parse(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SCL file: %w", err)
	}
	defer f.Close()

	labels, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SCL file %s: %w", path, err)
	}
	return labels, nil
}

func parse(r io.Reader) (map[string][]string, error) {
	decoder := xml.NewDecoder(r)
	// экспорты из инструментов производителей бывают в windows-125x и latin-1
	decoder.CharsetReader = charsetReader

	var file sclFile
	if err := decoder.Decode(&file); err != nil {
		return nil, err
	}

	result := make(map[string][]string)
	for _, ied := range file.IEDs {
		if ied.Name == "" {
			continue
		}
		for _, ap := range ied.AccessPoints {
			for _, server := range ap.Servers {
				for _, ld := range server.LDevices {
					lns := append(append([]sclLN{}, ld.LN0...), ld.LNs...)
					for _, ln := range lns {
						collectDataSets(result, ied.Name, ld.Inst, ln)
					}
				}
			}
		}
	}
	return result, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

func collectDataSets(result map[string][]string, iedName, ldInst string, ln sclLN) {
	for _, ds := range ln.DataSets {
		if ds.Name == "" {
			continue
		}

		var members []string
		for _, m := range ds.Members {
			switch m.XMLName.Local {
			case "FCDA":
				members = append(members, fcdaLabel(m))
			case "FCCB":
				name := m.CBName
				if name == "" {
					name = "FCCB"
				}
				members = append(members, name)
			}
		}
		if len(members) == 0 {
			continue
		}

		for _, key := range dataSetKeys(iedName, ldInst, ln.LNClass, ln.Inst, ds.Name) {
			result[key] = members
		}
	}
}

// fcdaLabel строит подпись члена: doName или doName.daName
func fcdaLabel(m sclMember) string {
	do := m.DoName
	if do == "" {
		do = m.Do
	}
	da := m.DaName
	if da == "" {
		da = m.Da
	}
	if da != "" {
		return strings.Trim(do+"."+da, ".")
	}
	if do == "" {
		return "?"
	}
	return do
}

// dataSetKeys строит ключи, под которыми IED может назвать набор данных
// в DatSet отчёта: с инстансом LN и без, с доменом "IED" и "IED_1<ld>",
// а также через имя логического устройства
func dataSetKeys(iedName, ldInst, lnClass, lnInst, dsName string) []string {
	lnPart := lnClass
	if lnInst != "" && lnInst != "0" {
		lnPart = lnClass + lnInst
	}
	lnVariants := []string{lnPart}
	if lnPart != lnClass {
		lnVariants = append(lnVariants, lnClass)
	}

	var keys []string
	for _, ln := range lnVariants {
		keys = append(keys,
			iedName+"/"+ln+"$"+dsName,
			iedName+"_1"+ldInst+"/"+ln+"$"+dsName,
		)
	}
	keys = append(keys,
		iedName+"/"+ldInst+"$"+dsName,
		iedName+"_1"+ldInst+"/"+ldInst+"$"+dsName,
	)

	seen := make(map[string]struct{}, len(keys))
	uniq := keys[:0]
	for _, key := range keys {
		if _, found := seen[key]; found {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, key)
	}
	return uniq
}
