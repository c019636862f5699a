package report

import (
	"encoding/hex"

	"github.com/slonegd/mmsreport/osi/mms/variant"
)

// QualityLabel возвращает текстовую метку распространённых кодов качества
// IEC 61850, пустую строку для остальных
func QualityLabel(q variant.BitStringValue) string {
	switch hex.EncodeToString(q.Data) {
	case "0208":
		return "good"
	case "0300":
		return "questionable"
	case "0000":
		return "invalid"
	default:
		return ""
	}
}

// FormatQuality возвращает качество в виде hex-кода с меткой, например
// "0208 (good)"
func FormatQuality(q *variant.Variant) string {
	if q == nil {
		return ""
	}
	bits := q.BitString()
	code := hex.EncodeToString(bits.Data)
	if label := QualityLabel(bits); label != "" {
		return code + " (" + label + ")"
	}
	return code
}
