package rcb

import (
	"fmt"

	"github.com/slonegd/mmsreport/osi/mms/variant"
)

// Step идентифицирует шаг настройки RCB
type Step int

const (
	// StepRead - чтение текущих значений атрибутов
	StepRead Step = iota + 1
	// StepDisable - выключение активного блока перед перенастройкой
	StepDisable
	// StepReserve - резервирование (Resv для URCB, ResvTms для BRCB)
	StepReserve
	// StepOptFlds - запись политики включения полей отчёта
	StepOptFlds
	// StepTrgOps - запись условий срабатывания
	StepTrgOps
	// StepTiming - запись BufTm и IntgPd
	StepTiming
	// StepGI - запрос общего опроса
	StepGI
	// StepEnable - включение блока
	StepEnable
)

// String возвращает имя шага
func (s Step) String() string {
	switch s {
	case StepRead:
		return "read"
	case StepDisable:
		return "disable"
	case StepReserve:
		return "reserve"
	case StepOptFlds:
		return "opt-flds"
	case StepTrgOps:
		return "trg-ops"
	case StepTiming:
		return "timing"
	case StepGI:
		return "gi"
	case StepEnable:
		return "enable"
	default:
		return fmt.Sprintf("step-%d", int(s))
	}
}

// EnableError - ошибка настройки RCB на конкретном шаге.
// Не фатальна для клиента: остальные RCB продолжают настраиваться
type EnableError struct {
	RCB   Reference
	Step  Step
	Cause error
}

// Error возвращает описание ошибки
func (e *EnableError) Error() string {
	return fmt.Sprintf("rcb %s: enable failed at step %s: %v", e.RCB, e.Step, e.Cause)
}

// Unwrap возвращает причину ошибки
func (e *EnableError) Unwrap() error {
	return e.Cause
}

// Write описывает одну запись атрибута RCB в плане настройки
type Write struct {
	Step      Step
	Attribute string
	Value     *variant.Variant
	// object-access-denied на этом шаге не считается ошибкой:
	// выключить чужой зарезервированный URCB не получится
	IgnoreAccessDenied bool
}

// Значения по умолчанию для плана настройки
const (
	// DefaultIntgPdMs - период Integrity-отчётов, мс
	DefaultIntgPdMs = 10000
	// DefaultResvTms - время резервирования BRCB, с
	DefaultResvTms = 60
)

// EnablePlan возвращает последовательность записей для активации RCB.
// current - значения, прочитанные на шаге StepRead. Порядок фиксирован:
// выключение (если блок активен), резервирование, OptFlds, TrgOps,
// BufTm и IntgPd, запрос GI, включение. PurgeBuf не трогаем: буфер BRCB
// с накопленными событиями ценнее чистого старта
func EnablePlan(ref Reference, current Values, intgPdMs uint64) []Write {
	var plan []Write

	if current.RptEna {
		plan = append(plan, Write{
			Step:               StepDisable,
			Attribute:          "RptEna",
			Value:              variant.NewBoolVariant(false),
			IgnoreAccessDenied: ref.Kind() == KindURCB,
		})
	}

	if ref.Kind() == KindBRCB {
		plan = append(plan, Write{
			Step:      StepReserve,
			Attribute: "ResvTms",
			Value:     variant.NewIntegerVariant(DefaultResvTms),
		})
	} else {
		plan = append(plan, Write{
			Step:      StepReserve,
			Attribute: "Resv",
			Value:     variant.NewBoolVariant(true),
		})
	}

	plan = append(plan,
		Write{
			Step:      StepOptFlds,
			Attribute: "OptFlds",
			Value:     DefaultOptFlds().Variant(),
		},
		Write{
			Step:      StepTrgOps,
			Attribute: "TrgOps",
			Value:     DefaultTrgOps().Variant(),
		},
		Write{
			Step:      StepTiming,
			Attribute: "BufTm",
			Value:     variant.NewUnsignedVariant(0),
		},
		Write{
			Step:      StepTiming,
			Attribute: "IntgPd",
			Value:     variant.NewUnsignedVariant(intgPdMs),
		},
		Write{
			Step:      StepGI,
			Attribute: "GI",
			Value:     variant.NewBoolVariant(true),
		},
		Write{
			Step:      StepEnable,
			Attribute: "RptEna",
			Value:     variant.NewBoolVariant(true),
		},
	)

	return plan
}
