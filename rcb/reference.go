package rcb

import (
	"fmt"
	"strings"
)

// Разделители класса RCB внутри itemID
const (
	sepBuffered   = "$BR$"
	sepUnbuffered = "$RP$"
)

// Reference адресует RCB в пространстве имён MMS: домен (логическое
// устройство) и путь внутри домена, например {"VMC7_1LD0", "LLN0$BR$brcbA01"}
type Reference struct {
	Domain string
	Item   string
}

// ParseReference разбирает текстовую ссылку на RCB. Принимает оба
// наблюдаемых формата: "DOMAIN/LN$BR$NAME" (как в SCL и CLI) и
// "DOMAIN LN$BR$NAME" (как на проводе MMS). Путь внутри домена может
// быть и в точечной нотации "LN.NAME" - тогда класс RCB и точное имя
// подбираются через Variants
func ParseReference(ref string) (Reference, error) {
	idx := strings.IndexAny(ref, "/ ")
	if idx <= 0 || idx == len(ref)-1 {
		return Reference{}, fmt.Errorf("invalid RCB reference %q: expected DOMAIN/ITEM", ref)
	}
	return Reference{
		Domain: ref[:idx],
		Item:   ref[idx+1:],
	}, nil
}

// Kind определяет класс RCB по разделителю в пути:
// $BR$ - буферизованный, иначе небуферизованный
func (r Reference) Kind() Kind {
	if strings.Contains(r.Item, sepBuffered) {
		return KindBRCB
	}
	return KindURCB
}

// String возвращает ссылку в формате "DOMAIN/ITEM"
func (r Reference) String() string {
	return r.Domain + "/" + r.Item
}

// Attribute возвращает itemID атрибута RCB, например
// "LLN0$BR$brcbA01" + "RptEna" -> "LLN0$BR$brcbA01$RptEna"
func (r Reference) Attribute(attr string) string {
	return r.Item + "$" + attr
}

// Variants возвращает варианты ссылки для перебора: производители
// по-разному публикуют имена RCB в адресном пространстве MMS.
// Ссылка с $BR$/$RP$ используется как есть. Для точечной нотации
// "LN.NAME" строятся варианты с разделителем класса, без префикса
// "CB_" и с префиксами "BRCB_"/"URCB_"
func (r Reference) Variants(kind Kind) []Reference {
	if strings.Contains(r.Item, sepBuffered) || strings.Contains(r.Item, sepUnbuffered) {
		return []Reference{r}
	}

	dot := strings.LastIndex(r.Item, ".")
	if dot < 0 {
		return []Reference{r}
	}

	ln, name := r.Item[:dot], r.Item[dot+1:]
	sep := sepUnbuffered
	if kind == KindBRCB {
		sep = sepBuffered
	}

	variants := []Reference{
		{Domain: r.Domain, Item: ln + sep + name},
	}
	if stripped, ok := strings.CutPrefix(name, "CB_"); ok {
		variants = append(variants, Reference{Domain: r.Domain, Item: ln + sep + stripped})
	}
	variants = append(variants,
		Reference{Domain: r.Domain, Item: ln + sep + "BRCB_" + name},
		Reference{Domain: r.Domain, Item: ln + sep + "URCB_" + name},
	)
	return variants
}

// IsControlBlock проверяет, что itemID называет сам RCB, а не его
// атрибут или элемент набора данных: после $BR$/$RP$ идёт имя блока
// без дальнейших '$'
func IsControlBlock(itemID string) bool {
	sep := sepBuffered
	idx := strings.Index(itemID, sep)
	if idx < 0 {
		sep = sepUnbuffered
		idx = strings.Index(itemID, sep)
	}
	if idx < 0 {
		return false
	}
	name := itemID[idx+len(sep):]
	return name != "" && !strings.Contains(name, "$")
}
