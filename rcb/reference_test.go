package rcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name      string
		ref       string
		want      Reference
		wantError string
	}{
		{
			name: "слеш между доменом и путём (формат SCL)",
			ref:  "VMC7_1LD0/LLN0$BR$brcbA01",
			want: Reference{Domain: "VMC7_1LD0", Item: "LLN0$BR$brcbA01"},
		},
		{
			name: "пробел между доменом и путём (формат MMS)",
			ref:  "VMC7_1LD0 LLN0$RP$urcbA01",
			want: Reference{Domain: "VMC7_1LD0", Item: "LLN0$RP$urcbA01"},
		},
		{
			name: "точечная нотация без класса RCB",
			ref:  "VMC7_2LD0/LLN0.CB_LDPX_DQPO01",
			want: Reference{Domain: "VMC7_2LD0", Item: "LLN0.CB_LDPX_DQPO01"},
		},
		{
			name:      "нет разделителя",
			ref:       "LLN0$BR$brcbA01",
			wantError: `invalid RCB reference "LLN0$BR$brcbA01": expected DOMAIN/ITEM`,
		},
		{
			name:      "пустой домен",
			ref:       "/LLN0$BR$brcbA01",
			wantError: `invalid RCB reference "/LLN0$BR$brcbA01": expected DOMAIN/ITEM`,
		},
		{
			name:      "пустой путь",
			ref:       "VMC7_1LD0/",
			wantError: `invalid RCB reference "VMC7_1LD0/": expected DOMAIN/ITEM`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.ref)
			assert.Equal(t, tt.want, got, tt.name)
			assert.Equal(t, tt.wantError, func() string {
				if err == nil {
					return ""
				}
				return err.Error()
			}(), tt.name)
		})
	}
}

func TestReferenceKind(t *testing.T) {
	assert.Equal(t, KindBRCB, Reference{Item: "LLN0$BR$brcbA01"}.Kind())
	assert.Equal(t, KindURCB, Reference{Item: "LLN0$RP$urcbA01"}.Kind())
	// без разделителя класс неизвестен, считаем небуферизованным
	assert.Equal(t, KindURCB, Reference{Item: "LLN0.rcbA"}.Kind())
}

func TestReferenceString(t *testing.T) {
	ref := Reference{Domain: "VMC7_1LD0", Item: "LLN0$BR$brcbA01"}
	assert.Equal(t, "VMC7_1LD0/LLN0$BR$brcbA01", ref.String())
}

func TestReferenceAttribute(t *testing.T) {
	ref := Reference{Domain: "VMC7_1LD0", Item: "LLN0$BR$brcbA01"}
	assert.Equal(t, "LLN0$BR$brcbA01$RptEna", ref.Attribute("RptEna"))
	assert.Equal(t, "LLN0$BR$brcbA01$OptFlds", ref.Attribute("OptFlds"))
}

func TestReferenceVariants(t *testing.T) {
	tests := []struct {
		name string
		ref  Reference
		kind Kind
		want []Reference
	}{
		{
			name: "ссылка с $BR$ используется как есть",
			ref:  Reference{Domain: "VMC7_1LD0", Item: "LLN0$BR$brcbA01"},
			kind: KindBRCB,
			want: []Reference{{Domain: "VMC7_1LD0", Item: "LLN0$BR$brcbA01"}},
		},
		{
			name: "точечная нотация с префиксом CB_",
			ref:  Reference{Domain: "VMC7_2LD0", Item: "LLN0.CB_LDPX_DQPO01"},
			kind: KindBRCB,
			want: []Reference{
				{Domain: "VMC7_2LD0", Item: "LLN0$BR$CB_LDPX_DQPO01"},
				{Domain: "VMC7_2LD0", Item: "LLN0$BR$LDPX_DQPO01"},
				{Domain: "VMC7_2LD0", Item: "LLN0$BR$BRCB_CB_LDPX_DQPO01"},
				{Domain: "VMC7_2LD0", Item: "LLN0$BR$URCB_CB_LDPX_DQPO01"},
			},
		},
		{
			name: "точечная нотация без префикса CB_, небуферизованный",
			ref:  Reference{Domain: "LD0", Item: "LLN0.rcbA"},
			kind: KindURCB,
			want: []Reference{
				{Domain: "LD0", Item: "LLN0$RP$rcbA"},
				{Domain: "LD0", Item: "LLN0$RP$BRCB_rcbA"},
				{Domain: "LD0", Item: "LLN0$RP$URCB_rcbA"},
			},
		},
		{
			name: "без точки и без класса - как есть",
			ref:  Reference{Domain: "LD0", Item: "LLN0$rcbA"},
			kind: KindURCB,
			want: []Reference{{Domain: "LD0", Item: "LLN0$rcbA"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.Variants(tt.kind), tt.name)
		})
	}
}

func TestIsControlBlock(t *testing.T) {
	tests := []struct {
		itemID string
		want   bool
	}{
		{"LLN0$BR$brcbA01", true},
		{"LLN0$RP$urcbA01", true},
		{"LLN0$BR$brcbA01$RptEna", false}, // атрибут, не сам блок
		{"LLN0$RP$urcbA01$OptFlds", false},
		{"LLN0$DS1", false},     // набор данных
		{"MMXU1$MX$A$phsA", false},
		{"LLN0$BR$", false},     // пустое имя
		{"LLN0", false},
	}

	for _, tt := range tests {
		t.Run(tt.itemID, func(t *testing.T) {
			assert.Equal(t, tt.want, IsControlBlock(tt.itemID), tt.itemID)
		})
	}
}
