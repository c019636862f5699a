package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slonegd/mmsreport/osi/mms/variant"
	"github.com/slonegd/mmsreport/report"
)

func TestPrintReport(t *testing.T) {
	seq := uint64(7)
	bufOvfl := false
	entryTime := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	rpt := &report.Report{
		RptID:       "CB_LDPHAS1_DQPO031",
		DatSet:      "VMC7_1LD0/LLN0$DS_LDPHAS1_DQPO",
		SqNum:       &seq,
		TimeOfEntry: &entryTime,
		BufOvfl:     &bufOvfl,
		Inclusion:   variant.BitStringValue{Data: []byte{0x80}, BitSize: 2},
		Entries: []report.Entry{
			{
				Index:     0,
				Label:     "Hz",
				Included:  true,
				Value:     variant.NewFloat32Variant(230.5),
				Quality:   variant.NewBitStringVariant([]byte{0x02, 0x08}, 13),
				Timestamp: &entryTime,
			},
			{Index: 1, Label: "Beh", Included: false},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, false)(rpt)
	out := buf.String()

	assert.Contains(t, out, `report "CB_LDPHAS1_DQPO031"`)
	assert.Contains(t, out, "DatSet      : VMC7_1LD0/LLN0$DS_LDPHAS1_DQPO")
	assert.Contains(t, out, "SqNum       : 7")
	assert.Contains(t, out, "TimeOfEntry : 2024-05-17T10:30:00Z")
	assert.Contains(t, out, "BufOvfl     : false")
	assert.Contains(t, out, "entries (1 of 2):")
	assert.Contains(t, out, "[0] Hz: float32(230.5)  quality=0208 (good)  time=2024-05-17T10:30:00Z")
	// исключённые члены не печатаются
	assert.NotContains(t, out, "Beh")
}

func TestPrintReportVerboseAndMismatch(t *testing.T) {
	rpt := &report.Report{
		RptID:     "rptA",
		Inclusion: variant.BitStringValue{Data: []byte{0x80}, BitSize: 1},
		Entries: []report.Entry{
			{
				Index:     0,
				Included:  true,
				Value:     variant.NewBoolVariant(true),
				Reference: "VMC7_1LD0/GGIO1$ST$Beh$stVal",
			},
		},
		Mismatch: &report.MismatchError{Reason: "value count inconsistent with inclusion", Want: 2, Got: 1},
	}

	var buf bytes.Buffer
	printReport(&buf, true)(rpt)
	out := buf.String()

	assert.Contains(t, out, "! report decode mismatch: value count inconsistent with inclusion: want 2, got 1")
	assert.Contains(t, out, "[0]: bool(true)  ref=VMC7_1LD0/GGIO1$ST$Beh$stVal")
}

func TestFormatEntrySegmented(t *testing.T) {
	sub := uint64(2)
	more := true
	rpt := &report.Report{
		RptID:       "rptSeg",
		SubSqNum:    &sub,
		MoreFollows: &more,
	}

	var buf bytes.Buffer
	printReport(&buf, false)(rpt)

	assert.Contains(t, buf.String(), "SubSqNum    : 2 (more follows: true)")
}
