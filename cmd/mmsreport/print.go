package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/slonegd/mmsreport"
	"github.com/slonegd/mmsreport/report"
)

// printReport возвращает обработчик, печатающий отчёт в читаемом виде:
// поля заголовка, затем включённые члены с именами из SCL. verbose
// добавляет к членам ссылки на данные
func printReport(w io.Writer, verbose bool) mmsreport.ReportHandler {
	return func(rpt *report.Report) {
		fmt.Fprintf(w, "report %q\n", rpt.RptID)
		if rpt.DatSet != "" {
			fmt.Fprintf(w, "  DatSet      : %s\n", rpt.DatSet)
		}
		if rpt.SqNum != nil {
			fmt.Fprintf(w, "  SqNum       : %d\n", *rpt.SqNum)
		}
		if rpt.SubSqNum != nil {
			more := rpt.MoreFollows != nil && *rpt.MoreFollows
			fmt.Fprintf(w, "  SubSqNum    : %d (more follows: %t)\n", *rpt.SubSqNum, more)
		}
		if rpt.TimeOfEntry != nil {
			fmt.Fprintf(w, "  TimeOfEntry : %s\n", rpt.TimeOfEntry.UTC().Format(time.RFC3339Nano))
		}
		if rpt.ConfRev != nil {
			fmt.Fprintf(w, "  ConfRev     : %d\n", *rpt.ConfRev)
		}
		if rpt.BufOvfl != nil {
			fmt.Fprintf(w, "  BufOvfl     : %t\n", *rpt.BufOvfl)
		}
		if len(rpt.EntryID) > 0 {
			fmt.Fprintf(w, "  EntryID     : %x\n", rpt.EntryID)
		}
		if rpt.Mismatch != nil {
			fmt.Fprintf(w, "  ! %s\n", rpt.Mismatch)
		}
		fmt.Fprintf(w, "  entries (%d of %d):\n", rpt.IncludedCount(), len(rpt.Entries))
		for i := range rpt.Entries {
			entry := &rpt.Entries[i]
			if !entry.Included {
				continue
			}
			fmt.Fprintf(w, "    %s\n", formatEntry(entry, verbose))
		}
		fmt.Fprintln(w)
	}
}

// formatEntry собирает строку одного члена: индекс, метка, значение,
// качество и метка времени, если они пришли в отчёте
func formatEntry(entry *report.Entry, verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d]", entry.Index)
	if entry.Label != "" {
		b.WriteString(" " + entry.Label)
	}
	b.WriteString(": ")
	b.WriteString(entry.Value.String())
	if q := report.FormatQuality(entry.Quality); q != "" {
		b.WriteString("  quality=" + q)
	}
	if entry.Timestamp != nil {
		b.WriteString("  time=" + entry.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	if entry.Reason != nil {
		b.WriteString("  reason=" + entry.Reason.String())
	}
	if verbose && entry.Reference != "" {
		b.WriteString("  ref=" + entry.Reference)
	}
	return b.String()
}
