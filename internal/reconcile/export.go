package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shopspring/decimal"
)

// WriteCSV streams the reconciliation report as CSV. Counts carry grouped
// thousands separators for spreadsheet readability; money stays plain with
// two decimals.
func WriteCSV(w io.Writer, companyID int64, year int, rows []Row) error {
	printer := message.NewPrinter(language.English)
	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	if _, err := fmt.Fprintf(w, "# Herd reconciliation, company %d, year %d\r\n", companyID, year); err != nil {
		return err
	}
	header := []string{"Period", "Starting Balance", "Additions", "Disposals", "Ending Balance", "Journal Depreciation", "Schedule Depreciation", "Drift", "Flagged"}
	if err := writer.Write(header); err != nil {
		return err
	}

	journalTotal := decimal.Zero
	scheduleTotal := decimal.Zero
	for _, row := range rows {
		journalTotal = journalTotal.Add(row.JournalDepreciation)
		scheduleTotal = scheduleTotal.Add(row.LedgerDepreciation)
		record := []string{
			row.Period.Code(),
			printer.Sprintf("%d", row.StartingBalance),
			strconv.Itoa(row.Additions),
			strconv.Itoa(row.Disposals),
			printer.Sprintf("%d", row.EndingBalance),
			row.JournalDepreciation.StringFixed(2),
			row.LedgerDepreciation.StringFixed(2),
			row.Drift.StringFixed(2),
			strconv.FormatBool(row.DriftFlagged),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	totals := []string{"TOTAL", "", "", "", "", journalTotal.StringFixed(2), scheduleTotal.StringFixed(2), journalTotal.Sub(scheduleTotal).StringFixed(2), ""}
	if err := writer.Write(totals); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
