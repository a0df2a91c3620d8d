package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/academix-erp/academix/internal/accounting"
)

var statementHeader = []string{"journal_id", "reference", "date", "account_code", "account_name", "debit", "credit", "balance", "payment_ref"}

// WriteStatementCSV renders statement rows as CSV. Money columns are grouped
// with thousands separators for the requested locale.
func WriteStatementCSV(w io.Writer, rows []accounting.StatementRow, tag language.Tag) error {
	printer := message.NewPrinter(tag)
	writer := csv.NewWriter(w)
	if err := writer.Write(statementHeader); err != nil {
		return err
	}
	for _, row := range rows {
		paymentRef := ""
		if row.PaymentRef != nil {
			paymentRef = *row.PaymentRef
		}
		record := []string{
			strconv.FormatInt(row.JournalID, 10),
			row.Reference,
			row.Date.Format("2006-01-02"),
			row.AccountCode,
			row.AccountName,
			formatMoney(printer, row.Debit),
			formatMoney(printer, row.Credit),
			formatMoney(printer, row.Balance),
			paymentRef,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatMoney(p *message.Printer, v float64) string {
	return p.Sprintf("%.2f", v)
}
