package rollup

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/smallbiznis/clientdesk/internal/billingdashboard/domain"
)

// WriteCSV renders the overview as a two-column report.
func WriteCSV(w io.Writer, ov domain.Overview) error {
	rows := [][]string{
		{"Analytics Report", ov.Month},
		{"As Of", ov.AsOf.Format("2006-01-02")},
		{},
		{"Task Statistics"},
		{"Active Templates", fmt.Sprint(ov.Tasks.ActiveTemplates)},
		{"Completed", fmt.Sprint(ov.Tasks.Completions)},
		{"Completion Rate", fmt.Sprintf("%d%%", ov.Tasks.Percent)},
		{},
		{"Revenue Statistics"},
		{"This Month", ov.Growth.Current.StringFixed(2)},
		{"Last Month", ov.Growth.Previous.StringFixed(2)},
		{"Growth", fmt.Sprintf("%d%%", ov.Growth.Percent)},
		{},
		{"Payment Statistics"},
		{"Received", ov.Payments.Received.StringFixed(2)},
		{"Pending", ov.Payments.Pending.StringFixed(2)},
		{"Overdue", ov.Payments.Overdue.StringFixed(2)},
		{"Expected Total", ov.Payments.ExpectedTotal.StringFixed(2)},
		{},
		{"Top Clients"},
	}
	for _, c := range ov.TopClients {
		rows = append(rows, []string{c.Name, c.Revenue.StringFixed(2)})
	}

	out := csv.NewWriter(w)
	if err := out.WriteAll(rows); err != nil {
		return err
	}
	return out.Error()
}
