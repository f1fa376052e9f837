package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Shashank23k/FLAM-QueueCTL/internal/models"
)

// No table-rendering library appears anywhere in the retrieved example
// repos, so CLI tables fall back to the standard library's tabwriter - the
// one deliberate stdlib choice in this package.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printJobsTable(w io.Writer, jobs []*models.Job) {
	tw := newTabWriter(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "ID\tSTATE\tATTEMPTS\tCOMMAND\tUPDATED_AT")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n", j.ID, j.State, j.Attempts, j.MaxRetries, j.Command, j.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	}
}

func printStatsTable(w io.Writer, stats models.Stats) {
	tw := newTabWriter(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "PENDING\tPROCESSING\tCOMPLETED\tDEAD\tTOTAL")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", stats.Pending, stats.Processing, stats.Completed, stats.Dead, stats.Total)
}

func printWorkersTable(w io.Writer, workers []models.WorkerRegistration) {
	tw := newTabWriter(w)
	defer tw.Flush()
	fmt.Fprintln(tw, "ID\tPID\tSTATUS\tHEARTBEAT_AT")
	for _, wk := range workers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", wk.ID, wk.PID, wk.Status, wk.HeartbeatAt.Format("2006-01-02T15:04:05Z"))
	}
}
