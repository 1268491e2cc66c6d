package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Sukhmangill977/data-couch/internal/store"
)

func historyCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, cf := newFlagSet("history", stderr)
	n := fs.Int("n", 20, "number of runs to show")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, err := loadConfig(cf)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if cfg.Store.Path == "" {
		fmt.Fprintln(stderr, "store.path is not set; there is no run journal")
		return exitUsage
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFatal
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, *n)
	if err != nil {
		fmt.Fprintln(stderr, "list runs:", err)
		return exitFatal
	}
	printRuns(stdout, runs)
	return exitOK
}

func printRuns(w io.Writer, runs []store.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTOOK\tUNSEEN\tMATCHED\tCARDS\tSENT\tFAILURES\tRESULT")
	for _, r := range runs {
		result := "ok"
		if !r.OK() {
			result = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d/%d\t%d/%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Unseen,
			r.Matched,
			r.CardsCreated, r.CardsCreated+r.CardFailures,
			r.NotificationsSent, r.NotificationsSent+r.NotificationFailures,
			r.CardFailures+r.NotificationFailures,
			result,
		)
	}
	_ = tw.Flush()
}
