package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/barfetch/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the fetch journal",
	Long: `Query fetch records from the SQLite journal.

Subcommands:
  list   - List the most recent fetches
  run    - Show every fetch of one harvest run
  show   - Show a single fetch by ID
  day    - List fetches started on a specific day

Examples:
  barfetch journal list --limit 20
  barfetch journal run 01HX3Z... --org run.org
  barfetch journal day 2024-01-15`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent fetches",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show every fetch of one harvest run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <fetch-id>",
	Short: "Show a single fetch",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List fetches started on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var (
	journalDBPath string
	journalLimit  int
	journalOrg    string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalRunCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default from config)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 50, "number of records")
	journalRunCmd.Flags().StringVar(&journalOrg, "org", "", "also write an Org-mode report to this path")
}

func openJournal() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		if cfg.Journal.Type != "sqlite" {
			return nil, fmt.Errorf("journal queries need a sqlite journal (configured: %q); pass --db", cfg.Journal.Type)
		}
		path = cfg.Journal.Path
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListRecent(journalLimit)
	if err != nil {
		return fmt.Errorf("query fetches: %w", err)
	}
	fmt.Print(journal.FormatRecords(recs))
	return nil
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runID := args[0]
	recs, err := j.ListRun(runID)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("run %q not found", runID)
	}

	fmt.Print(journal.FormatRecords(recs))

	r := journal.Summarize(runID, recs)
	fmt.Printf("\n%d symbols: %d ok, %d short, %d failed, %d cache hits, %d bars\n",
		r.Symbols, r.OK, r.Truncated, r.Failed, r.CacheHits, r.Bars)

	if journalOrg != "" {
		if err := r.WriteOrgFile(journalOrg); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %s\n", journalOrg)
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetFetch(args[0])
	if err != nil {
		return fmt.Errorf("get fetch: %w", err)
	}
	fmt.Print(journal.FormatRecords([]journal.FetchRecord{rec}))
	fmt.Printf("\nrun:      %s\nstarted:  %s\nduration: %s\n",
		rec.RunID, rec.StartedAt.Format(time.RFC3339), rec.Duration)
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListStartedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query fetches: %w", err)
	}
	fmt.Print(journal.FormatRecords(recs))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
