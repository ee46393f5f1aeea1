package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ehazan/timearc/internal/export"
	"github.com/ehazan/timearc/internal/store"
	"github.com/ehazan/timearc/internal/timeline"
	"github.com/ehazan/timearc/internal/tui"
)

var dbPath string

func main() {
	defaultDB, err := store.DefaultDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "timearc",
		Short: "Personal time tracker with a planned-vs-logged day timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			app := tui.NewApp(s)
			p := tea.NewProgram(app, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "database path")

	rootCmd.AddCommand(dayCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(backfillCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(dbPath)
}

func dayCmd() *cobra.Command {
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "day [date]",
		Short: "Print the reconciled timeline for a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			date := s.Today()
			if len(args) == 1 {
				if _, err := time.Parse(timeline.ISODate, args[0]); err != nil {
					return fmt.Errorf("bad date %q: want YYYY-MM-DD", args[0])
				}
				date = args[0]
			}

			blocks, err := s.DayTimeline(date, time.Now())
			if err != nil {
				return err
			}
			if asCSV {
				return export.WriteTimelineCSV(os.Stdout, blocks)
			}
			if len(blocks) == 0 {
				fmt.Println("Empty day.")
				return nil
			}
			for _, b := range blocks {
				mins := int(b.Duration().Minutes())
				fmt.Printf("%s-%s  %-10s %-32s %4dm\n",
					b.Start.Format("15:04"), b.End.Format("15:04"), b.Type, b.Title, mins)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "emit the timeline as CSV")
	return cmd
}

func summaryCmd() *cobra.Command {
	var planned, combined bool

	cmd := &cobra.Command{
		Use:   "summary [month]",
		Short: "Print a month's time per activity (month as YYYY-MM, default current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			month := s.Today()[:7]
			if len(args) == 1 {
				month = args[0]
			}

			var rows []store.SummaryRow
			switch {
			case planned:
				rows, err = s.PlannedMonthSummary(month)
			case combined:
				rows, err = s.CombinedMonthSummary(month)
			default:
				rows, err = s.MonthSummary(month)
			}
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No data for " + month + ".")
				return nil
			}
			for _, r := range rows {
				minutes := r.Millis / 60000
				fmt.Printf("%-40s %4dh %02dm\n", r.Key, minutes/60, minutes%60)
			}

			tracked, err := s.DaysWithDataInMonth(month)
			if err != nil {
				return err
			}
			journaled, err := s.JournalDaysInMonth(month)
			if err != nil {
				return err
			}
			fmt.Printf("\n%d days tracked, %d days journaled\n", len(tracked), len(journaled))
			return nil
		},
	}

	cmd.Flags().BoolVar(&planned, "planned", false, "aggregate instantiated plans instead of sessions")
	cmd.Flags().BoolVar(&combined, "combined", false, "aggregate sessions and plans together")
	return cmd
}

func exportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export tracked data to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			dateStr := time.Now().Format("2006-01-02")
			path := fmt.Sprintf("timearc-export-%s.%s", dateStr, format)
			if len(args) == 1 {
				path = args[0]
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()

			switch format {
			case "csv":
				sessions, err := s.AllSessions()
				if err != nil {
					return err
				}
				settings, err := s.ScheduleSettingsFor(s.Today())
				if err != nil {
					return err
				}
				if err := export.WriteSessionsCSV(f, sessions, store.Location(settings.Timezone)); err != nil {
					return err
				}
			case "json":
				bundle, err := export.BuildBundle(s)
				if err != nil {
					return err
				}
				if err := export.WriteBundleJSON(f, bundle); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q: want csv or json", format)
			}

			fmt.Println("Exported to " + path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "export format (csv or json)")
	return cmd
}

func recordsCmd() *cobra.Command {
	var page int
	var deleteID int64

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List or delete manually recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if deleteID != 0 {
				ok, err := s.DeleteManualRecord(deleteID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no manual record with id %d", deleteID)
				}
				fmt.Printf("Deleted record %d.\n", deleteID)
				return nil
			}

			records, info, err := s.ManualRecords(page, 20)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No manual records.")
				return nil
			}

			settings, err := s.ScheduleSettingsFor(s.Today())
			if err != nil {
				return err
			}
			loc := store.Location(settings.Timezone)
			for _, r := range records {
				label := r.Activity
				if r.SubActivity != "" {
					label += " / " + r.SubActivity
				}
				end := "running"
				if r.EndMs != nil {
					end = time.UnixMilli(*r.EndMs).In(loc).Format("15:04")
				}
				fmt.Printf("%4d  %s %s-%s  %s\n",
					r.ID,
					time.UnixMilli(r.StartMs).In(loc).Format("2006-01-02"),
					time.UnixMilli(r.StartMs).In(loc).Format("15:04"), end,
					label)
			}
			fmt.Printf("\nPage %d of %d (%d records)\n", info.Current, info.TotalPages, info.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().Int64Var(&deleteID, "delete", 0, "delete the record with this id")
	return cmd
}

func backfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-plans",
		Short: "Link legacy daily plans to activities by name",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.BackfillPlanActivities()
			if err != nil {
				return err
			}
			fmt.Printf("Updated %d plan rows.\n", n)
			return nil
		},
	}
}
