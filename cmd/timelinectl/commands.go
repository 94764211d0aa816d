package main

import (
	"fmt"
	"os"
	"time"

	"github.com/officesync/timeline/internal/application/service"
	"github.com/officesync/timeline/internal/container"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Starting the container applies every embedded migration.
			return withContainer(cmd.Context(), opts, func(c *container.Container) error {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newMaterializeCmd(opts *rootOptions) *cobra.Command {
	var (
		staffID int64
		all     bool
		start   string
		days    int
	)
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Create dated tasks from routine templates and personal routines",
		Long: `Materialize routines for one staff member or everyone over a window of days.
Runs are idempotent: tasks that already exist in a slot are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (staffID != 0) {
				return fmt.Errorf("exactly one of --staff-id or --all is required")
			}
			if days < 1 || days > service.BatchWindowDays {
				return fmt.Errorf("--days must be between 1 and %d", service.BatchWindowDays)
			}
			startDate, err := dateFlag(start)
			if err != nil {
				return err
			}
			window, err := entity.NewDateWindow(startDate, days)
			if err != nil {
				return err
			}

			selector := service.SingleStaff(staffID)
			if all {
				selector = service.AllStaff()
			}

			return withContainer(cmd.Context(), opts, func(c *container.Container) error {
				result, err := c.Services().Materializer.MaterializeRoutines(cmd.Context(), nil, selector, window)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().Int64Var(&staffID, "staff-id", 0, "materialize for this staff member only")
	cmd.Flags().BoolVar(&all, "all", false, "materialize for every active non-admin staff member")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&days, "days", service.BatchWindowDays, "number of days in the window")
	return cmd
}

func newLayoutCmd(opts *rootOptions) *cobra.Command {
	var (
		staffID int64
		date    string
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the computed day layout of a staff member as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFlag(date)
			if err != nil {
				return err
			}
			return withContainer(cmd.Context(), opts, func(c *container.Container) error {
				layout, err := c.Services().Layout.DayLayout(cmd.Context(), nil, staffID, day)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), layout)
			})
		},
	}
	cmd.Flags().Int64Var(&staffID, "staff-id", 0, "staff member whose day to lay out")
	cmd.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("staff-id")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		staffID int64
		date    string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a staff member's day to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := dateFlag(date)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("timeline-%d-%s.xlsx", staffID, entity.FormatDate(day))
			}

			return withContainer(cmd.Context(), opts, func(c *container.Container) error {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				if err := c.Services().Layout.ExportDay(cmd.Context(), nil, staffID, day, f); err != nil {
					f.Close()
					os.Remove(out)
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&staffID, "staff-id", 0, "staff member whose day to export")
	cmd.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default timeline-<id>-<date>.xlsx)")
	_ = cmd.MarkFlagRequired("staff-id")
	return cmd
}

func dateFlag(value string) (time.Time, error) {
	if value == "" {
		return entity.DateOf(time.Now()), nil
	}
	d, err := entity.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}
