package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/database"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance [tenant-id]",
	Short: "List attendance records for a tenant",
	Long: `List a tenant's attendance records for one date. The date defaults
to today; pass --date to inspect an earlier day. The --reset-all flag wipes
every attendance record across all tenants instead of listing.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttendance,
}

func init() {
	attendanceCmd.Flags().String("date", "", "date to list (YYYY-MM-DD, default today)")
	attendanceCmd.Flags().Bool("reset-all", false, "delete every attendance record")
	rootCmd.AddCommand(attendanceCmd)
}

func runAttendance(cmd *cobra.Command, args []string) error {
	tenantID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || tenantID <= 0 {
		return fmt.Errorf("invalid tenant id %q", args[0])
	}

	ctx := context.Background()
	svc, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if mustGetBool(cmd, "reset-all") {
		deleted, err := svc.marker.ResetAll(ctx)
		if err != nil {
			return fmt.Errorf("could not reset attendance: %w", err)
		}
		fmt.Printf("Deleted %d attendance record(s)\n", deleted)
		return nil
	}

	date := mustGetString(cmd, "date")
	if date == "" {
		date = database.DateOf(time.Now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}

	records, err := svc.repo.RecordsByDate(ctx, tenantID, date)
	if err != nil {
		return fmt.Errorf("could not list attendance: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No attendance records for tenant %d on %s\n", tenantID, date)
		return nil
	}

	fmt.Printf("Attendance for tenant %d on %s (%d record(s)):\n", tenantID, date, len(records))
	for _, rec := range records {
		fmt.Printf("  %s  %s (student %d, class %d)\n",
			rec.TimeIn.Format("15:04:05"), rec.StudentName, rec.StudentID, rec.ClassID)
	}
	return nil
}
