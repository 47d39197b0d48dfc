package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/session"
)

var trainCmd = &cobra.Command{
	Use:   "train [tenant-id]",
	Short: "Rebuild a tenant's recognition gallery",
	Long: `Rebuild the recognition gallery for one tenant from its enrollment
samples. Every active student's sample images are run through the face
extractor and averaged into a prototype; the finished gallery atomically
replaces the previous one.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
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

	var bar *progressbar.ProgressBar
	report, err := svc.trainer.TrainWithProgress(ctx, tenantID, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Building prototypes"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("students"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
	})
	if err != nil {
		if errors.Is(err, session.ErrTrainingInProgress) {
			return fmt.Errorf("tenant %d is already training", tenantID)
		}
		return fmt.Errorf("training failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	fmt.Printf("\nGallery for tenant %d rebuilt (version %d, %s)\n",
		report.TenantID, report.GalleryVersion, report.Duration.Round(time.Millisecond))
	fmt.Printf("  Enrolled: %d\n", report.Enrolled)
	fmt.Printf("  Skipped:  %d\n", report.Skipped)
	for _, ir := range report.Identities {
		if ir.Enrolled {
			fmt.Printf("  ✓ %s (%d samples)\n", ir.Name, ir.SampleCount)
		} else {
			fmt.Printf("  ✗ %s: %s\n", ir.Name, ir.Reason)
		}
	}
	return nil
}
