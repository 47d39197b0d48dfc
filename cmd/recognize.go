package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/matching"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize [tenant-id] [image-file]",
	Short: "Match faces in an image against a tenant's gallery",
	Long: `Run face detection on a single image and match every detected face
against the tenant's recognition gallery. Prints one line per face with the
matched identity and score, or Unknown when no prototype clears the
threshold.`,
	Args: cobra.ExactArgs(2),
	RunE: runRecognize,
}

func init() {
	recognizeCmd.Flags().String("profile", "verification", "threshold profile (stream, verification)")
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	tenantID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || tenantID <= 0 {
		return fmt.Errorf("invalid tenant id %q", args[0])
	}
	profile := mustGetString(cmd, "profile")

	frame, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("could not read image: %w", err)
	}

	ctx := context.Background()
	svc, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	threshold := svc.cfg.Threshold(profile)
	results, err := svc.engine.MatchFrame(ctx, tenantID, frame, threshold)
	if err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No faces detected")
		return nil
	}

	fmt.Printf("Detected %d face(s), threshold %.2f (%s)\n", len(results), threshold, profile)
	for i, r := range results {
		if r.Accepted {
			fmt.Printf("  %d. %s (id %d, score %.4f)\n", i+1, r.DisplayName, r.IdentityID, r.Score)
		} else {
			fmt.Printf("  %d. %s (score %.4f)\n", i+1, matching.UnknownName, r.Score)
		}
	}
	return nil
}
