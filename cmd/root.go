package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance for multi-tenant classrooms",
	Long: `Face Attendance enrolls students from sample photos, builds per-tenant
recognition galleries, and marks classroom attendance from camera frames.
Recognition runs against a detection/embedding server (InsightFace or
CompreFace); attendance records land in PostgreSQL or MariaDB.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
