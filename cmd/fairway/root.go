package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "fairway",
	Short: "threaded comments with live updates",
	Long:  "",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("DEBUG") == "1" {
			godotenv.Load()
		}
	},
	SilenceUsage: true,
}

func main() {
	err := rootCommand.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DEBUG") == "1" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// getenv returns the variable or fallback when it is unset or empty.
func getenv(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return duration, nil
}
