package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/app"
	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "marks",
		Short:        "Marks serves and searches a bookmark collection",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			ctx := context.Background()
			a, err := app.New(ctx, config.Load(envFile))
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	serveCmd.Flags().String("env-file", ".env", "Optional env file read before the environment")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of marks",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newTagsCmd())

	// Execute the root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ marks: %v\n", err)
		os.Exit(1)
	}
}
