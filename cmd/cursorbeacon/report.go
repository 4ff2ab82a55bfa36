package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cursorbeacon/cursorbeacon/internal/database"
	"github.com/cursorbeacon/cursorbeacon/internal/reporter"
)

var (
	reportJSON  bool
	clearYes    bool
	clearBefore time.Duration
)

var reportCmd = &cobra.Command{
	Use:       "report [day|week|month]",
	Short:     "Summarise converge activations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"day", "week", "month"},
	RunE: func(cmd *cobra.Command, args []string) error {
		periodType := "day"
		if len(args) > 0 {
			periodType = args[0]
		}
		return generateReport(periodType)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete recorded activation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return clearDatabase()
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	clearCmd.Flags().DurationVar(&clearBefore, "older-than", 0, "only delete activations older than this (e.g. 720h)")

	rootCmd.AddCommand(reportCmd, clearCmd)
}

func openRepository() (*database.DB, *database.Repository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, database.NewRepository(db), nil
}

func generateReport(periodType string) error {
	db, repo, err := openRepository()
	if err != nil {
		return err
	}
	defer db.Close()

	rep := reporter.New(repo)
	report, err := rep.GenerateReport(periodType)
	if err != nil {
		return err
	}

	if reportJSON {
		jsonStr, err := rep.FormatReportJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(jsonStr)
		return nil
	}

	fmt.Println(section("Activations", rep.FormatReportText(report)))
	return nil
}

func clearDatabase() error {
	if !clearYes {
		what := "all activation history"
		if clearBefore > 0 {
			what = fmt.Sprintf("activations older than %v", clearBefore)
		}
		fmt.Printf("This will delete %s. Are you sure? (yes/no): ", what)
		response, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "yes" && response != "y" {
			fmt.Println("Operation cancelled")
			return nil
		}
	}

	db, repo, err := openRepository()
	if err != nil {
		return err
	}
	defer db.Close()

	if clearBefore > 0 {
		n, err := repo.DeleteOldActivations(time.Now().Add(-clearBefore))
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Deleted %d activations", n)))
		return nil
	}

	if err := repo.Clear(); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("History cleared successfully"))
	return nil
}
