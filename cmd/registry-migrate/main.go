package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"land-registry/registry-backend/internal/config"
	"land-registry/registry-backend/internal/database"
	"land-registry/registry-backend/internal/server"
)

var configPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "registry-migrate",
		Short: "Land registry schema tool",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(modelsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// getDB loads config (including .env) and opens the configured database.
func getDB() (*gorm.DB, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, logger, nil
}

func modelNames() []string {
	names := make([]string, 0, len(server.ModelRegistry))
	for name := range server.ModelRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update every table",
	Run: func(cmd *cobra.Command, args []string) {
		db, logger, err := getDB()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer database.Close(db)

		if err := database.Migrate(db, server.ModelRegistry, logger); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Migrated %d models\n", len(server.ModelRegistry))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which model tables exist",
	Run: func(cmd *cobra.Command, args []string) {
		db, _, err := getDB()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer database.Close(db)

		fmt.Printf("%-18s %-10s\n", "Model", "Table")
		fmt.Println("-----------------------------")
		missing := 0
		for _, name := range modelNames() {
			state := "present"
			if !db.Migrator().HasTable(server.ModelRegistry[name]) {
				state = "missing"
				missing++
			}
			fmt.Printf("%-18s %-10s\n", name, state)
		}
		if missing > 0 {
			fmt.Printf("\n%d table(s) missing, run 'registry-migrate up'\n", missing)
		}
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List registered models",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range modelNames() {
			fmt.Println(name)
		}
	},
}
