package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "linkregistry",
	Short: "A short link registry with click analytics",
	Long:  "A URL shortening service with expiring links, click analytics and pluggable storage (memory, SQLite/libSQL or PostgreSQL)",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal outside development
		_ = godotenv.Load()
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the link registry server",
	RunE:  runServer,
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Client commands for interacting with the server",
}

var createCmd = &cobra.Command{
	Use:   "create [URL]",
	Short: "Create a short link",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var getCmd = &cobra.Command{
	Use:   "get [SHORT_CODE]",
	Short: "Get information about a short link",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var visitCmd = &cobra.Command{
	Use:   "visit [SHORT_CODE]",
	Short: "Follow a short link, recording a click",
	Args:  cobra.ExactArgs(1),
	RunE:  runVisit,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [SHORT_CODE]",
	Short: "Delete a short link",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all short links",
	RunE:  runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every short link",
	RunE:  runClear,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired short links",
	RunE:  runPurge,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Mark short links past their expiry as expired",
	RunE:  runRefresh,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the click analytics dashboard",
	RunE:  runStats,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show or clear the server's recent log records",
	RunE:  runLogs,
}

func init() {
	// Server command flags; each overrides its LINKREGISTRY_* variable when set
	serverCmd.Flags().StringP("port", "p", "8080", "Server port")
	serverCmd.Flags().String("server-url", "http://localhost:8080", "Public base URL used to build short URLs")
	serverCmd.Flags().String("storage", "sqlite", "Storage backend (memory, sqlite, postgres)")
	serverCmd.Flags().String("db-path", "links.db", "SQLite database path or libSQL URL")
	serverCmd.Flags().String("sqlite-driver", "sqlite3", "SQLite driver (sqlite3, sqlite, libsql)")
	serverCmd.Flags().String("postgres-dsn", "", "PostgreSQL connection string")
	serverCmd.Flags().String("storage-key", "url_shortener_data", "Key the registry snapshot is stored under")

	// Shortener configuration flags
	serverCmd.Flags().String("generator", "random", "Short code generator (random, counter)")
	serverCmd.Flags().Int64("counter-step", 100, "Counters reserved per store write by the counter generator")

	// Registry maintenance flags
	serverCmd.Flags().Duration("maintenance-interval", time.Minute, "Interval between expiry sweeps (0 disables)")
	serverCmd.Flags().Bool("auto-purge", false, "Remove expired links during maintenance sweeps")

	// Logging configuration flags
	serverCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	serverCmd.Flags().String("log-format", "text", "Log format (text, json)")
	serverCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging (HTTP error bodies)")

	// Client command flags
	clientCmd.PersistentFlags().StringP("server-url", "u", "http://localhost:8080", "Server URL")

	createCmd.Flags().IntP("validity", "m", 30, "Validity in minutes")
	createCmd.Flags().StringP("code", "c", "", "Custom short code")
	visitCmd.Flags().StringP("source", "s", "", "Click source to record")
	logsCmd.Flags().StringP("level", "l", "", "Minimum level to show")
	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of records")
	logsCmd.Flags().Bool("clear", false, "Clear the server's log buffer")

	// Add subcommands
	clientCmd.AddCommand(createCmd, getCmd, visitCmd, deleteCmd, listCmd, clearCmd, purgeCmd, refreshCmd, statsCmd, logsCmd)
	rootCmd.AddCommand(serverCmd, clientCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
