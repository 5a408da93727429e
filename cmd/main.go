package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/go-taskboard/internal/app"
	"github.com/adanyl0v/go-taskboard/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "taskboard",
		Short:   "Task board backend with optimistic updates and live change feed",
		Version: Version,
		Run:     runServe,
	}
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(relayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the change feed",
	Long: `Start the HTTP API.

The change feed reads Postgres notifications directly (FEED_DRIVER=postgres)
or the subject published by "taskboard relay" (FEED_DRIVER=nats).`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply the database schema before serving")
}

func runServe(cmd *cobra.Command, args []string) {
	bootstrap()
	defer app.CloseLogFile()

	app.MustConnectPostgres()
	defer app.DisconnectPostgres()

	cfg := config.Global()
	if serveMigrate || cfg.Postgres.MigrateOnStart {
		app.MustMigrate()
	}

	app.MustConnectRedis()
	defer app.DisconnectRedis()

	if cfg.Board.FeedDriver == config.FeedDriverNats {
		app.MustConnectNats()
		defer app.DisconnectNats()
	}

	app.MustStartFeed()
	defer app.StopFeed()

	app.MustListenAndServeHTTP()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and change triggers",
		Run: func(cmd *cobra.Command, args []string) {
			bootstrap()
			defer app.CloseLogFile()

			app.MustConnectPostgres()
			defer app.DisconnectPostgres()

			app.MustMigrate()
		},
	}
}

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Forward Postgres change notifications to NATS",
		Run: func(cmd *cobra.Command, args []string) {
			bootstrap()
			defer app.CloseLogFile()

			app.MustConnectPostgres()
			defer app.DisconnectPostgres()

			app.MustConnectNats()
			defer app.DisconnectNats()

			app.MustRunRelay()
		},
	}
}

func bootstrap() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()
}
