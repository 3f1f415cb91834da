package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"f0oster/reconspy/config"
	"f0oster/reconspy/connector/ldapconn"
	"f0oster/reconspy/database"
	"f0oster/reconspy/report"
)

var (
	envFile  string
	confFile string
	outFile  string
)

var rootCmd = &cobra.Command{
	Use:   "reconspy",
	Short: "Report drift between the identity store and its provisioned resources",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation report and emit the XML document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := config.LoadEnvConfig(envFile)

		conf, err := report.LoadConf(confFile)
		if err != nil {
			return err
		}

		db := database.NewDatabase(cfg.StoreDsn)
		if err := db.Connect(ctx); err != nil {
			return err
		}
		defer db.Close()
		if err := db.LoadProvisioning(ctx); err != nil {
			return err
		}

		endpoints, err := ldapconn.LoadEndpoints(cfg.ResourcesFile)
		if err != nil {
			return err
		}
		factory := ldapconn.NewFactory(endpoints)
		defer factory.Close()

		out := os.Stdout
		if outFile != "" {
			out, err = os.Create(outFile)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer out.Close()
		}

		writer := report.NewXMLWriter(out)
		if err := writer.StartDocument(); err != nil {
			return err
		}
		if err := writer.StartElement("report", nil); err != nil {
			return err
		}

		reportlet := &report.Reportlet{
			AnyTypes:   db,
			VirSchemas: db,
			Search:     db,
			Connectors: factory,
		}
		if err := reportlet.Extract(ctx, conf, writer); err != nil {
			return err
		}

		return writer.EndElement("report")
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the users and groups held in the identity store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg := config.LoadEnvConfig(envFile)

		db := database.NewDatabase(cfg.StoreDsn)
		if err := db.Connect(ctx); err != nil {
			return err
		}
		defer db.Close()
		if err := db.LoadProvisioning(ctx); err != nil {
			return err
		}

		users, err := db.FindAllUsers(ctx)
		if err != nil {
			return err
		}
		for _, user := range users {
			fmt.Printf("user %d %s (%d resources)\n", user.Key(), user.Username, len(user.Resources()))
		}

		groups, err := db.FindAllGroups(ctx)
		if err != nil {
			return err
		}
		for _, group := range groups {
			fmt.Printf("group %d %s (%d resources)\n", group.Key(), group.Name, len(group.Resources()))
		}

		fmt.Printf("%d users, %d groups\n", len(users), len(groups))
		return nil
	},
}

var initDbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Drop and recreate the identity store schema",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadEnvConfig(envFile)
		if cfg.ManagementDsn == "" {
			log.Fatal("MANAGEMENT_DSN is required for initdb")
		}
		database.ResetDatabase(context.Background(), cfg.ManagementDsn, cfg.StoreDsn, cfg.DatabaseName)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "settings.env", "Environment configuration file")
	runCmd.Flags().StringVar(&confFile, "conf", "reconciliation.yaml", "Reportlet configuration file")
	runCmd.Flags().StringVar(&outFile, "out", "", "Output file (defaults to stdout)")

	rootCmd.AddCommand(runCmd, inspectCmd, initDbCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("error: %v", err)
	}
}
