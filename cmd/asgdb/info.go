package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type infoReport struct {
	Version    string `json:"version"`
	Transport  string `json:"transport"`
	Driver     string `json:"driver,omitempty"`
	Database   string `json:"database,omitempty"`
	Status     string `json:"status"`
	Namespaces int    `json:"namespaces"`
}

var infoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Show version, database and store summary",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		report := infoReport{Version: version, Transport: transport}
		switch transport {
		case "local":
			report.Driver = cfg.Database.Driver
			if cfg.Database.Driver == "sqlite" {
				report.Database = cfg.DatabasePath()
			}
		case "http":
			report.Database = httpURL
		case "grpc":
			report.Database = serverAddr
		}

		status, err := dbClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		report.Status = status
		names, err := dbClient.ListNamespaces(ctx)
		if err != nil {
			return fmt.Errorf("listing namespaces: %w", err)
		}
		report.Namespaces = len(names)

		if jsonOutput {
			return printJSON(report)
		}
		fmt.Printf("Version:    %s\n", report.Version)
		fmt.Printf("Transport:  %s\n", report.Transport)
		if report.Driver != "" {
			fmt.Printf("Driver:     %s\n", report.Driver)
		}
		if report.Database != "" {
			fmt.Printf("Database:   %s\n", report.Database)
		}
		fmt.Printf("Status:     %s\n", report.Status)
		fmt.Printf("Namespaces: %d\n", report.Namespaces)
		return nil
	},
}
