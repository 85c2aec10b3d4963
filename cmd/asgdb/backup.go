package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/asgdb/internal/backup"
	"github.com/alfredjeanlab/asgdb/internal/config"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Snapshot, export and import the local database",
	GroupID: "system",
}

var backupSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the SQLite database into the backup directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := localEngine()
		if err != nil {
			return err
		}
		if cfg.Database.Driver != "sqlite" {
			return fmt.Errorf("snapshots need the sqlite driver, not %s", cfg.Database.Driver)
		}
		db, err := e.DB(cmd.Context())
		if err != nil {
			return err
		}
		path, err := backup.Snapshot(cmd.Context(), db, cfg.BackupDir(), snapshotName(cfg), cfg.Database.MaxBackups)
		if err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write every value, object and tag as JSONL (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := localEngine()
		if err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := backup.ExportJSONL(cmd.Context(), e.Store(), w); err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a JSONL export, overwriting matching rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := localEngine()
		if err != nil {
			return err
		}
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		counts, err := backup.ImportJSONL(cmd.Context(), e.Store(), r)
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}
		if jsonOutput {
			return printJSON(counts)
		}
		fmt.Printf("Imported %d value(s), %d object(s), %d tag(s)\n", counts.Values, counts.Objects, counts.Tags)
		return nil
	},
}

var backupPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send one export to the configured sync destinations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := localEngine()
		if err != nil {
			return err
		}
		dests, err := syncDestinations(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if len(dests) == 0 {
			return fmt.Errorf("no sync destinations configured (set sync.dir or sync.s3_bucket)")
		}
		s := backup.NewScheduler(e.Store(), dests, cfg.Sync.Every, logger)
		if err := s.RunOnce(cmd.Context()); err != nil {
			return fmt.Errorf("pushing export: %w", err)
		}
		fmt.Printf("Pushed export to %d destination(s)\n", len(dests))
		return nil
	},
}

var backupPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import the export stored in the configured S3 bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := localEngine()
		if err != nil {
			return err
		}
		if cfg.Sync.S3Bucket == "" {
			return fmt.Errorf("no S3 bucket configured (set sync.s3_bucket)")
		}
		src, err := backup.NewS3Destination(cmd.Context(), cfg.Sync.S3Bucket, cfg.Sync.S3Key, cfg.Sync.S3Region, cfg.Sync.S3Endpoint)
		if err != nil {
			return fmt.Errorf("creating S3 source: %w", err)
		}
		data, err := src.Read(cmd.Context())
		if err != nil {
			return err
		}
		counts, err := backup.ImportJSONL(cmd.Context(), e.Store(), bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}
		if jsonOutput {
			return printJSON(counts)
		}
		fmt.Printf("Imported %d value(s), %d object(s), %d tag(s) from s3://%s/%s\n",
			counts.Values, counts.Objects, counts.Tags, cfg.Sync.S3Bucket, cfg.Sync.S3Key)
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupSnapshotCmd)
	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupImportCmd)
	backupCmd.AddCommand(backupPushCmd)
	backupCmd.AddCommand(backupPullCmd)
}

// snapshotName is the database file name without its extension.
func snapshotName(c *config.Config) string {
	path := c.DatabasePath()
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// syncDestinations builds the export destinations named in c.Sync.
func syncDestinations(ctx context.Context, c *config.Config) ([]backup.Destination, error) {
	var dests []backup.Destination
	if c.Sync.Dir != "" {
		dests = append(dests, backup.NewLocalDestination(c.Sync.Dir, snapshotName(c), c.Database.MaxBackups))
	}
	if c.Sync.S3Bucket != "" {
		s3, err := backup.NewS3Destination(ctx, c.Sync.S3Bucket, c.Sync.S3Key, c.Sync.S3Region, c.Sync.S3Endpoint)
		if err != nil {
			return nil, fmt.Errorf("creating S3 destination: %w", err)
		}
		dests = append(dests, s3)
	}
	return dests, nil
}
