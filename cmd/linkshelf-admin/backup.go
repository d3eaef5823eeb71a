package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/dukerupert/linkshelf/internal/backup"
	"github.com/dukerupert/linkshelf/internal/config"
	"github.com/dukerupert/linkshelf/internal/database"
	"github.com/dukerupert/linkshelf/internal/logging"
)

const passphraseEnv = "LINKSHELF_BACKUP_PASSPHRASE"

var backupCommands = map[string]bool{
	"backup":        true,
	"list-backups":  true,
	"prune-backups": true,
	"restore":       true,
}

// passphrase prefers the environment so it stays out of shell history.
func passphrase(args []string) (string, error) {
	if v := os.Getenv(passphraseEnv); v != "" {
		return v, nil
	}
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	return "", fmt.Errorf("passphrase required: set %s or pass it as an argument", passphraseEnv)
}

func runBackup(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	mgr, err := backup.NewManager(backup.S3Config{
		Endpoint:  cfg.Backup.Endpoint,
		Bucket:    cfg.Backup.Bucket,
		Region:    cfg.Backup.Region,
		AccessKey: cfg.Backup.AccessKey,
		SecretKey: cfg.Backup.SecretKey,
		Prefix:    cfg.Backup.Prefix,
	}, cfg.Backup.Retention, logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	if err != nil {
		return err
	}

	ok := color.New(color.FgGreen)
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "backup":
		pass, err := passphrase(rest)
		if err != nil {
			return err
		}
		db, err := database.OpenWith(cfg.Database.Path, database.Options{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			BusyTimeout:  cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		obj, err := mgr.Run(ctx, db, pass)
		if err != nil {
			return err
		}
		ok.Fprint(out, "✓ ")
		fmt.Fprintf(out, "uploaded %s (%s)\n", obj.Key, humanize.Bytes(uint64(obj.Size)))
		return prune(ctx, mgr, out)

	case "list-backups":
		objects, err := mgr.List(ctx)
		if err != nil {
			return err
		}
		if len(objects) == 0 {
			color.New(color.FgYellow).Fprintln(out, "no backups found")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
		for _, o := range objects {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Key, humanize.Bytes(uint64(o.Size)), humanize.Time(o.LastModified))
		}
		return tw.Flush()

	case "prune-backups":
		return prune(ctx, mgr, out)

	case "restore":
		if len(rest) < 1 {
			return errors.New("restore needs <key> [passphrase]")
		}
		pass, err := passphrase(rest[1:])
		if err != nil {
			return err
		}
		if err := mgr.Restore(ctx, rest[0], pass, cfg.Database.Path); err != nil {
			return err
		}
		ok.Fprint(out, "✓ ")
		fmt.Fprintf(out, "restored %s into %s; restart linkshelf to pick it up\n", rest[0], cfg.Database.Path)
		return nil
	}
	return fmt.Errorf("unknown backup command %q", cmd)
}

func prune(ctx context.Context, mgr *backup.Manager, out io.Writer) error {
	n, err := mgr.Prune(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(out, "pruned %d old backup(s)\n", n)
	}
	return nil
}
