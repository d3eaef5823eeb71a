// Command linkshelf-admin manages linkshelf accounts and database backups
// without going through the HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/dukerupert/linkshelf/internal/config"
	"github.com/dukerupert/linkshelf/internal/credential"
	"github.com/dukerupert/linkshelf/internal/database"
	"github.com/dukerupert/linkshelf/internal/model"
	"github.com/dukerupert/linkshelf/internal/store"
)

const usage = `usage: linkshelf-admin <command> [args]

commands:
  create-user  <username> <password>
  set-password <username> <password>
  delete-user  <username>
  list-groups  <username>

  backup        [passphrase]
  list-backups
  prune-backups
  restore       <key> [passphrase]   (stop the server first)

The backup passphrase is read from LINKSHELF_BACKUP_PASSPHRASE when set.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("LINKSHELF_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if backupCommands[args[0]] {
		return runBackup(ctx, cfg, args, out)
	}

	db, err := database.OpenWith(cfg.Database.Path, database.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	verifier, err := credential.New(cfg.Auth.HashScheme)
	if err != nil {
		return err
	}

	return newAdmin(db, verifier, out).dispatch(ctx, args)
}

// The CLI cannot reach the running server's in-memory session table.
const staleSessionsWarning = "  sessions already issued stay valid until the server restarts"

type admin struct {
	users    *store.UserStore
	groups   *store.GroupStore
	verifier credential.Verifier
	out      io.Writer
	ok       *color.Color
	warn     *color.Color
}

func newAdmin(db *sql.DB, verifier credential.Verifier, out io.Writer) *admin {
	return &admin{
		users:    store.NewUserStore(db),
		groups:   store.NewGroupStore(db, nil),
		verifier: verifier,
		out:      out,
		ok:       color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
	}
}

func (a *admin) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create-user":
		if len(rest) != 2 {
			return errors.New("create-user needs <username> <password>")
		}
		return a.createUser(ctx, rest[0], rest[1])
	case "set-password":
		if len(rest) != 2 {
			return errors.New("set-password needs <username> <password>")
		}
		return a.setPassword(ctx, rest[0], rest[1])
	case "delete-user":
		if len(rest) != 1 {
			return errors.New("delete-user needs <username>")
		}
		return a.deleteUser(ctx, rest[0])
	case "list-groups":
		if len(rest) != 1 {
			return errors.New("list-groups needs <username>")
		}
		return a.listGroups(ctx, rest[0])
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func (a *admin) createUser(ctx context.Context, username, password string) error {
	if problem := model.UsernameProblem(username); problem != "" {
		return fmt.Errorf("username %s", problem)
	}
	hash, err := a.verifier.Hash(password)
	if err != nil {
		return err
	}
	u, err := a.users.Create(ctx, username, hash)
	if errors.Is(err, store.ErrConstraint) {
		return fmt.Errorf("user %q already exists", username)
	}
	if err != nil {
		return err
	}
	a.ok.Fprint(a.out, "✓ ")
	fmt.Fprintf(a.out, "created user %s (id %d)\n", u.Username, u.ID)
	return nil
}

func (a *admin) setPassword(ctx context.Context, username, password string) error {
	u, err := a.lookup(ctx, username)
	if err != nil {
		return err
	}
	hash, err := a.verifier.Hash(password)
	if err != nil {
		return err
	}
	if _, err := a.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	a.ok.Fprint(a.out, "✓ ")
	fmt.Fprintf(a.out, "password updated for %s\n", u.Username)
	a.warn.Fprintln(a.out, staleSessionsWarning)
	return nil
}

func (a *admin) deleteUser(ctx context.Context, username string) error {
	u, err := a.lookup(ctx, username)
	if err != nil {
		return err
	}
	if _, err := a.users.Delete(ctx, u.ID); err != nil {
		return err
	}
	a.ok.Fprint(a.out, "✓ ")
	fmt.Fprintf(a.out, "deleted user %s and their groups\n", u.Username)
	a.warn.Fprintln(a.out, staleSessionsWarning)
	return nil
}

func (a *admin) listGroups(ctx context.Context, username string) error {
	u, err := a.lookup(ctx, username)
	if err != nil {
		return err
	}
	groups, err := a.groups.ListByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		a.warn.Fprintf(a.out, "%s has no groups\n", u.Username)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSLUG\tNAME\tPUBLIC\tREFRESH")
	for _, g := range groups {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", g.ID, g.Slug, g.Name, g.IsPublic, g.RefreshEvery())
	}
	return tw.Flush()
}

func (a *admin) lookup(ctx context.Context, username string) (*model.User, error) {
	u, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no user named %q", username)
	}
	return u, err
}
