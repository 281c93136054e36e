// Command authctl is an operator tool for the CardVault auth core:
// creating users, revoking refresh tokens, and sweeping expired rows
// without going through the application transports.
//
// Usage:
//
//	authctl <command> [args] [flags]
//
// Commands:
//
//	adduser <username>     create a user (prompts for password) and print their first session
//	revoke <refresh_id>    revoke a single refresh token
//	revoke-all <user_id>   revoke all of a user's refresh tokens
//	sweep                  delete expired refresh token rows
//
// Flags are the same as the server's (-d DSN, -s secret, -c config file).
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrijs2005/cardvault/internal/common"
	"github.com/dmitrijs2005/cardvault/internal/logging"
	"github.com/dmitrijs2005/cardvault/internal/server/config"
	"github.com/dmitrijs2005/cardvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cardvault/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cmd, args := command()
	if cmd == "" {
		return fmt.Errorf("no command given (adduser, revoke, revoke-all, sweep)")
	}

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return fmt.Errorf("repository manager init error: %w", err)
	}

	ctx := context.Background()

	switch cmd {
	case "adduser":
		if len(args) != 1 {
			return fmt.Errorf("usage: authctl adduser <username>")
		}
		return addUser(ctx, db, rm, cfg, logger, args[0])

	case "revoke":
		if len(args) != 1 {
			return fmt.Errorf("usage: authctl revoke <refresh_id>")
		}
		return rm.RefreshTokens(db).Revoke(ctx, args[0])

	case "revoke-all":
		if len(args) != 1 {
			return fmt.Errorf("usage: authctl revoke-all <user_id>")
		}
		return rm.RefreshTokens(db).RevokeAllForUser(ctx, args[0])

	case "sweep":
		sw := services.NewSweeper(db, rm, logger, cfg.SweepInterval)
		n, err := sw.SweepOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d expired refresh token(s)\n", n)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// command returns the leading positional arguments: the command name and its
// args, stopping at the first flag. Flags themselves are handled by the
// config package.
func command() (string, []string) {
	var positional []string
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-") {
			break
		}
		positional = append(positional, arg)
	}
	if len(positional) == 0 {
		return "", nil
	}
	return positional[0], positional[1:]
}

func addUser(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, username string) error {
	svc, err := services.NewSessionService(db, rm, cfg, logger)
	if err != nil {
		return err
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, session, err := svc.Register(ctx, username, string(password))
	if err != nil {
		return err
	}

	fmt.Printf("user id:        %s\n", user.ID)
	fmt.Printf("access token:   %s\n", session.AccessToken)
	// shown exactly once, never recoverable afterwards
	fmt.Printf("refresh token:  %s\n", session.RefreshToken)
	fmt.Printf("refresh expiry: %s\n", session.RefreshExpiresAt)
	return nil
}

func readPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// piped input, e.g. in provisioning scripts
		r := bufio.NewReader(os.Stdin)
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}

	fmt.Fprint(os.Stderr, "password: ")
	p1, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(os.Stderr, "confirm:  ")
	p2, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(p2)

	if string(p1) != string(p2) {
		common.WipeByteArray(p1)
		return nil, fmt.Errorf("passwords do not match")
	}
	return p1, nil
}
