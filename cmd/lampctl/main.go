// lampctl is the offline administration tool for the lampd database:
// user management, history inspection and pruning. It operates on the
// SQLite file directly and is the only code path that deletes rows.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/smartlamp/lampd/internal/actionlog"
	"github.com/smartlamp/lampd/internal/auth"
	"github.com/smartlamp/lampd/internal/db"
)

const usage = `lampctl - lampd administration tool

Usage:
  lampctl [-d path] <command> [subcommand] [arguments]

Commands:
  users list                     Show all users
  users add <user> <pass> [email]  Create a user (email defaults to <user>@local.home)
  users delete <username>        Delete a user
  users reset <username>         Reset a password (prompts twice)
  users clear                    Delete ALL users (asks confirmation)

  history list [all]             Show recent history (default last 20)
  history clear                  Delete ALL history (asks confirmation)

  db info                        Show database statistics
  db reset                       Wipe users, history and revoked tokens (asks confirmation)

Flags:
  -d path   SQLite database path (default ./lampd.sqlite)
`

func main() {
	dbPath := flag.String("d", "./lampd.sqlite", "SQLite database path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 || args[0] == "help" {
		flag.Usage()
		return
	}

	database, err := db.Open(*dbPath)
	if err != nil {
		fail("open database: %v", err)
	}
	defer database.Close()

	store := auth.NewStore(database.DB)
	history := actionlog.New(database.DB)

	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	switch cmd {
	case "users":
		runUsers(store, sub, args[2:])
	case "history":
		runHistory(history, sub, args[2:])
	case "db":
		runDB(store, history, sub)
	default:
		fail("unknown command %q, run 'lampctl help' for usage", cmd)
	}
}

func runUsers(store *auth.Store, sub string, args []string) {
	switch sub {
	case "list":
		users, err := store.ListUsers()
		if err != nil {
			fail("list users: %v", err)
		}
		if len(users) == 0 {
			fmt.Println("No users found.")
			return
		}
		fmt.Printf("Users (%d total):\n", len(users))
		for _, u := range users {
			fmt.Printf("  %4d  %-20s %-30s %s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}

	case "add":
		if len(args) < 2 {
			fail("usage: lampctl users add <username> <password> [email]")
		}
		username, password := args[0], args[1]
		email := username + "@local.home"
		if len(args) > 2 {
			email = args[2]
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			fail("%v", err)
		}
		if _, err := store.CreateUser(username, email, hash); err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				fail("user %q or email %q already exists", username, email)
			}
			fail("create user: %v", err)
		}
		fmt.Printf("User %q created (email: %s).\n", username, email)

	case "delete":
		if len(args) < 1 {
			fail("usage: lampctl users delete <username>")
		}
		if err := store.DeleteUser(args[0]); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				fail("user %q not found", args[0])
			}
			fail("delete user: %v", err)
		}
		fmt.Printf("User %q deleted.\n", args[0])

	case "reset":
		if len(args) < 1 {
			fail("usage: lampctl users reset <username>")
		}
		password := promptPassword("Enter new password: ")
		if password == "" {
			fail("password cannot be empty")
		}
		if promptPassword("Confirm new password: ") != password {
			fail("passwords don't match")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			fail("%v", err)
		}
		if err := store.SetPassword(args[0], hash); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				fail("user %q not found", args[0])
			}
			fail("set password: %v", err)
		}
		fmt.Printf("Password updated for %q.\n", args[0])

	case "clear":
		if !confirm("Delete ALL users?") {
			fmt.Println("Cancelled.")
			return
		}
		n, err := store.DeleteAllUsers()
		if err != nil {
			fail("clear users: %v", err)
		}
		fmt.Printf("Deleted %d user(s).\n", n)

	default:
		fail("unknown users subcommand %q (list, add, delete, reset, clear)", sub)
	}
}

func runHistory(history *actionlog.Log, sub string, args []string) {
	switch sub {
	case "list":
		var entries []actionlog.Entry
		var err error
		if len(args) > 0 && args[0] == "all" {
			entries, err = history.All()
		} else {
			entries, err = history.Recent(20)
		}
		if err != nil {
			fail("list history: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("No history found.")
			return
		}
		total, err := history.Count()
		if err != nil {
			fail("count history: %v", err)
		}
		fmt.Printf("Action history (%d of %d total):\n", len(entries), total)
		for _, e := range entries {
			who := string(e.Actor)
			if e.Username != "" {
				who = e.Username
			}
			fmt.Printf("  [%s] %-3s by %s", e.OccurredAt.Format("2006-01-02 15:04:05"), e.Action, who)
			if e.Detail != "" {
				fmt.Printf(" (%s)", e.Detail)
			}
			fmt.Println()
		}

	case "clear":
		if !confirm("Delete ALL history?") {
			fmt.Println("Cancelled.")
			return
		}
		n, err := history.Clear()
		if err != nil {
			fail("clear history: %v", err)
		}
		fmt.Printf("Deleted %d history record(s).\n", n)

	default:
		fail("unknown history subcommand %q (list, clear)", sub)
	}
}

func runDB(store *auth.Store, history *actionlog.Log, sub string) {
	switch sub {
	case "info":
		users, err := store.ListUsers()
		if err != nil {
			fail("count users: %v", err)
		}
		entries, err := history.Count()
		if err != nil {
			fail("count history: %v", err)
		}
		fmt.Printf("Users:   %d\nHistory: %d\n", len(users), entries)

	case "reset":
		if !confirm("WIPE ENTIRE DATABASE?") {
			fmt.Println("Cancelled.")
			return
		}
		users, err := store.DeleteAllUsers()
		if err != nil {
			fail("delete users: %v", err)
		}
		entries, err := history.Clear()
		if err != nil {
			fail("clear history: %v", err)
		}
		if _, err := store.ClearRevokedTokens(); err != nil {
			fail("clear revoked tokens: %v", err)
		}
		fmt.Printf("Database reset. Deleted %d user(s) and %d history record(s).\n", users, entries)

	default:
		fail("unknown db subcommand %q (info, reset)", sub)
	}
}

func confirm(question string) bool {
	fmt.Printf("%s Type 'yes' to confirm: ", question)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fail("read password: %v", err)
	}
	return string(pw)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
