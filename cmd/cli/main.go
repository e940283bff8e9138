package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/nickyhof/MiniDB"
	"github.com/nickyhof/MiniDB/db"
	"github.com/nickyhof/MiniDB/internal/config"
	"github.com/nickyhof/MiniDB/internal/logging"
	"github.com/nickyhof/MiniDB/ps"
	"github.com/nickyhof/MiniDB/sql"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	bannerStyle  = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#06B6D4")).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#06B6D4")).
			Align(lipgloss.Center).
			Width(39)
)

// Version is set at build time via -ldflags
var Version = "dev"

const maxHistory = 1000

// Flags are the command-line options of the shell.
type Flags struct {
	config.Config `embed:""`

	File        string           `name:"file" short:"f" help:"Execute a SQL script (path, http(s) URL or s3://bucket/key) and exit"`
	HistoryFile string           `name:"history-file" help:"Command history file (default: ~/.minidb_history)" type:"path" env:"MINIDB_HISTORY_FILE"`
	Version     kong.VersionFlag `help:"Show version and exit"`
}

// CLI holds the CLI state
type CLI struct {
	instance    *MiniDB.Instance
	engine      *db.Engine
	s3          ps.S3Options
	out         io.Writer
	history     []string
	historyFile string
}

func main() {
	var flags Flags
	ctx := kong.Parse(&flags,
		kong.Name("minidb"),
		kong.Description("MiniDB interactive SQL shell"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)
	if err := flags.Validate(); err != nil {
		ctx.Fatalf("%v", err)
	}
	if err := flags.SetupLogging(os.Stderr); err != nil {
		ctx.Fatalf("%v", err)
	}

	os.Exit(run(context.Background(), &flags, os.Stdin, os.Stdout))
}

// run opens the configured database and either executes --file or starts the
// interactive loop. It returns the process exit code.
func run(ctx context.Context, flags *Flags, in io.Reader, out io.Writer) int {
	storage, err := flags.OpenStorage(ctx)
	if err != nil {
		db.DisplayError(out, err)
		return 1
	}
	instance, err := MiniDB.Open(storage)
	if err != nil {
		storage.Close()
		db.DisplayError(out, err)
		return 1
	}
	logging.Debug("database opened", "backend", flags.Storage.Backend, "tables", len(instance.Engine().Tables()))

	cli := NewCLI(instance, flags.StorageOptions().S3, out)
	code := 0
	if flags.File != "" {
		if err := cli.importFile(ctx, flags.File); err != nil {
			code = 1
		}
	} else {
		cli.historyFile = flags.HistoryFile
		if cli.historyFile == "" {
			cli.historyFile = getHistoryPath()
		}
		cli.loadHistory()
		printBanner(out, flags.Storage.Backend)
		cli.run(ctx, in)
		cli.saveHistory()
	}

	if err := instance.Close(); err != nil {
		db.DisplayError(out, err)
		code = 1
	}
	return code
}

func NewCLI(instance *MiniDB.Instance, s3 ps.S3Options, out io.Writer) *CLI {
	return &CLI{
		instance: instance,
		engine:   instance.Engine(),
		s3:       s3,
		out:      out,
		history:  make([]string, 0),
	}
}

func printBanner(out io.Writer, backend string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, bannerStyle.Render(fmt.Sprintf("MiniDB v%s\nRelational Database Engine", Version)))
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Using %s storage", backend)))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	fmt.Fprintln(out)
}

// run reads statements until EOF or .quit. A statement may span several
// lines and ends at ';'.
func (cli *CLI) run(ctx context.Context, in io.Reader) {
	reader := bufio.NewReader(in)
	var multiLineBuffer strings.Builder

	for {
		fmt.Fprint(cli.out, cli.getPrompt(multiLineBuffer.Len() > 0))

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintln(cli.out)
			fmt.Fprintln(cli.out, successStyle.Render("Goodbye!"))
			return
		}

		input = strings.TrimRight(input, "\r\n")
		if strings.TrimSpace(input) == "" {
			continue
		}

		// Dot commands only at the start of a statement
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(strings.TrimSpace(input), ".") {
			if cli.handleCommand(ctx, input) {
				fmt.Fprintln(cli.out, successStyle.Render("Goodbye!"))
				return
			}
			continue
		}

		multiLineBuffer.WriteString(input)
		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !sql.Complete(trimmed) {
			multiLineBuffer.WriteString("\n")
			continue
		}
		multiLineBuffer.Reset()

		for _, statement := range sql.SplitStatements(trimmed) {
			cli.addToHistory(statement + ";")
			cli.execute(statement)
		}
	}
}

func (cli *CLI) execute(statement string) {
	result, err := cli.engine.Execute(statement)
	if err != nil {
		db.DisplayError(cli.out, err)
		return
	}
	result.Display(cli.out)
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return promptStyle.Render("   ...>") + " "
	}
	return promptStyle.Render("minidb>") + " "
}

// handleCommand runs a dot command and reports whether the shell should exit.
func (cli *CLI) handleCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return false
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		return true

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		cli.showTables()

	case ".schema":
		if len(parts) > 1 {
			cli.showSchema(parts[1])
		} else {
			for _, name := range cli.engine.Tables() {
				cli.showSchema(name)
			}
		}

	case ".history":
		cli.printHistory()

	case ".log":
		if len(parts) > 1 {
			cli.showLog(parts[1])
		} else {
			cli.printError("Usage: .log <table>")
		}

	case ".version":
		fmt.Fprintf(cli.out, "MiniDB version %s\n", Version)

	case ".import":
		if len(parts) > 1 {
			_ = cli.importFile(ctx, parts[1])
		} else {
			cli.printError("Usage: .import <file.sql>")
		}

	case ".export":
		if len(parts) > 1 {
			if err := cli.engine.Export(ctx, parts[1], cli.s3); err != nil {
				db.DisplayError(cli.out, err)
			} else {
				fmt.Fprintln(cli.out, successStyle.Render("✓ Exported to "+parts[1]))
			}
		} else {
			cli.printError("Usage: .export <file.sql>")
		}

	default:
		cli.printError(fmt.Sprintf("Unknown command: %s (type .help for commands)", parts[0]))
	}

	return false
}

func (cli *CLI) printError(msg string) {
	fmt.Fprintln(cli.out, errorStyle.Render("✗ "+msg))
}

func (cli *CLI) printHelp() {
	fmt.Fprintln(cli.out)
	fmt.Fprintln(cli.out, headingStyle.Render("Special Commands:"))
	fmt.Fprintln(cli.out, "  .help, .h          Show this help message")
	fmt.Fprintln(cli.out, "  .quit, .exit       Exit the CLI")
	fmt.Fprintln(cli.out, "  .tables            List all tables")
	fmt.Fprintln(cli.out, "  .schema [table]    Show CREATE TABLE statements")
	fmt.Fprintln(cli.out, "  .import <location> Execute SQL statements from a file, URL or s3://bucket/key")
	fmt.Fprintln(cli.out, "  .export <location> Write every table as SQL statements")
	fmt.Fprintln(cli.out, "  .history           Show command history")
	fmt.Fprintln(cli.out, "  .log <table>       Show the commits of a table (git backend)")
	fmt.Fprintln(cli.out, "  .version           Show version info")
	fmt.Fprintln(cli.out)
	fmt.Fprintln(cli.out, headingStyle.Render("SQL Commands:"))
	fmt.Fprintln(cli.out, "  CREATE TABLE <table> (<column> INT|TEXT|BOOL [PRIMARY KEY|UNIQUE] [NOT NULL], ...);")
	fmt.Fprintln(cli.out, "  INSERT INTO <table> [(<cols>)] VALUES (<vals>);")
	fmt.Fprintln(cli.out, "  SELECT *|<cols> FROM <table> [WHERE <col> <op> <val>];")
	fmt.Fprintln(cli.out, "  UPDATE <table> SET <col> = <val>, ... [WHERE <col> <op> <val>];")
	fmt.Fprintln(cli.out, "  DELETE FROM <table> [WHERE <col> <op> <val>];")
	fmt.Fprintln(cli.out)
	fmt.Fprintf(cli.out, "%s =, !=, <>, <, <=, >, >=\n", headingStyle.Render("Operators:"))
	fmt.Fprintln(cli.out)
}

func (cli *CLI) showTables() {
	tables := cli.engine.Tables()
	if len(tables) == 0 {
		fmt.Fprintln(cli.out, "No tables")
		return
	}
	for _, name := range tables {
		fmt.Fprintln(cli.out, name)
	}
}

func (cli *CLI) showSchema(table string) {
	schema, err := cli.engine.Describe(table)
	if err != nil {
		db.DisplayError(cli.out, err)
		return
	}
	fmt.Fprintln(cli.out, db.SchemaString(schema)+";")
}

func (cli *CLI) showLog(table string) {
	storage, ok := cli.instance.Storage.(*ps.GitStorage)
	if !ok {
		cli.printError(".log requires the git backend")
		return
	}

	transactions, err := storage.History(table)
	if err != nil {
		db.DisplayError(cli.out, err)
		return
	}
	if len(transactions) == 0 {
		fmt.Fprintf(cli.out, "No commits for %s\n", table)
		return
	}

	data := db.NewTable(cli.out)
	data.Header([]string{"Commit", "When", "Author", "Message"})
	for _, transaction := range transactions {
		data.Row([]string{
			transaction.Id[:8],
			transaction.When.Format("2006-01-02 15:04:05"),
			transaction.Author,
			strings.TrimSpace(transaction.Message),
		})
	}
	data.Render()
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > maxHistory {
		cli.history = cli.history[len(cli.history)-maxHistory:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Fprintln(cli.out, "No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(cli.out, "  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".minidb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.addToHistory(scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		logging.Warn("could not save history", "file", cli.historyFile, "error", err)
		return
	}
	defer file.Close()

	for _, cmd := range cli.history {
		// Multi-line statements are stored on one line
		_, _ = file.WriteString(strings.ReplaceAll(cmd, "\n", " ") + "\n")
	}
}

// importFile executes the statements of a script in order and stops at the
// first failing one.
func (cli *CLI) importFile(ctx context.Context, location string) error {
	reader, err := db.OpenScript(ctx, location, cli.s3)
	if err != nil {
		cli.printError(fmt.Sprintf("Error reading %s: %v", location, err))
		return err
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		cli.printError(fmt.Sprintf("Error reading %s: %v", location, err))
		return err
	}

	statements := sql.SplitStatements(string(data))
	for i, stmt := range statements {
		result, err := cli.engine.Execute(stmt)
		if err != nil {
			cli.printError(fmt.Sprintf("[%d] %s", i+1, truncate(stmt, 50)))
			db.DisplayError(cli.out, err)
			fmt.Fprintln(cli.out, errorStyle.Render(fmt.Sprintf("✗ Import stopped: %d of %d statements succeeded", i, len(statements))))
			return err
		}

		detail := ""
		switch r := result.(type) {
		case db.QueryResult:
			detail = fmt.Sprintf(" (%d rows)", r.RecordsRead)
		case db.CommitResult:
			if r.TablesCreated > 0 {
				detail = fmt.Sprintf(" (%d table created)", r.TablesCreated)
			} else {
				detail = fmt.Sprintf(" (%d affected)", r.Affected())
			}
		}
		fmt.Fprintln(cli.out, successStyle.Render(fmt.Sprintf("[%d] ✓ %s%s", i+1, truncate(stmt, 50), detail)))
	}

	fmt.Fprintln(cli.out, successStyle.Render(fmt.Sprintf("✓ Import complete: %d statements", len(statements))))
	return nil
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
