// Command forgedb is the interactive shell and script-mode dispatcher for
// the storage engine. With no arguments it drops into a REPL; with a
// subcommand it executes one operation and exits. Exit code 1 means the
// database file failed magic validation at open.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nujra-panda/forgeDB/internal/dberrors"
	"github.com/nujra-panda/forgeDB/internal/engine"
	"github.com/nujra-panda/forgeDB/internal/forgelog"
)

const defaultDBPath = "my_database.db"

var (
	dbPath  string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "forgedb",
		Short: "Single-file B+Tree storage engine with a buffer pool and bloom filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(repl)
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "database file path")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "log split/merge/rebalance events")
	root.SilenceUsage = true
	root.SilenceErrors = true

	cobra.OnInitialize(func() { forgelog.Init(verbose) })

	root.AddCommand(
		lineCommand("insert <id> <username> <email>", "Insert a row", cobra.ExactArgs(3)),
		lineCommand("delete <id>", "Delete a row by id", cobra.ExactArgs(1)),
		lineCommand("select", "Print every row in key order", cobra.NoArgs),
		lineCommand("range <start> <end>", "Print rows with start <= id <= end", cobra.ExactArgs(2)),
		lineCommand("lookup <id>", "Bloom-guarded point lookup", cobra.ExactArgs(1)),
		lineCommand("tree", "Print the tree structure", cobra.NoArgs),
		lineCommand("json", "Print the tree as JSON", cobra.NoArgs),
		lineCommand("stats", "Print file header stats", cobra.NoArgs),
		lineCommand("pool", "Print buffer pool stats", cobra.NoArgs),
		lineCommand("freelist", "Print the free-page list", cobra.NoArgs),
		lineCommand("bloom [rebuild]", "Print bloom stats or rebuild the filter", cobra.MaximumNArgs(1)),
		lineCommand("free <page_num>", "Push a page onto the free list", cobra.ExactArgs(1)),
		lineCommand("metrics", "Dump metrics in Prometheus text format", cobra.NoArgs),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, dberrors.ErrCorruptHeader) {
			os.Exit(1)
		}
	}
	forgelog.Sync()
}

// lineCommand builds a cobra subcommand that feeds the shared dispatcher
// with the same textual grammar the REPL uses.
func lineCommand(use, short string, args cobra.PositionalArgs) *cobra.Command {
	name := strings.Fields(use)[0]
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			return withEngine(func(eng *engine.Engine) error {
				line := strings.TrimSpace(name + " " + strings.Join(cmdArgs, " "))
				dispatchLine(eng, os.Stdout, line)
				return nil
			})
		},
	}
}

func withEngine(fn func(*engine.Engine) error) error {
	eng, err := engine.Open(dbPath)
	if err != nil {
		return err
	}
	defer eng.Close()
	return fn(eng)
}

func repl(eng *engine.Engine) error {
	fmt.Println("ForgeDB (Buffer Pool Edition)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db > ")
		if !scanner.Scan() {
			break
		}
		if !dispatchLine(eng, os.Stdout, scanner.Text()) {
			break
		}
	}
	return scanner.Err()
}
