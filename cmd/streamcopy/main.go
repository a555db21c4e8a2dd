// Command streamcopy copies its input into a file or SQL-backed byte stream
// through an asynchronous write-coalescing stream, then prints a BLAKE2b-256
// digest of the copied bytes together with the stream counters.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML or JSON settings file")
	flag.StringVar(&opts.in, "in", "-", "input file, - for stdin")
	flag.StringVar(&opts.out, "out", "", "output file (overrides sink.path)")
	flag.StringVar(&opts.sqlDriver, "sql-driver", "", "database/sql driver: sqlite3, postgres or pgx")
	flag.StringVar(&opts.sqlDSN, "sql-dsn", "", "database connection string")
	flag.StringVar(&opts.sqlStream, "sql-stream", "", "stream name inside the database")
	flag.IntVar(&opts.chunk, "chunk", 32<<10, "bytes read from the input per write")
	flag.BoolVar(&opts.appendMode, "append", false, "write after the existing sink contents")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flag.BoolVar(&opts.trace, "trace", false, "print OpenTelemetry spans to stderr")
	flag.StringVar(&opts.writeConfig, "write-config", "", "write the effective settings to this file and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "streamcopy: %v\n", err)
		stop()
		os.Exit(1)
	}
}
