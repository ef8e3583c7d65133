// cropstudy runs crop simulation studies as batches of remote jobs and
// writes one report per study.
package main

import (
	"context"
	"cropstudy/internal/cli"
	"log/slog"
	"os"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
