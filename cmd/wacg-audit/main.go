package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"wacgbridge/cmd/internal/nodeenv"
	"wacgbridge/config"
	"wacgbridge/storage/archive"
)

func main() {
	configPath := flag.String("config", "./config.toml", "Path to the configuration file")
	archivePath := flag.String("archive", "", "Event archive to replay (defaults to ArchivePath from the config)")
	skipArchive := flag.Bool("skip-archive", false, "Only reconcile the ledger")
	strict := flag.Bool("strict", false, "Also fail when the archive does not reproduce the total supply")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage == config.StorageMemory {
		fmt.Fprintln(os.Stderr, "nothing to audit: Storage is memory")
		os.Exit(1)
	}
	db, err := nodeenv.OpenDatabase(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open state: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	node, err := nodeenv.OpenNode(cfg, db, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open controller: %v\n", err)
		os.Exit(1)
	}

	var arc *archive.Archive
	if !*skipArchive {
		path := strings.TrimSpace(*archivePath)
		if path == "" {
			path = cfg.ArchivePath
		}
		if arc, err = archive.Open(path, nil); err != nil {
			fmt.Fprintf(os.Stderr, "failed to open archive: %v\n", err)
			os.Exit(1)
		}
		defer arc.Close()
	}

	report, err := buildReport(context.Background(), node, arc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit failed: %v\n", err)
		os.Exit(1)
	}
	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))

	if !report.Balanced {
		fmt.Fprintln(os.Stderr, "ledger does not reconcile with total supply")
		os.Exit(1)
	}
	if *strict && report.Archive != nil && !report.Archive.Matches {
		fmt.Fprintln(os.Stderr, "archive does not reproduce total supply")
		os.Exit(1)
	}
}
