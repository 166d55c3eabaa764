package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/picnicd/picnic/internal/archive"
	"github.com/picnicd/picnic/internal/learn"
	"github.com/picnicd/picnic/internal/oracle"
	"github.com/picnicd/picnic/internal/pipeline"
)

func runParse(args []string) error {
	cfg, rest, err := loadConfig(args)
	if err != nil {
		return err
	}

	input := ""
	asJSON := false
	dryRun := false
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--input", "-i":
			if i++; i >= len(rest) {
				return fmt.Errorf("--input requires a value")
			}
			input = rest[i]
		case "--json":
			asJSON = true
		case "--dry-run", "-n":
			dryRun = true
		default:
			return fmt.Errorf("unknown flag: %s", rest[i])
		}
	}
	if input == "" {
		return fmt.Errorf("usage: picnic parse --input <file> [--json] [--dry-run]")
	}

	emails, err := readEmails(input)
	if err != nil {
		return err
	}

	storePath := cfg.StorePath
	archivePath := cfg.ArchivePath
	if dryRun {
		dir, err := os.MkdirTemp("", "picnic-dry-")
		if err != nil {
			return fmt.Errorf("creating scratch dir: %w", err)
		}
		defer os.RemoveAll(dir)
		storePath = filepath.Join(dir, "store.json")
		archivePath = ":memory:"
		fmt.Fprintln(os.Stderr, "Dry run mode — no changes will be written")
	}

	store := learn.Open(storePath, cfg)
	arch, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	defer arch.Close()

	runner, err := pipeline.New(cfg, oracle.NewChatClient(cfg.Oracle), store, arch, nil)
	if err != nil {
		return err
	}

	report, err := runner.Run(context.Background(), emails)
	if err != nil {
		return err
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	fmt.Fprintln(os.Stderr, report.Format())

	if asJSON {
		data, err := json.MarshalIndent(report.Events, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding events: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	for _, ev := range report.Events {
		line := ev.Title
		if ev.DateStart != "" {
			line += "  " + ev.DateStart
			if ev.TimeStart != "" {
				line += " " + ev.TimeStart
			}
		}
		if ev.Location != "" {
			line += "  @ " + ev.Location
		}
		fmt.Println(line)
	}
	return nil
}

// readEmails decodes a JSON array of email tuples from a file, or from stdin
// when path is "-".
func readEmails(path string) ([]pipeline.Email, error) {
	var b []byte
	var err error
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var emails []pipeline.Email
	if err := json.Unmarshal(b, &emails); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return emails, nil
}
