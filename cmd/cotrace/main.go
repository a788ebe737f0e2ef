// cotrace pretty-prints a cotest scheduler trace (the JSONL file written
// when tracing is enabled in .cotest.yaml or via cotest.WithTrace).
//
// Usage:
//
//	cotrace show <trace.jsonl>        print the trace
//	cotrace follow <trace.jsonl>      print and keep following appends
//	cotrace version
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/msageha/cotest/internal/events"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "show":
		runShow(os.Args[2:])
	case "follow":
		runFollow(os.Args[2:])
	case "version":
		fmt.Printf("cotrace %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: cotrace <command> [arguments]

commands:
  show <file>     print a recorded trace
  follow <file>   print a trace and keep following appended records
  version         print the cotrace version`)
}

func runShow(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: cotrace show <file>")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "cotrace: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := printRecords(f); err != nil {
		fmt.Fprintf(os.Stderr, "cotrace: %v\n", err)
		os.Exit(1)
	}
}

// runFollow prints the current contents and then tails the file, waking
// on filesystem write events rather than polling.
func runFollow(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: cotrace follow <file>")
		os.Exit(1)
	}
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cotrace: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := printRecords(f); err != nil {
		fmt.Fprintf(os.Stderr, "cotrace: %v\n", err)
		os.Exit(1)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cotrace: %v\n", err)
		os.Exit(1)
	}
	defer watcher.Close()

	// Watch the directory: rotation replaces the file under the same name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		fmt.Fprintf(os.Stderr, "cotrace: %v\n", err)
		os.Exit(1)
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name != path {
				continue
			}
			if ev.Op.Has(fsnotify.Rename) || ev.Op.Has(fsnotify.Remove) {
				// Rotated away; reopen the fresh file from the start.
				f.Close()
				f, err = os.Open(path)
				if err != nil {
					continue
				}
			}
			if err := printRecords(f); err != nil && err != io.EOF {
				fmt.Fprintf(os.Stderr, "cotrace: %v\n", err)
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "cotrace: watch: %v\n", err)
		}
	}
}

// printRecords consumes records from r's current offset to EOF.
func printRecords(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec events.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			fmt.Printf("%s  (unparseable: %v)\n", line, err)
			continue
		}
		fmt.Println(formatRecord(rec))
	}
	return scanner.Err()
}

func formatRecord(rec events.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-16s", rec.Timestamp.Format("15:04:05.000000"), rec.Type)
	if rec.Coroutine != "" {
		fmt.Fprintf(&b, "  %s", rec.Coroutine)
	}
	if len(rec.Detail) > 0 {
		keys := make([]string, 0, len(rec.Detail))
		for k := range rec.Detail {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s=%v", k, rec.Detail[k])
		}
	}
	return b.String()
}
