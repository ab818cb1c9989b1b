package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/windlant/mcp-bridge/internal/tools"
)

// querier is the part of a session the read loop needs.
type querier interface {
	Query(ctx context.Context, text string) (string, error)
	Tools(ctx context.Context) ([]tools.ToolDefinition, error)
}

// readLoop reads queries line by line until quit, EOF, or ctx ends. A failed
// query is reported and the loop goes on.
func readLoop(ctx context.Context, in io.Reader, out io.Writer, q querier) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, "\nQuery: ")
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("input error: %w", err)
					}
				default:
				}
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "tools":
			printTools(ctx, out, q)
			continue
		}

		reply, err := q.Query(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error processing request: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\n%s\n", reply)
	}
}

func printTools(ctx context.Context, out io.Writer, q querier) {
	defs, err := q.Tools(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error listing tools: %v\n", err)
		return
	}
	if len(defs) == 0 {
		fmt.Fprintln(out, "No tools available.")
		return
	}
	for _, d := range defs {
		fmt.Fprintf(out, "- %s: %s\n", d.Name, d.Description)
	}
}
