// SPDX-License-Identifier: Apache-2.0
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"coveron/internal/astcursor"
	"coveron/internal/extractor"
	"coveron/internal/markerplan"
	"coveron/internal/model"
	"coveron/internal/serializer"
)

const prompt = "coveron> "

// main runs an interactive loop: paste one function body (a translation
// unit, really) terminated by a blank line, and it prints the CID JSON
// and the instrumented source back out. Adapted from the REPL's
// read-a-line, parse-it, print-the-AST shape, but driving the full
// extractor/markerplan pipeline against a real parse instead of the
// interpreter's tokens.
func main() {
	start(os.Stdin, os.Stdout)
}

func start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	provider := astcursor.NewTreeSitterProvider()

	for {
		fmt.Fprint(out, prompt)
		source, ok := readUntilBlankLine(scanner)
		if !ok {
			return
		}
		if strings.TrimSpace(source) == "" {
			continue
		}

		if err := instrumentAndPrint(provider, []byte(source), out); err != nil {
			fmt.Fprintf(out, "error: %s\n", err)
		}
	}
}

func readUntilBlankLine(scanner *bufio.Scanner) (string, bool) {
	var b strings.Builder
	any := false
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			return b.String(), true
		}
		any = true
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), any
}

func instrumentAndPrint(provider astcursor.Provider, source []byte, out io.Writer) error {
	store, err := model.New("repl.c", source, "repl.cri", true, true)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	root, err := provider.Parse(context.Background(), "repl.c", source, nil, nil)
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}

	ex := extractor.New(store, extractor.Options{CheckpointsEnabled: true, EvaluationsEnabled: true}, "repl.c")
	if err := ex.ExtractTranslationUnit(root); err != nil {
		return fmt.Errorf("extracting: %w", err)
	}

	plan, err := markerplan.Build(store, markerplan.RuntimeConfig{HeaderPath: "coveron_runtime.h", CRIBasename: "repl.cri"})
	if err != nil {
		return fmt.Errorf("building marker plan: %w", err)
	}

	payload, err := serializer.Marshal(store.Document(), serializer.Options{NoComp: true})
	if err != nil {
		return fmt.Errorf("serializing CID: %w", err)
	}

	fmt.Fprintln(out, "--- CID ---")
	fmt.Fprintln(out, string(payload))
	fmt.Fprintln(out, "--- instrumented ---")
	fmt.Fprintln(out, string(markerplan.Apply(source, plan)))
	return nil
}
