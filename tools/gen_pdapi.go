// Package main extracts the exported PD_* surface from the Paddle inference
// C API header.
//
// NOTE: This generator uses simple regex-based parsing which works for the
// current paddle_c_api.h but may be fragile with future header changes. The
// output is the symbol table consumed by the binding's registration layer;
// diff it against the checked-in table after a runtime upgrade.
package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-paddle_c_api.h>\n", os.Args[0])
		os.Exit(1)
	}

	headerPath := os.Args[1]
	file, err := os.Open(headerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open header file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	// Declarations look like:
	//   PADDLE_CAPI_EXPORT extern PD_Tensor* PD_NewPaddleTensor();
	// and may wrap their parameter list over several lines, so only the
	// line carrying the export macro names a symbol.
	exportPattern := regexp.MustCompile(`PADDLE_CAPI_EXPORT\s+extern\s+[\w* ]+?\b(PD_\w+)\s*\(`)

	var symbols []exportedSymbol
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}

		if matches := exportPattern.FindStringSubmatch(line); len(matches) > 1 {
			symbols = append(symbols, exportedSymbol{
				Name:    matches[1],
				LineNum: lineNum,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	// The legacy C API exports a few dozen symbols; anything far off means
	// the header layout changed and the regex silently missed entries.
	if len(symbols) < 20 || len(symbols) > 120 {
		fmt.Fprintf(os.Stderr, "Warning: Parsed %d symbols, expected 20-120. Header may have changed.\n", len(symbols))
	}

	seen := make(map[string]bool)
	for _, symbol := range symbols {
		if seen[symbol.Name] {
			fmt.Fprintf(os.Stderr, "Error: Duplicate symbol: %s\n", symbol.Name)
			os.Exit(1)
		}
		seen[symbol.Name] = true
	}

	// Symbols the binding cannot work without; their absence means the
	// parser broke, not the header.
	for _, required := range []string{
		"PD_NewPaddleTensor",
		"PD_NewAnalysisConfig",
		"PD_NewPredictor",
		"PD_PredictorRun",
	} {
		if !seen[required] {
			fmt.Fprintf(os.Stderr, "Error: Required symbol %q not found. Parser may be broken.\n", required)
			os.Exit(1)
		}
	}

	generateSymbolList(symbols, headerPath)
}

type exportedSymbol struct {
	Name    string
	LineNum int
}

func generateSymbolList(symbols []exportedSymbol, headerPath string) {
	fmt.Println("package paddle")
	fmt.Println()
	fmt.Printf("// Auto-generated from: %s\n", headerPath)
	fmt.Printf("// Generated on: %s\n", time.Now().Format(time.RFC3339))
	fmt.Println("// Generator: tools/gen_pdapi.go")
	fmt.Printf("// Parsed %d exported symbols\n", len(symbols))
	fmt.Println("//")
	fmt.Println("// exportedCAPISymbols lists every PD_* entry point of the shared library.")
	fmt.Println("// DO NOT EDIT MANUALLY - regenerate using tools/gen_pdapi.go")
	fmt.Println("var exportedCAPISymbols = []string{")

	for _, symbol := range symbols {
		fmt.Printf("\t%-45q // line %d\n", symbol.Name, symbol.LineNum)
	}

	fmt.Println("}")
}
