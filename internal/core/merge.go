package core

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"
)

const (
	BinarySampleSize   = 8192 // Bytes to sample for text/binary detection
	BinaryThresholdPct = 10   // Max % non-printable chars for text files
)

// ErrConflict is returned when a recovered file collides with a different
// local file and the strategy says to abort.
var ErrConflict = errors.New("local file differs from vault version")

// MergeStrategy defines how to handle file conflicts during unlock
type MergeStrategy int

const (
	StrategyUseVault MergeStrategy = iota // Overwrite local files with the vault version
	StrategyKeepBoth                      // Keep local file, save vault version as .from-vault
	StrategyAbort                         // Abort before writing anything
	StrategyAsk                           // Ask through the engine's Resolver
)

// ConflictResolution defines the choice for a specific conflict
type ConflictResolution int

const (
	ResolutionUseVault ConflictResolution = iota
	ResolutionKeepBoth
	ResolutionAbort
)

// Resolver decides a single conflict interactively.
type Resolver func(name string, localData, vaultData []byte) (ConflictResolution, error)

// DetectFileType determines if a file is likely text or binary.
// Returns true if the file appears to be text.
//
// Detection heuristic (in order):
//  1. Null bytes present → binary (executables, images, etc.)
//  2. Invalid UTF-8 → binary
//  3. >10% non-printable control chars → binary
func DetectFileType(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	if bytes.IndexByte(data, 0) != -1 {
		return false
	}

	sample := data[:min(len(data), BinarySampleSize)]

	// A multi-byte rune cut by the sample boundary is not an encoding error
	for i := 0; i < utf8.UTFMax && len(sample) < len(data) && !utf8.Valid(sample); i++ {
		sample = sample[:len(sample)-1]
	}
	if !utf8.Valid(sample) {
		return false
	}

	nonPrintable := 0
	for _, b := range sample {
		// Allow common whitespace: space, tab, newline, carriage return
		if b < 32 && b != 9 && b != 10 && b != 13 {
			nonPrintable++
		}
		if b == 127 { // DEL character
			nonPrintable++
		}
	}

	threshold := len(sample) * BinaryThresholdPct / 100
	return nonPrintable <= threshold
}

// CompareFiles checks if two file contents are identical
// Returns true if files are identical (based on SHA-256 hash)
func CompareFiles(local, vaultData []byte) bool {
	localHash := sha256.Sum256(local)
	vaultHash := sha256.Sum256(vaultData)
	return bytes.Equal(localHash[:], vaultHash[:])
}

// resolveConflict maps a strategy onto a resolution for one file
func resolveConflict(name string, localData, vaultData []byte, strategy MergeStrategy, ask Resolver) (ConflictResolution, error) {
	switch strategy {
	case StrategyUseVault:
		return ResolutionUseVault, nil
	case StrategyKeepBoth:
		return ResolutionKeepBoth, nil
	case StrategyAbort:
		return ResolutionAbort, nil
	case StrategyAsk:
		if ask == nil {
			return ResolutionAbort, fmt.Errorf("no conflict resolver for %s", name)
		}
		return ask(name, localData, vaultData)
	}
	return ResolutionAbort, fmt.Errorf("unknown merge strategy %d", strategy)
}

// PromptConflict is a terminal Resolver. It reads single-key choices from in
// and writes prompts to out.
func PromptConflict(in *os.File, out io.Writer) Resolver {
	return func(name string, localData, vaultData []byte) (ConflictResolution, error) {
		isText := DetectFileType(localData) && DetectFileType(vaultData)

		fileType := "binary"
		if isText {
			fileType = "text"
		}
		fmt.Fprintf(out, "\nwarning: conflict detected: %s\n", name)
		fmt.Fprintf(out, "   Local file exists and differs from vault version\n")
		fmt.Fprintf(out, "   File type: %s\n", fileType)
		fmt.Fprintf(out, "\nOptions:\n")
		fmt.Fprintf(out, "  [v] Use vault version (overwrite local)\n")
		fmt.Fprintf(out, "  [b] Keep both (save vault as .from-vault)\n")
		if isText {
			fmt.Fprintf(out, "  [d] Show diff\n")
		}
		fmt.Fprintf(out, "  [a] Abort unlock\n")

		for {
			fmt.Fprintf(out, "\nYour choice: ")
			choice, err := readChoice(in, out)
			if err != nil {
				return ResolutionAbort, err
			}

			switch choice {
			case "v":
				return ResolutionUseVault, nil
			case "b":
				return ResolutionKeepBoth, nil
			case "a":
				return ResolutionAbort, nil
			case "d":
				if !isText {
					fmt.Fprintf(out, "Cannot diff binary files\n")
					continue
				}
				diff, err := GenerateUnifiedDiff(name, vaultData, localData)
				if err != nil {
					fmt.Fprintf(out, "Error during diff: %v\n", err)
					continue
				}
				fmt.Fprint(out, diff)
			default:
				fmt.Fprintf(out, "Invalid choice. Please enter v, b, d or a\n")
			}
		}
	}
}

// readChoice reads a single character choice from the terminal
func readChoice(in *os.File, out io.Writer) (string, error) {
	// Try to use raw mode for single-key input
	oldState, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		// Fallback to regular input
		var input string
		if _, err := fmt.Fscanln(in, &input); err != nil {
			return "", err
		}
		return strings.ToLower(strings.TrimSpace(input)), nil
	}
	defer func() { _ = term.Restore(int(in.Fd()), oldState) }()

	buf := make([]byte, 1)
	if _, err := in.Read(buf); err != nil {
		return "", err
	}

	choice := strings.ToLower(string(buf[0]))
	fmt.Fprintf(out, "%s\r\n", choice) // Echo the choice
	return choice, nil
}

// GenerateUnifiedDiff generates a unified diff using go-diff library
// Returns the diff output, or empty string if files are identical
func GenerateUnifiedDiff(name string, vaultData, localData []byte) (string, error) {
	if CompareFiles(vaultData, localData) {
		return "", nil
	}

	if !DetectFileType(vaultData) || !DetectFileType(localData) {
		return fmt.Sprintf("Binary file %s differs\n", name), nil
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff for better output
	vaultStr, localStr := string(vaultData), string(localData)
	a, b, lineArray := dmp.DiffLinesToChars(vaultStr, localStr)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(vaultStr, diffs)
	if len(patches) == 0 {
		return "", nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- vault/%s\n", name))
	result.WriteString(fmt.Sprintf("+++ local/%s\n", name))
	result.WriteString(dmp.PatchToText(patches))

	return result.String(), nil
}
