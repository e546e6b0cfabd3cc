package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"sigscan/hexdump"
	"sigscan/memscan"
	"sigscan/process"
	"sigscan/process_blob"
	"sigscan/scanner"
	"sigscan/sigfile"

	"github.com/spf13/cobra"
)

var (
	scanType     string
	scanSigsPath string
	scanModule   string
	scanPID      int
	scanName     string
	scanParallel int
	scanContext  int
	scanLimit    int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a file, stdin, a process or a saved dump for a signature",
}

var scanFileCmd = &cobra.Command{
	Use:   "file <path> <pattern>",
	Short: "Scan the bytes of a file",
	Long:  "Scan a file with a sliding window; every offset is tried, so overlapping matches are reported.",
	Args:  cobra.ExactArgs(2),
	RunE:  runScanFile,
}

var scanStreamCmd = &cobra.Command{
	Use:   "stream <pattern>",
	Short: "Scan standard input as a forward-only stream",
	Long: `Scan standard input without buffering it. Bytes are consumed once and never
replayed, so the reported index is the number of failed attempts before the
match rather than a byte offset.`,
	Args: cobra.ExactArgs(1),
	RunE: runScanStream,
}

var scanProcessCmd = &cobra.Command{
	Use:   "process [pattern]",
	Short: "Scan the memory of a running process",
	Long: `Scan a module of a running process, or all of its readable memory when no
module is given. Unreadable pages are skipped, never read.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScanProcess,
}

var scanDumpCmd = &cobra.Command{
	Use:   "dump <dir> [pattern]",
	Short: "Scan a process dump saved by 'sigscan dump'",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runScanDump,
}

func init() {
	scanCmd.PersistentFlags().StringVar(&scanType, "type", "hex", "Pattern type: hex, string, utf16, u8, u16, u32, u64, f32, f64")
	scanCmd.PersistentFlags().IntVar(&scanLimit, "limit", 0, "Stop after this many matches per signature (0 for no limit)")

	for _, cmd := range []*cobra.Command{scanProcessCmd, scanDumpCmd} {
		cmd.Flags().StringVar(&scanSigsPath, "sigs", "", "YAML signature file to scan for instead of a pattern")
		cmd.Flags().StringVar(&scanModule, "module", "", "Module to scan (default: all readable memory)")
		cmd.Flags().IntVar(&scanContext, "context", 0, "Bytes of hexdump context around each match (0 to disable)")
	}

	scanProcessCmd.Flags().IntVar(&scanPID, "pid", 0, "Process ID to scan")
	scanProcessCmd.Flags().StringVar(&scanName, "name", "", "Process name to scan")
	scanProcessCmd.Flags().IntVar(&scanParallel, "parallel", 1, "Goroutines per region")
	scanProcessCmd.MarkFlagsMutuallyExclusive("pid", "name")
	scanProcessCmd.MarkFlagsOneRequired("pid", "name")

	scanCmd.AddCommand(scanFileCmd)
	scanCmd.AddCommand(scanStreamCmd)
	scanCmd.AddCommand(scanProcessCmd)
	scanCmd.AddCommand(scanDumpCmd)
}

func runScanFile(cmd *cobra.Command, args []string) error {
	p, err := compilePattern(args[1], scanType)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	count := 0
	for m := range scanner.ScanBytes(data, p) {
		fmt.Fprintf(cmd.OutOrStdout(), "0x%08x %s\n", m.Index, capturedString(m.Captured))
		if count++; scanLimit > 0 && count >= scanLimit {
			break
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Scan complete: %d matches in %d bytes\n", count, len(data))
	return nil
}

func runScanStream(cmd *cobra.Command, args []string) error {
	p, err := compilePattern(args[0], scanType)
	if err != nil {
		return err
	}

	s := scanner.New(scanner.FromReader(cmd.InOrStdin()), p)
	count := 0
	for m := range s.All() {
		fmt.Fprintf(cmd.OutOrStdout(), "attempt %d %s\n", m.Index, capturedString(m.Captured))
		if count++; scanLimit > 0 && count >= scanLimit {
			break
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Scan complete: %d matches, %d failed attempts\n", count, s.Attempts())
	return nil
}

func runScanProcess(cmd *cobra.Command, args []string) error {
	signatures, err := loadSignatures(args, scanSigsPath, scanType, scanModule)
	if err != nil {
		return err
	}

	pid, err := resolvePID(contextOf(cmd), scanPID, scanName)
	if err != nil {
		return err
	}
	proc, err := openProcess(pid)
	if err != nil {
		return fmt.Errorf("opening process %d: %w", pid, err)
	}
	defer proc.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt)
	defer stop()

	return scanSignatures(ctx, cmd.OutOrStdout(), proc, signatures, func() ([]process.Region, error) {
		mm, err := proc.GetMemoryMap()
		if err != nil {
			return nil, err
		}
		return process.ReadableRegions(mm), nil
	})
}

func runScanDump(cmd *cobra.Command, args []string) error {
	signatures, err := loadSignatures(args[1:], scanSigsPath, scanType, scanModule)
	if err != nil {
		return err
	}

	dump := process_blob.NewProcessDump()
	if err := dump.Load(args[0]); err != nil {
		return err
	}

	return scanSignatures(contextOf(cmd), cmd.OutOrStdout(), dump, signatures, func() ([]process.Region, error) {
		return dump.ReadableRegions(), nil
	})
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// scanSignatures scans target for each signature: inside its module when it
// names one, otherwise region by region over everything readable.
func scanSignatures(ctx context.Context, out io.Writer, target memscan.Target, signatures []sigfile.Signature, readable func() ([]process.Region, error)) error {
	total := 0
	for _, sig := range signatures {
		var regions []process.Region
		if sig.Module != "" {
			module, err := memscan.ResolveModule(target, sig.Module)
			if err != nil {
				return fmt.Errorf("signature %s: %w", sig.Name, err)
			}
			if verbose {
				fmt.Fprintf(out, "# %s: module %s at %s\n", sig.Name, module.Name, module.Region().String())
			}
			regions = []process.Region{module.Region()}
		} else {
			var err error
			if regions, err = readable(); err != nil {
				return fmt.Errorf("listing readable memory: %w", err)
			}
		}

		matches, err := scanRegions(ctx, target, regions, sig)
		if err != nil {
			return fmt.Errorf("signature %s: %w", sig.Name, err)
		}
		for _, m := range matches {
			fmt.Fprintf(out, "%s %s %s\n", sig.Name, m.Address.ToString(), capturedString(m.Captured))
			if scanContext > 0 {
				printContext(out, target, m, sig)
			}
		}
		total += len(matches)
	}

	if verbose {
		fmt.Fprintf(out, "# %d matches for %d signatures\n", total, len(signatures))
	}
	return nil
}

func scanRegions(ctx context.Context, mem process.Memory, regions []process.Region, sig sigfile.Signature) ([]memscan.Match, error) {
	options := []memscan.Option{memscan.WithContext(ctx), memscan.WithWorkers(scanParallel)}

	var matches []memscan.Match
	if scanParallel > 1 {
		for _, region := range regions {
			found, err := memscan.ScanParallel(mem, region, sig.Pattern, options...)
			if err != nil {
				return matches, err
			}
			matches = append(matches, found...)
			if scanLimit > 0 && len(matches) >= scanLimit {
				return matches[:scanLimit], nil
			}
		}
		return matches, ctx.Err()
	}

	for m := range memscan.ScanRegions(mem, regions, sig.Pattern, options...) {
		matches = append(matches, m)
		if scanLimit > 0 && len(matches) >= scanLimit {
			break
		}
	}
	return matches, ctx.Err()
}

func printContext(out io.Writer, mem process.Memory, m memscan.Match, sig sigfile.Signature) {
	data, base, err := hexdump.ReadAround(mem, m.Address, uint64(sig.Pattern.Len()), uint64(scanContext))
	if err != nil {
		fmt.Fprintf(out, "  (no context: %v)\n", err)
		return
	}

	options := hexdump.DefaultOptions()
	options.Address = uint64(base)
	options.Color = isTerminal(out)
	hexdump.DumpToWriter(out, data, options, hexdump.Highlight{
		Offset:  int(m.Address - base),
		Pattern: sig.Pattern,
	})
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func capturedString(captured []byte) string {
	if len(captured) == 0 {
		return "-"
	}
	return fmt.Sprintf("% X", captured)
}
