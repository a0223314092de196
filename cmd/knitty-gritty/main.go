// Command knitty-gritty is the thin front end wiring the FDC engine,
// disk model, and ambient surfaces (config, monitor, pattern viewers,
// lint) into something that runs end to end. Spec.md states the
// physical front end is out of scope; this is the minimum CLI that
// statement leaves room for. Subcommand dispatch follows the
// teacher's flag-based main.go: no cobra, os.Args[1] picks the verb.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/mhallin/knitty-gritty/bitmapio"
	"github.com/mhallin/knitty-gritty/disk"
	"github.com/mhallin/knitty-gritty/fdc"
	"github.com/mhallin/knitty-gritty/knittyconfig"
	"github.com/mhallin/knitty-gritty/knittylint"
	"github.com/mhallin/knitty-gritty/memimage"
	"github.com/mhallin/knitty-gritty/monitor"
	"github.com/mhallin/knitty-gritty/orchestrator"
	"github.com/mhallin/knitty-gritty/pattern"
	"github.com/mhallin/knitty-gritty/patterngui"
	"github.com/mhallin/knitty-gritty/patterntui"
	"github.com/mhallin/knitty-gritty/serial"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

// Exit-code policy: 0 success, 1 usage/config error, 2 protocol or
// structural error surfaced from fdc/memimage/knittylint.
const (
	exitOK       = 0
	exitUsage    = 1
	exitProtocol = 2
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(exitUsage)
	}

	var err error
	switch os.Args[1] {
	case "emulate":
		err = runEmulate(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "browse":
		err = runBrowse(os.Args[2:])
	case "view":
		err = runView(os.Args[2:])
	case "lint":
		err = runLint(os.Args[2:])
	case "version":
		printVersion()
		return
	case "-help", "--help", "help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(exitUsage)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if cmdErr, ok := err.(*commandError); ok {
			os.Exit(cmdErr.code)
		}
		os.Exit(exitUsage)
	}
}

// commandError carries an explicit exit code through the dispatch
// above, distinguishing protocol/structural failures from plain usage
// errors.
type commandError struct {
	code int
	err  error
}

func (e *commandError) Error() string { return e.err.Error() }

func protocolError(err error) error {
	return &commandError{code: exitProtocol, err: err}
}

func printVersion() {
	fmt.Printf("knitty-gritty %s\n", Version)
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if Date != "unknown" {
		fmt.Printf("Built: %s\n", Date)
	}
}

func printHelp() {
	fmt.Printf(`knitty-gritty %s - Tandy FD-100 floppy controller emulator for the KH-940

Usage:
  knitty-gritty emulate [-config PATH] [-disk PATH] [-port DEVICE]
  knitty-gritty show -disk PATH -pattern N
  knitty-gritty browse [-disk PATH]
  knitty-gritty view [-disk PATH]
  knitty-gritty lint -disk PATH
  knitty-gritty version

Commands:
  emulate   Run the FDC engine against a serial port, serving patterns
            from a disk JSON file or a folder of pattern images.
  show      Print one pattern's ASCII render.
  browse    Launch the terminal pattern browser.
  view      Launch the graphical pattern viewer.
  lint      Check a disk/image file's structural invariants.
  version   Show version information.
`, Version)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs
}

// loadConfig resolves the session configuration, from -config if
// given, otherwise the platform default path.
func loadConfig(path string) (*knittyconfig.Config, error) {
	if path != "" {
		return knittyconfig.LoadFrom(path)
	}
	return knittyconfig.Load()
}

// loadDiskState builds a Disk and its decoded MachineState, preferring
// an image-folder load (bitmapio) over the disk JSON when both are
// configured, per spec.md's "load/save pattern folder or disk JSON."
func loadDiskState(cfg *knittyconfig.Config, diskPathOverride string) (*disk.Disk, *memimage.MachineState, error) {
	diskPath := cfg.Disk.JSONPath
	if diskPathOverride != "" {
		diskPath = diskPathOverride
	}

	if cfg.Disk.PatternsPath != "" {
		if info, err := os.Stat(cfg.Disk.PatternsPath); err == nil && info.IsDir() {
			patterns, err := loadPatternFolder(cfg.Disk.PatternsPath)
			if err != nil {
				return nil, nil, fmt.Errorf("loading pattern folder %s: %w", cfg.Disk.PatternsPath, err)
			}
			if len(patterns) > 0 {
				state := memimage.WithPatterns(patterns)
				d := disk.New()
				if err := orchestrator.StateToDisk(state, d); err != nil {
					return nil, nil, protocolError(fmt.Errorf("laying out patterns onto disk: %w", err))
				}
				return d, state, nil
			}
		}
	}

	d, err := disk.Load(diskPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading disk %s: %w", diskPath, err)
	}

	state, err := orchestrator.DiskToState(d)
	if err != nil {
		return nil, nil, protocolError(fmt.Errorf("decoding disk %s: %w", diskPath, err))
	}

	return d, state, nil
}

func loadPatternFolder(dir string) ([]*pattern.Pattern, error) {
	var names []string
	for _, ext := range []string{"*.png", "*.bmp"} {
		matches, err := filepath.Glob(filepath.Join(dir, ext))
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", dir, err)
		}
		names = append(names, matches...)
	}
	sort.Strings(names)

	patterns := make([]*pattern.Pattern, 0, len(names))
	for _, name := range names {
		p, err := bitmapio.ReadPattern(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func runEmulate(args []string) error {
	fs := newFlagSet("emulate")
	configPath := fs.String("config", "", "Path to config.toml (default: platform config dir)")
	diskPath := fs.String("disk", "", "Path to disk JSON (overrides config)")
	port := fs.String("port", "", "Serial device path (overrides config)")
	monitorAddr := fs.String("monitor-addr", "", "Start the monitor server on this address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	d, state, err := loadDiskState(cfg, *diskPath)
	if err != nil {
		return err
	}

	devicePath := cfg.Serial.Port
	if *port != "" {
		devicePath = *port
	}

	p, err := serial.Open(devicePath, serial.DefaultConfig())
	if err != nil {
		return fmt.Errorf("opening serial port %s: %w", devicePath, err)
	}

	engine, err := fdc.New(p, d)
	if err != nil {
		return fmt.Errorf("starting FDC engine: %w", err)
	}

	var mon *monitor.Server
	monAddr := cfg.Monitor.Addr
	if *monitorAddr != "" {
		monAddr = *monitorAddr
	}
	if cfg.Monitor.Enabled || *monitorAddr != "" {
		mon = monitor.NewServer(monAddr, func() monitor.StateSnapshot {
			return monitor.StateSnapshot{
				Mode:          engine.Mode().String(),
				LoadedPattern: state.LoadedPattern,
				PatternCount:  len(state.Patterns),
			}
		})
		engine.OnEvent = mon.Publish
		go func() {
			if err := mon.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "monitor server error: %v\n", err)
			}
		}()
	}

	var shutdownOnce sync.Once
	saveAndExit := func(exitCode int) {
		shutdownOnce.Do(func() {
			if mon != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mon.Shutdown(ctx)
			}
			if err := saveSession(cfg, d); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save session: %v\n", err)
			}
			_ = engine.Close()
			os.Exit(exitCode)
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveAndExit(exitOK)
	}()

	if err := engine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "FDC session ended: %v\n", err)
		saveAndExit(exitProtocol)
	}

	return nil
}

func saveSession(cfg *knittyconfig.Config, d *disk.Disk) error {
	if cfg.Disk.SaveOnExit {
		if err := d.Save(cfg.Disk.JSONPath); err != nil {
			return fmt.Errorf("saving disk JSON: %w", err)
		}
	}
	if cfg.Disk.SaveRaw {
		f, err := os.Create(cfg.Disk.RawDumpPath) // #nosec G304 -- user-configured dump path
		if err != nil {
			return fmt.Errorf("creating raw dump: %w", err)
		}
		defer f.Close()
		if err := orchestrator.WriteRawDump(f, d); err != nil {
			return fmt.Errorf("writing raw dump: %w", err)
		}
	}
	return nil
}

func runShow(args []string) error {
	fs := newFlagSet("show")
	diskPath := fs.String("disk", "", "Path to disk JSON")
	patternNumber := fs.Int("pattern", 0, "Pattern number to render")
	thumbnailPath := fs.String("thumbnail", "", "Also write a scaled-down preview image to this path")
	thumbnailEdge := fs.Uint("thumbnail-edge", 64, "Longest edge in pixels for -thumbnail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *diskPath == "" || *patternNumber == 0 {
		return fmt.Errorf("show requires -disk and -pattern")
	}

	d, err := disk.Load(*diskPath)
	if err != nil {
		return fmt.Errorf("loading disk %s: %w", *diskPath, err)
	}
	state, err := orchestrator.DiskToState(d)
	if err != nil {
		return protocolError(fmt.Errorf("decoding disk %s: %w", *diskPath, err))
	}

	p := state.PatternWithNumber(*patternNumber)
	if p == nil {
		return fmt.Errorf("pattern %d not found on %s", *patternNumber, *diskPath)
	}

	fmt.Printf("Pattern #%03d (%dx%d)\n", p.Number, p.Width, p.Height)
	fmt.Print(p.Render())

	if *thumbnailPath != "" {
		if err := bitmapio.WriteThumbnail(p, *thumbnailPath, *thumbnailEdge); err != nil {
			return fmt.Errorf("writing thumbnail %s: %w", *thumbnailPath, err)
		}
	}
	return nil
}

func runBrowse(args []string) error {
	fs := newFlagSet("browse")
	diskPath := fs.String("disk", "", "Path to disk JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := disk.Load(*diskPath)
	if err != nil {
		return fmt.Errorf("loading disk %s: %w", *diskPath, err)
	}
	state, err := orchestrator.DiskToState(d)
	if err != nil {
		return protocolError(fmt.Errorf("decoding disk %s: %w", *diskPath, err))
	}

	patterntui.New(state).Run()
	return nil
}

func runView(args []string) error {
	fs := newFlagSet("view")
	diskPath := fs.String("disk", "", "Path to disk JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := disk.Load(*diskPath)
	if err != nil {
		return fmt.Errorf("loading disk %s: %w", *diskPath, err)
	}
	state, err := orchestrator.DiskToState(d)
	if err != nil {
		return protocolError(fmt.Errorf("decoding disk %s: %w", *diskPath, err))
	}

	patterngui.New(state).Run()
	return nil
}

func runLint(args []string) error {
	fs := newFlagSet("lint")
	diskPath := fs.String("disk", "", "Path to disk JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *diskPath == "" {
		return fmt.Errorf("lint requires -disk")
	}

	d, err := disk.Load(*diskPath)
	if err != nil {
		return fmt.Errorf("loading disk %s: %w", *diskPath, err)
	}

	l := knittylint.NewLinter(nil)
	issues := l.LintDisk(d)

	state, stateErr := orchestrator.DiskToState(d)
	if stateErr == nil {
		issues = append(issues, knittylint.NewLinter(nil).LintMachineState(state)...)
	} else {
		issues = append(issues, &knittylint.LintIssue{
			Level:   knittylint.LintError,
			Message: fmt.Sprintf("decoding disk as a machine image: %v", stateErr),
			Code:    "DECODE_FAILED",
		})
	}

	hasError := false
	for _, issue := range issues {
		fmt.Println(issue)
		if issue.Level == knittylint.LintError {
			hasError = true
		}
	}

	if len(issues) == 0 {
		fmt.Println("no issues found")
	}
	if hasError {
		return protocolError(fmt.Errorf("%d structural issue(s) found", len(issues)))
	}
	return nil
}
