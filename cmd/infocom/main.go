// Command infocom runs a Z-Machine story file to completion at a terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zirujauak/infocom/internal/memory"
	"github.com/zirujauak/infocom/internal/vmerr"
	"github.com/zirujauak/infocom/internal/zdict"
	"github.com/zirujauak/infocom/internal/zdispatch"
	"github.com/zirujauak/infocom/internal/zframe"
	"github.com/zirujauak/infocom/internal/zobject"
	"github.com/zirujauak/infocom/internal/zpersist"
	"github.com/zirujauak/infocom/internal/ztext"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "infocom",
		Short: "A Z-Machine interpreter for Infocom-era interactive fiction",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var savePath, restorePath string
	var trace bool

	cmd := &cobra.Command{
		Use:   "run <story-file>",
		Short: "Load and execute a story file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if trace {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return runStory(args[0], savePath, restorePath, logger)
		},
	}
	cmd.Flags().StringVar(&savePath, "save", "save.dat", "path a save opcode writes to")
	cmd.Flags().StringVar(&restorePath, "restore", "save.dat", "path a restore opcode reads from")
	cmd.Flags().BoolVar(&trace, "trace", false, "log every dispatched instruction at debug level")
	return cmd
}

func runStory(storyPath, savePath, restorePath string, logger *slog.Logger) error {
	buf, err := os.ReadFile(storyPath)
	if err != nil {
		return fmt.Errorf("reading story file: %w", err)
	}

	mem, err := memory.New(buf)
	if err != nil {
		return fmt.Errorf("loading story image: %w", err)
	}
	if !mem.VerifyChecksum() {
		logger.Warn("story checksum mismatch, loading anyway", "file", storyPath)
	}

	codec, err := ztext.New(mem)
	if err != nil {
		return fmt.Errorf("building text codec: %w", err)
	}
	objects := zobject.Load(mem)
	dict, err := zdict.Load(mem, codec)
	if err != nil {
		return fmt.Errorf("loading dictionary: %w", err)
	}

	frames := zframe.New(mem, uint32(mem.Header().InitialPC))
	screen := newTerminalScreen()
	saves := fileSaveStore{savePath: savePath, restorePath: restorePath}

	d := zdispatch.New(mem, frames, objects, codec, dict, screen, zpersist.CBORFacade{}, saves, nil, logger)

	err = d.Run(context.Background(), uint32(mem.Header().InitialPC))
	if err != nil {
		return fmt.Errorf("running story: %w", err)
	}
	return nil
}

// terminalScreen is the CLI's Screen: stdout for output, a buffered stdin
// reader for input.
type terminalScreen struct {
	in *bufio.Scanner
}

func newTerminalScreen() *terminalScreen {
	return &terminalScreen{in: bufio.NewScanner(os.Stdin)}
}

func (s *terminalScreen) Print(text string) {
	fmt.Print(text)
}

func (s *terminalScreen) NewLine() {
	fmt.Println()
}

func (s *terminalScreen) ReadLine() (string, error) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", vmerr.New(vmerr.InvalidString, "input exhausted")
	}
	return s.in.Text(), nil
}

// fileSaveStore persists one save slot on disk per run, the way a
// single-player terminal interpreter has no need for more than one.
type fileSaveStore struct {
	savePath    string
	restorePath string
}

func (f fileSaveStore) WriteSave(blob []byte) error {
	return os.WriteFile(f.savePath, blob, 0o644)
}

func (f fileSaveStore) ReadSave() ([]byte, error) {
	return os.ReadFile(f.restorePath)
}
