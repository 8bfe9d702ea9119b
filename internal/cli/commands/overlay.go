// Copyright 2025 scmfs Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"scmfs/internal/overlay"
	"scmfs/internal/util"
)

// waitForLock makes overlay commands retry while another process holds
// the mount lock instead of failing immediately.
var waitForLock bool

var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Inspect and manage the on-disk overlay store",
	Long: `Inspect and manage the overlay store that persists materialized inodes.

These are debugging commands: they take the overlay mount lock, so they
cannot run while the filesystem is mounted (use --wait to retry with
backoff, for up to about a minute, while the lock is held).`,
}

var overlayInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Format a directory as an overlay root (or validate an existing one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOverlayInit,
}

var overlayInfoCmd = &cobra.Command{
	Use:   "info [dir]",
	Short: "Show overlay root information",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOverlayInfo,
}

var overlayScanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Scan the overlay and print the maximum recorded inode number",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOverlayScan,
}

var overlayLsCmd = &cobra.Command{
	Use:   "ls [dir] <inode>",
	Short: "Print the directory listing stored for an inode",
	Long: `Print the directory listing stored for an inode.

With one argument the argument is the inode number and the overlay root
comes from settings; with two, the first is the overlay root.

Examples:
  scmfs overlay ls 1
  scmfs overlay ls /var/lib/scmfs/overlay 1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runOverlayLs,
}

func init() {
	overlayCmd.PersistentFlags().BoolVar(&waitForLock, "wait", false, "wait for the overlay mount lock instead of failing")
	overlayCmd.AddCommand(overlayInitCmd)
	overlayCmd.AddCommand(overlayInfoCmd)
	overlayCmd.AddCommand(overlayScanCmd)
	overlayCmd.AddCommand(overlayLsCmd)
	rootCmd.AddCommand(overlayCmd)
}

// resolveOverlayDir picks the overlay root from the argument or the
// settings file.
func resolveOverlayDir(args []string) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	settings, err := LoadSettings()
	if err != nil {
		return "", err
	}
	if settings.OverlayDir == "" {
		return "", fmt.Errorf("no overlay directory given and overlay_dir is not set in %s", SettingsPath())
	}
	return settings.OverlayDir, nil
}

// openOverlay opens the overlay, retrying while the lock is held if
// --wait was given.
func openOverlay(cmd *cobra.Command, dir string) (*overlay.Overlay, error) {
	if !waitForLock {
		return overlay.Open(dir)
	}
	ctx := cmd.Context()
	return util.RetryWithResult(ctx, func() (*overlay.Overlay, error) {
		return overlay.Open(dir)
	}, util.LockRetryOptions(ctx)...)
}

func runOverlayInit(cmd *cobra.Command, args []string) error {
	dir, err := resolveOverlayDir(args)
	if err != nil {
		return err
	}

	o, err := openOverlay(cmd, dir)
	if err != nil {
		return err
	}
	defer o.Close()

	fmt.Printf("Overlay root: %s\n", o.LocalDir())
	fmt.Println("Format version: 1")
	return nil
}

func runOverlayInfo(cmd *cobra.Command, args []string) error {
	dir, err := resolveOverlayDir(args)
	if err != nil {
		return err
	}

	o, err := openOverlay(cmd, dir)
	if err != nil {
		return err
	}
	defer o.Close()

	inodes, err := countMaterializedInodes(o.LocalDir())
	if err != nil {
		return err
	}

	fmt.Printf("Overlay root: %s\n", o.LocalDir())
	fmt.Println("Format version: 1")
	fmt.Printf("Materialized inodes: %d\n", inodes)
	return nil
}

// countMaterializedInodes sweeps the 256 shard subdirectories and
// counts entries named by a decimal inode number.
func countMaterializedInodes(root string) (int, error) {
	count := 0
	for n := 0; n < 256; n++ {
		shard := filepath.Join(root, fmt.Sprintf("%02x", n))
		entries, err := os.ReadDir(shard)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		for _, e := range entries {
			if _, err := strconv.ParseUint(e.Name(), 10, 64); err == nil {
				count++
			}
		}
	}
	return count, nil
}

func runOverlayScan(cmd *cobra.Command, args []string) error {
	dir, err := resolveOverlayDir(args)
	if err != nil {
		return err
	}

	o, err := openOverlay(cmd, dir)
	if err != nil {
		return err
	}
	defer o.Close()

	max, err := o.MaxRecordedInode()
	if err != nil {
		return err
	}
	fmt.Printf("Max recorded inode: %d\n", max)
	return nil
}

func runOverlayLs(cmd *cobra.Command, args []string) error {
	inoArg := args[len(args)-1]
	ino, err := strconv.ParseUint(inoArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid inode number %q", inoArg)
	}

	dir, err := resolveOverlayDir(args[:len(args)-1])
	if err != nil {
		return err
	}

	o, err := openOverlay(cmd, dir)
	if err != nil {
		return err
	}
	defer o.Close()

	listing, err := o.LoadDir(ino)
	if err != nil {
		return err
	}
	if listing == nil {
		return fmt.Errorf("inode %d has no overlay directory data", ino)
	}

	names := make([]string, 0, len(listing))
	for name := range listing {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ent := listing[name]
		if ent.IsMaterialized() {
			fmt.Printf("%-30s mode=%06o ino=%d\n", name, ent.Mode, ent.Ino)
		} else {
			fmt.Printf("%-30s mode=%06o hash=%x\n", name, ent.Mode, ent.Hash)
		}
	}
	return nil
}
