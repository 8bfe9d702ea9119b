package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scmfs/internal/overlay"
)

// seedOverlay formats an overlay with a small materialized tree and
// returns its root.
func seedOverlay(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "overlay")

	o, err := overlay.Open(root)
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.SaveDir(overlay.RootInode, overlay.Dir{
		"src":    {Mode: overlay.ModeDir | 0o755, Ino: 2},
		"readme": {Mode: overlay.ModeFile | 0o644, Hash: bytes.Repeat([]byte{0xaa}, 20)},
	}))
	require.NoError(t, o.SaveDir(2, overlay.Dir{
		"main.c": {Mode: overlay.ModeFile | 0o644, Ino: 300},
	}))
	return root
}

// executeCommand runs the CLI with args and returns captured stdout.
func executeCommand(t *testing.T, args ...string) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = old }()

	rootCmd.SetArgs(args)
	execErr := rootCmd.Execute()

	require.NoError(t, w.Close())
	out, readErr := io.ReadAll(r)
	os.Stdout = old
	require.NoError(t, readErr)
	require.NoError(t, execErr)
	return string(out)
}

func TestOverlayInitCommand(t *testing.T) {
	t.Setenv("SCMFS_CONFIG_DIR", t.TempDir())
	root := filepath.Join(t.TempDir(), "fresh")

	out := executeCommand(t, "overlay", "init", root)
	assert.Contains(t, out, "Format version: 1")

	info, err := os.ReadFile(filepath.Join(root, "info"))
	require.NoError(t, err)
	assert.Len(t, info, 8)
}

func TestOverlayInfoCommand(t *testing.T) {
	t.Setenv("SCMFS_CONFIG_DIR", t.TempDir())
	root := seedOverlay(t)

	out := executeCommand(t, "overlay", "info", root)
	assert.Contains(t, out, "Overlay root: "+root)
	assert.Contains(t, out, "Materialized inodes: 2")
}

func TestOverlayScanCommand(t *testing.T) {
	t.Setenv("SCMFS_CONFIG_DIR", t.TempDir())
	root := seedOverlay(t)

	out := executeCommand(t, "overlay", "scan", root)
	assert.Contains(t, out, "Max recorded inode: 300")
}

func TestOverlayLsCommand(t *testing.T) {
	t.Setenv("SCMFS_CONFIG_DIR", t.TempDir())
	root := seedOverlay(t)

	out := executeCommand(t, "overlay", "ls", root, "1")
	assert.Contains(t, out, "src")
	assert.Contains(t, out, "ino=2")
	assert.Contains(t, out, "readme")
	assert.Contains(t, out, "hash=aaaaaaaa")
}

func TestOverlayDirFromSettings(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("SCMFS_CONFIG_DIR", configDir)
	root := seedOverlay(t)

	require.NoError(t, os.WriteFile(filepath.Join(configDir, "settings.yaml"),
		[]byte("overlay_dir: "+root+"\n"), 0o644))

	out := executeCommand(t, "overlay", "scan")
	assert.Contains(t, out, "Max recorded inode: 300")
}

func TestResolveOverlayDirUnset(t *testing.T) {
	t.Setenv("SCMFS_CONFIG_DIR", t.TempDir())

	_, err := resolveOverlayDir(nil)
	assert.Error(t, err)
}

func TestOpenOverlayWaits(t *testing.T) {
	t.Setenv("SCMFS_CONFIG_DIR", t.TempDir())
	root := filepath.Join(t.TempDir(), "overlay")

	holder, err := overlay.Open(root)
	require.NoError(t, err)

	waitForLock = true
	defer func() { waitForLock = false }()

	released := make(chan struct{})
	go func() {
		time.Sleep(300 * time.Millisecond)
		holder.Close()
		close(released)
	}()

	o, err := openOverlay(overlayScanCmd, root)
	require.NoError(t, err)
	defer o.Close()
	<-released
}
