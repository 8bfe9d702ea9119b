package overlay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scmfs/internal/codec"
	"scmfs/internal/common"
)

func sampleHash(b byte) []byte {
	return bytes.Repeat([]byte{b}, 20)
}

func TestDirRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dir  Dir
	}{
		{"empty", Dir{}},
		{
			"single materialized file",
			Dir{"a.txt": {Mode: ModeFile | 0o644, Ino: 17}},
		},
		{
			"single hash-backed file",
			Dir{"b.txt": {Mode: ModeFile | 0o644, Hash: sampleHash(0xaa)}},
		},
		{
			"mixed listing",
			Dir{
				"a":     {Mode: ModeFile | 0o644, Hash: sampleHash(0xaa)},
				"b":     {Mode: ModeDir | 0o755, Ino: 2},
				"c.bin": {Mode: ModeFile | 0o600, Ino: 300},
				"sub":   {Mode: ModeDir | 0o755, Hash: sampleHash(0x01)},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := encodeDir(tt.dir)
			require.NoError(t, err)

			got, err := decodeDir(data)
			require.NoError(t, err)
			require.Len(t, got, len(tt.dir))
			for name, want := range tt.dir {
				ent, ok := got[name]
				require.True(t, ok, "missing entry %q", name)
				assert.Equal(t, want.Mode, ent.Mode, "entry %q mode", name)
				assert.Equal(t, want.Ino, ent.Ino, "entry %q inode", name)
				if len(want.Hash) == 0 {
					assert.Empty(t, ent.Hash, "entry %q hash", name)
				} else {
					assert.Equal(t, want.Hash, ent.Hash, "entry %q hash", name)
				}
			}
		})
	}
}

func TestEncodeDirDeterministic(t *testing.T) {
	t.Parallel()

	dir := Dir{
		"zebra": {Mode: ModeFile | 0o644, Ino: 9},
		"apple": {Mode: ModeDir | 0o755, Hash: sampleHash(0x33)},
		"mango": {Mode: ModeFile | 0o600, Ino: 12},
	}

	first, err := encodeDir(dir)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := encodeDir(dir)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncodeDirInvariant(t *testing.T) {
	t.Parallel()

	t.Run("both inode and hash", func(t *testing.T) {
		t.Parallel()
		_, err := encodeDir(Dir{"x": {Mode: ModeFile, Ino: 5, Hash: sampleHash(1)}})
		assert.ErrorIs(t, err, common.ErrCorruptDir)
	})

	t.Run("neither inode nor hash", func(t *testing.T) {
		t.Parallel()
		_, err := encodeDir(Dir{"x": {Mode: ModeFile}})
		assert.ErrorIs(t, err, common.ErrCorruptDir)
	})
}

func TestDecodeDirErrors(t *testing.T) {
	t.Parallel()

	t.Run("garbage bytes", func(t *testing.T) {
		t.Parallel()
		_, err := decodeDir([]byte("not cbor at all"))
		assert.ErrorIs(t, err, common.ErrCorruptDir)
	})

	t.Run("unknown payload version", func(t *testing.T) {
		t.Parallel()
		data, err := codec.Marshal(wireDir{Version: 99, Entries: nil})
		require.NoError(t, err)
		_, err = decodeDir(data)
		assert.ErrorIs(t, err, common.ErrUnsupportedVersion)
	})

	t.Run("invariant violation on decode", func(t *testing.T) {
		t.Parallel()
		data, err := codec.Marshal(wireDir{
			Version: dirPayloadVersion,
			Entries: map[string]wireEntry{
				"x": {Mode: ModeFile, Ino: 5, Hash: sampleHash(1)},
			},
		})
		require.NoError(t, err)
		_, err = decodeDir(data)
		assert.ErrorIs(t, err, common.ErrCorruptDir)
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		t.Parallel()
		// Hand-built payload: {1: 1, 2: {"a": {...}, "a": {...}}}
		// using the integer-keyed schema with a duplicated entry name.
		entry := []byte{
			0xa2, // map(2)
			0x01, 0x19, 0x81, 0xa4, // 1: 33188 (mode 0o100644)
			0x02, 0x05, // 2: 5 (ino)
		}
		payload := []byte{
			0xa2,       // map(2)
			0x01, 0x01, // 1: 1 (version)
			0x02, 0xa2, // 2: map(2) entries
			0x61, 'a',
		}
		payload = append(payload, entry...)
		payload = append(payload, 0x61, 'a')
		payload = append(payload, entry...)

		_, err := decodeDir(payload)
		assert.ErrorIs(t, err, common.ErrCorruptDir)
	})
}
