package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeBankDeFi/tahani/pkg/db"
	"github.com/DeBankDeFi/tahani/pkg/utils"
	"github.com/stretchr/testify/require"
)

// run executes one command line against a fresh command tree and returns
// what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runFull(stdin, args...)
	return out, err
}

func runFull(stdin string, args ...string) (string, string, error) {
	cmd := newApp().root()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestPutGetDelete(t *testing.T) {
	store := filepath.Join(t.TempDir(), "cli")
	mustRun(t, "--store", store, "put", "k", "v")
	require.Equal(t, "v\n", mustRun(t, "--store", store, "get", "k"))

	mustRun(t, "-s", store, "delete", "k", "other")
	_, err := run(t, "", "-s", store, "get", "k")
	require.ErrorContains(t, err, "not found")

	_, err = run(t, "", "get", "k")
	require.ErrorContains(t, err, "no store given")
}

func TestScan(t *testing.T) {
	store := filepath.Join(t.TempDir(), "cli")
	for _, k := range []string{"a", "c", "e"} {
		mustRun(t, "-s", store, "put", k, strings.ToUpper(k))
	}

	for _, tc := range []struct {
		args []string
		want string
	}{
		{nil, "a\tA\nc\tC\ne\tE\n"},
		{[]string{"--reverse"}, "e\tE\nc\tC\na\tA\n"},
		{[]string{"--start", "b"}, "c\tC\ne\tE\n"},
		{[]string{"--start", "d", "--reverse"}, "c\tC\na\tA\n"},
		{[]string{"--start", "c", "--reverse"}, "c\tC\na\tA\n"},
		{[]string{"--start", "z", "--reverse", "-n", "1"}, "e\tE\n"},
		{[]string{"--start", "f"}, ""},
		{[]string{"-k", "--snapshot"}, "a\nc\ne\n"},
		{[]string{"-x", "-n", "1"}, "61\t41\n"},
	} {
		args := append([]string{"-s", store, "scan"}, tc.args...)
		require.Equal(t, tc.want, mustRun(t, args...), "%v", tc.args)
	}
}

func TestCopyDumpLoad(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	mustRun(t, "-s", src, "put", "a", "1")
	mustRun(t, "-s", src, "put", "b", "2")

	dst := filepath.Join(dir, "dst")
	require.Equal(t, "copied 2 entries\n", mustRun(t, "-s", src, "copy", "--to", dst, "--to-engine", "pebble"))
	require.Equal(t, "2\n", mustRun(t, "-s", dst, "-e", "pebble", "get", "b"))

	file := filepath.Join(dir, "src.dump")
	mustRun(t, "-s", src, "dump", file)
	loaded := filepath.Join(dir, "loaded")
	out := mustRun(t, "-s", loaded, "load", file, "--batch-size", "1")
	require.Equal(t, "loaded 2 entries from leveldb store "+src+"\n", out)
	require.Equal(t, "a\t1\nb\t2\n", mustRun(t, "-s", loaded, "scan"))
}

func TestDestroyRepair(t *testing.T) {
	store := filepath.Join(t.TempDir(), "cli")
	mustRun(t, "-s", store, "put", "a", "1")
	mustRun(t, "-s", store, "repair")
	require.Equal(t, "1\n", mustRun(t, "-s", store, "get", "a"))

	_, err := run(t, "", "-s", store, "destroy")
	require.ErrorContains(t, err, "--yes")
	mustRun(t, "-s", store, "destroy", "--yes")
	require.Equal(t, "", mustRun(t, "-s", store, "scan"))
}

func TestOpenRetriesGiveUp(t *testing.T) {
	store := filepath.Join(t.TempDir(), "locked")
	d, err := db.Open(store, nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = run(t, "", "-s", store, "--open-retries", "2", "--retry-delay", "1ms", "get", "a")
	require.ErrorIs(t, err, utils.ErrStoreOpen)
}

func TestExec(t *testing.T) {
	store := filepath.Join(t.TempDir(), "exec")
	script := `
# a whole session
d = open ` + store + `
put $d k "hello world"
get $d k
get $d missing
b = tahani/batch
put $b a 1
write $b $d
len $b
destroy $b
s = snapshot $d
put $d a 2
it = iterator $d $s
seek-to-first $it
key $it
value $it
next $it
next $it
valid? $it
key $it
`
	out, err := run(t, script, "exec")
	require.Error(t, err, out)
	require.ErrorIs(t, err, utils.ErrIteratorInvalidPosition)
	require.ErrorContains(t, err, "line 21")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, []string{
		`<tahani/db "` + store + `" open>`,
		"nil",
		`"hello world"`,
		"nil",
		"<tahani/batch created len=0>",
		"<tahani/batch created len=1>",
		"<tahani/batch created len=1>",
		"1",
		"nil",
		`<tahani/snapshot "` + store + `" created>`,
		"nil",
		`<tahani/iterator "` + store + `" created pinned>`,
		"true",
		`"a"`,
		`"1"`,
		"true",
		"false",
		"false",
	}, lines)

	// the session closed the store on the way out
	mustRun(t, "-s", store, "get", "k")
}

func TestExecWithStore(t *testing.T) {
	store := filepath.Join(t.TempDir(), "exec")
	out, err := run(t, "put $db k v\nhas $db k\nops $db\nbogus $db\n", "-s", store, "exec")
	require.ErrorIs(t, err, utils.ErrUnknownOperation)
	require.True(t, strings.HasPrefix(out, "nil\ntrue\nclose delete get has put stat\n"), out)
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	require.Contains(t, out, "GitCommit:")
	require.Contains(t, out, "Engines:")
}

func TestMetricsFlag(t *testing.T) {
	store := filepath.Join(t.TempDir(), "metrics")
	_, errOut, err := runFull("", "-s", store, "--metrics", "put", "a", "1")
	require.NoError(t, err)
	require.Contains(t, errOut, "tahani_store_op_latency_microseconds")
	require.Contains(t, errOut, `op="put"`)
}
