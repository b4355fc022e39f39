package pebble

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DeBankDeFi/tahani/pkg/engine"
	"github.com/stretchr/testify/require"
)

func TestSuitePebble(t *testing.T) {
	dir := t.TempDir()
	n := 0
	engine.TestSuiteEngine(t, Driver{}, func() string {
		n++
		return filepath.Join(dir, fmt.Sprintf("pebble-testsuite-%d", n))
	})
}

func TestStat(t *testing.T) {
	conn, err := Driver{}.Open(filepath.Join(t.TempDir(), "stat"), nil)
	require.NoError(t, err)
	defer conn.Close()

	out, err := conn.Stat(MetricsProperty)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	_, err = conn.Stat("leveldb.stats")
	require.ErrorIs(t, err, ErrUnknownProperty)
}

func TestIsStoreFile(t *testing.T) {
	for name, want := range map[string]bool{
		"000004.sst":       true,
		"000002.log":       true,
		"MANIFEST-000001":  true,
		"OPTIONS-000003":   true,
		"marker.format.x":  true,
		"CURRENT":          true,
		"notes.txt":        false,
		"backup-manifests": false,
	} {
		require.Equal(t, want, isStoreFile(name), name)
	}
}
