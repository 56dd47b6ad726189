package datalink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback(t *testing.T) {
	assert.Equal(t, "-", fallback(""))
	assert.Equal(t, "10.0.0.1", fallback("10.0.0.1"))
}

func TestFallbackUint(t *testing.T) {
	assert.Equal(t, "-", fallbackUint(0))
	assert.Equal(t, "1500", fallbackUint(1500))
}

// writeHelperScript drops an executable named helperProgram onto a fresh
// directory and points PATH at it, so runHelper's exec.LookPath resolves to
// a script we control instead of the real rmfd-port-data-wwan-service.
func writeHelperScript(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, helperProgram)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	t.Setenv("PATH", dir)
}

func TestRunHelperSuccess(t *testing.T) {
	writeHelperScript(t, "exit 0")
	err := runHelper(context.Background(), []string{"wwan0", "start"})
	assert.NoError(t, err)
}

func TestRunHelperNonZeroExitMapsToError(t *testing.T) {
	writeHelperScript(t, "exit 7")
	err := runHelper(context.Background(), []string{"wwan0", "stop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 7")
}

func TestCoordinatorInterfaceAndLinkLayerAccessors(t *testing.T) {
	c := &Coordinator{iface: "wwan0", link: 1}
	assert.Equal(t, "wwan0", c.InterfaceName())
	assert.EqualValues(t, 1, c.LinkLayer())
}
