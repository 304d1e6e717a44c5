package plugin

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestManager_InstallAndList(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "plugins"), quietLogger())
	src := t.TempDir()

	names, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, names, "a missing plugin directory MUST list as empty")

	name, err := m.Install(writeScript(t, src, "vuln_probe.lua", `print("probe")`))
	require.NoError(t, err)
	assert.Equal(t, "vuln_probe", name)

	_, err = m.Install(writeScript(t, src, "banner.lua", `print("banner")`))
	require.NoError(t, err)

	names, err = m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"banner", "vuln_probe"}, names)
}

func TestManager_InstallRejections(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "plugins"), quietLogger())
	src := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		_, err := m.Install(writeScript(t, src, "probe.sh", "echo"))
		var ierr *InstallError
		require.ErrorAs(t, err, &ierr)
		assert.Contains(t, ierr.Reason, "not a .lua file")
	})

	t.Run("chunk does not compile", func(t *testing.T) {
		_, err := m.Install(writeScript(t, src, "broken.lua", `print("unterminated`))
		var ierr *InstallError
		require.ErrorAs(t, err, &ierr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := m.Install(filepath.Join(src, "absent.lua"))
		var ierr *InstallError
		require.ErrorAs(t, err, &ierr)
	})

	names, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, names, "rejected plugins MUST NOT be installed")
}

func TestManager_Uninstall(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "plugins"), quietLogger())

	_, err := m.Install(writeScript(t, t.TempDir(), "probe.lua", `print("x")`))
	require.NoError(t, err)

	require.NoError(t, m.Uninstall("probe"))
	assert.Error(t, m.Uninstall("probe"), "a second uninstall MUST report not installed")

	names, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestManager_Run(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "plugins"), quietLogger())
	_, err := m.Install(writeScript(t, t.TempDir(), "echo_args.lua",
		`print(arg[0], arg[1], arg[2], 1 + 1)`))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	require.NoError(t, m.Run("echo_args", []string{"--fast", "hci0"}, out))
	assert.Equal(t, "echo_args\t--fast\thci0\t2\n", out.String())
}

func TestManager_RunFailures(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "plugins"), quietLogger())

	t.Run("not installed", func(t *testing.T) {
		err := m.Run("ghost", nil, io.Discard)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not installed")
	})

	t.Run("runtime error", func(t *testing.T) {
		_, err := m.Install(writeScript(t, t.TempDir(), "crash.lua", `error("boom")`))
		require.NoError(t, err)

		err = m.Run("crash", nil, io.Discard)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "plugin crash failed")
	})
}
