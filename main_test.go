package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nixxel-company-limited/rawprint/rawprint"
	"github.com/nixxel-company-limited/rawprint/server"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfigFlags(t *testing.T) {
	v, err := loadConfig([]string{"-p", "/dev/usb/lp0", "--transport", "device", "label.zpl"})
	require.NoError(t, err)

	assert.Equal(t, "/dev/usb/lp0", v.GetString("printer"))
	assert.Equal(t, "device", v.GetString("transport"))
	assert.Equal(t, rawprint.DefaultDocumentName, v.GetString("document-name"))
	assert.Equal(t, "localhost:9100", v.GetString("listen"))
	assert.Equal(t, server.DefaultReadTimeout, v.GetDuration("read-timeout"))
	assert.Equal(t, server.DefaultMaxConnections, v.GetInt("max-connections"))
	assert.Equal(t, []string{"label.zpl"}, v.GetStringSlice("files"))
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("RAWPRINT_PRINTER", "ZDesigner ZD220-203dpi ZPL")
	t.Setenv("RAWPRINT_DOCUMENT_NAME", "Shipping Label")

	v, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "ZDesigner ZD220-203dpi ZPL", v.GetString("printer"))
	assert.Equal(t, "Shipping Label", v.GetString("document-name"))
	assert.Empty(t, v.GetStringSlice("files"))
}

func TestLoadConfigRequiresPrinter(t *testing.T) {
	_, err := loadConfig(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no printer specified")
}

func TestPrintFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/labels/a.zpl", []byte("^XA^FDa^FS^XZ"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dev/usb/lp0", nil, 0o660))

	v, err := loadConfig([]string{"-p", "/dev/usb/lp0", "/labels/a.zpl"})
	require.NoError(t, err)

	err = printFiles(fs, rawprint.NewDeviceFileTransport(fs), v, v.GetStringSlice("files"), zap.NewNop())
	require.NoError(t, err)

	got, err := afero.ReadFile(fs, "/dev/usb/lp0")
	require.NoError(t, err)
	assert.Equal(t, "^XA^FDa^FS^XZ", string(got))
}

func TestPrintFilesMissingDevice(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/labels/a.zpl", []byte("^XA^XZ"), 0o644))

	v, err := loadConfig([]string{"-p", "/dev/usb/lp7", "/labels/a.zpl"})
	require.NoError(t, err)

	err = printFiles(fs, rawprint.NewDeviceFileTransport(fs), v, v.GetStringSlice("files"), zap.NewNop())
	assert.ErrorIs(t, err, rawprint.ErrDestinationUnavailable)
}

func TestLoadConfigServerLimits(t *testing.T) {
	v, err := loadConfig([]string{"-p", "/dev/usb/lp0", "--read-timeout", "5s", "--max-connections", "2"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, v.GetDuration("read-timeout"))
	assert.Equal(t, 2, v.GetInt("max-connections"))
}

func TestRunPrintsFiles(t *testing.T) {
	dir := t.TempDir()
	device := filepath.Join(dir, "lp0")
	label := filepath.Join(dir, "label.zpl")
	require.NoError(t, os.WriteFile(device, nil, 0o600))
	require.NoError(t, os.WriteFile(label, []byte("^XA^FDrun^FS^XZ"), 0o600))

	v, err := loadConfig([]string{"-p", device, "-t", "device", label})
	require.NoError(t, err)
	require.NoError(t, run(v, zap.NewNop()))

	got, err := os.ReadFile(device)
	require.NoError(t, err)
	assert.Equal(t, "^XA^FDrun^FS^XZ", string(got))
}

func TestRunUnknownTransport(t *testing.T) {
	v, err := loadConfig([]string{"-p", "/dev/usb/lp0", "-t", "carrier-pigeon", "label.zpl"})
	require.NoError(t, err)

	err = run(v, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot create transport")
}
