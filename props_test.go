package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertiesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radio.props")

	p := NewProperties()
	p.SetInt("a", 42)
	p.SetInt64("b", -9000000000)
	p.SetFloat("c", 3.25)
	p.SetBool("d", true)
	p.SetString("band[3].title", "40")
	require.NoError(t, p.Save(path))

	q, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, 42, q.GetInt("a", 0))
	assert.Equal(t, int64(-9000000000), q.GetInt64("b", 0))
	assert.Equal(t, 3.25, q.GetFloat("c", 0))
	assert.True(t, q.GetBool("d", false))
	assert.Equal(t, "40", q.GetString("band[3].title", ""))
}

func TestPropertiesMissingKeysDefault(t *testing.T) {
	p := NewProperties()
	assert.Equal(t, 7, p.GetInt("absent", 7))
	assert.Equal(t, "x", p.GetString("absent", "x"))
	assert.True(t, p.GetBool("absent", true))
}

func TestPropertiesMissingFileIsEmpty(t *testing.T) {
	p, err := LoadProperties(filepath.Join(t.TempDir(), "nope.props"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.GetInt("anything", 1))
}

func TestPropertiesSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radio.props")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n\nnoequals\n=noname\nok=1\n"), 0o644))
	p, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, 1, p.GetInt("ok", 0))
	assert.Equal(t, 9, p.GetInt("noequals", 9))
}

func TestRadioStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radio.props")

	r := testRadio(t)
	r.Duplex = true
	r.Split = true
	r.VFO[VfoA].ApplyMoveTo(7030123)
	r.VFO[VfoA].Step = 50
	r.Tx.Drive = 33
	r.Tx.CWKeyerSpeed = 28
	r.Receivers[0].Volume = 0.75
	r.Bands[Band40].PaCalibration = 41.5
	r.Memory[1].Frequency = 3573000
	r.Memory[1].Mode = ModeDIGU
	require.NoError(t, SaveRadioState(r, path))

	fresh := testRadio(t)
	require.NoError(t, LoadRadioState(fresh, path))
	assert.True(t, fresh.Duplex)
	assert.True(t, fresh.Split)
	assert.Equal(t, int64(7030123), fresh.VFO[VfoA].Frequency)
	assert.Equal(t, int64(50), fresh.VFO[VfoA].Step)
	assert.Equal(t, 33, fresh.Tx.Drive)
	assert.Equal(t, 28, fresh.Tx.CWKeyerSpeed)
	assert.Equal(t, 8, fresh.Tx.CWRampWidthMs, "ramp width follows the restored keyer speed")
	assert.Equal(t, 0.75, fresh.Receivers[0].Volume)
	assert.Equal(t, 41.5, fresh.Bands[Band40].PaCalibration)
	assert.Equal(t, int64(3573000), fresh.Memory[1].Frequency)
	assert.Equal(t, ModeDIGU, fresh.Memory[1].Mode)
}

func TestPropsPathUsesMAC(t *testing.T) {
	d := &DiscoveredRadio{Name: "Hermes Lite"}
	copy(d.MAC[:], []byte{0x00, 0x1C, 0xC0, 0xA2, 0x13, 0x8F})
	path := propsPathForRadio("/tmp/state", d)
	assert.Equal(t, "/tmp/state/001CC0A2138F.props", path)
}
