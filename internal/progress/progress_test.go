package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChoosesTracker(t *testing.T) {
	assert.IsType(t, &Noop{}, New(false, 10, "Importing"))
	assert.IsType(t, &Noop{}, New(true, 1, "Importing"))
	assert.IsType(t, &Bar{}, New(true, 3, "Importing"))
}

func TestBarWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	bar := newBar(&buf, 2, "Syncing")

	require.NoError(t, bar.Add(1))
	bar.Describe("Syncing yapikredi")
	require.NoError(t, bar.Add(1))
	bar.Close()

	assert.Contains(t, buf.String(), "Syncing")
	assert.Contains(t, buf.String(), "2/2")
}

func TestNoop(t *testing.T) {
	p := NewNoop()
	assert.NoError(t, p.Add(5))
	p.Describe("ignored")
	p.Close()
}
