package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "hi", "cyan", "v1 include=*:*")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, ColorCyan))
	assert.Contains(t, out, ColorReset)
	assert.True(t, strings.HasSuffix(out, "v1 include=*:*\n"))
}

func TestColorCode(t *testing.T) {
	assert.Equal(t, ColorRed, colorCode("red"))
	assert.Equal(t, ColorReset, colorCode("purple"))
}
