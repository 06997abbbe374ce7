package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{5242880, "5.0 MB"},
		{1610612736, "1.5 GB"},
		{1099511627776, "1.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))

	sameYear := time.Date(time.Now().Year(), time.March, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "Mar 15 10:30", formatTime(sameYear))

	assert.Equal(t, "Dec 25  2020", formatTime(time.Date(2020, time.December, 25, 8, 0, 0, 0, time.UTC)))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"NAME", "SIZE"}, [][]string{
		{"photos", "1.2 MB"},
		{"a", "0 B"},
	})

	assert.Equal(t, "NAME    SIZE\nphotos  1.2 MB\na       0 B\n", buf.String())
}

func TestStatusf_Quiet(t *testing.T) {
	var buf bytes.Buffer

	cc := &CLIContext{Err: &buf}
	cc.Statusf("hello %s\n", "world")
	assert.Equal(t, "hello world\n", buf.String())

	buf.Reset()
	cc.Flags.Quiet = true
	cc.Statusf("hidden\n")
	assert.Empty(t, buf.String())
}

func TestTableOutput_NonTerminal(t *testing.T) {
	assert.False(t, (&CLIContext{Out: &bytes.Buffer{}}).tableOutput())

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	assert.False(t, (&CLIContext{Out: f}).tableOutput())
}
