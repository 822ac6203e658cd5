package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/reactor/internal/build"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	exitCode := run([]string{"version"}, &out)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "reactor version "+build.Version+"\n", out.String())
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run([]string{"frobnicate"}, &out))
}

func TestRun_BuildWithoutProjectFile(t *testing.T) {
	t.Setenv("REACTOR_TRACING", "off")
	t.Setenv("REACTOR_NATS_URL", "")
	root := t.TempDir()

	var out bytes.Buffer
	exitCode := run([]string{"build", "-C", root}, &out)
	assert.Equal(t, 1, exitCode)
}

func TestRun_StatusWithoutPreviousBuild(t *testing.T) {
	t.Setenv("REACTOR_TRACING", "off")
	t.Setenv("REACTOR_NATS_URL", "")
	root := t.TempDir()

	var out bytes.Buffer
	assert.Equal(t, 1, run([]string{"status", "-C", root}, &out))
	assert.Empty(t, out.String())
}
