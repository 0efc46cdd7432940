package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	out, err := generateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(out, &schema))
	assert.Equal(t, "DittoNet Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "logging")
	assert.Contains(t, props, "server")
	assert.Contains(t, props, "metrics")

	srv, ok := props["server"].(map[string]any)
	require.True(t, ok)
	serverProps, ok := srv["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, serverProps, "low_latency")
	assert.Contains(t, serverProps, "max_inactivity")
}

func TestSchemaCmd_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")

	cmd := schemaCmd()
	cmd.SetArgs([]string{path})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestInitCmd_WritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dittonet.yaml")

	var out bytes.Buffer
	cmd := initCmd()
	cmd.SetArgs([]string{"--path", path})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.FileExists(t, path)
	assert.Contains(t, out.String(), path)

	// Second run without --force refuses to overwrite.
	cmd = initCmd()
	cmd.SetArgs([]string{"--path", path})
	cmd.SetOut(&out)
	assert.Error(t, cmd.Execute())
}

func TestVersionCmd_Short(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetArgs([]string{"--short"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Equal(t, version+"\n", out.String())
}
