package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleFind(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"replacements": [
			{"find": "John Doe", "replace": "[REDACTED]"}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.Replacements, 1)
	assert.Equal(t, "John Doe", cfg.Replacements[0].Find)
	assert.Equal(t, "[REDACTED]", cfg.Replacements[0].Replace)
	assert.False(t, cfg.Replacements[0].Regex)
	assert.False(t, cfg.Replacements[0].CaseInsensitive)
}

func TestParseMultiFindExpandsInOrder(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"replacements": [
			{"find": ["John Doe", "Jane Smith", "Bob Johnson"], "replace": "[NAME]", "caseInsensitive": true},
			{"find": "\\d{3}-\\d{2}-\\d{4}", "replace": "[SSN]", "regex": true}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.Replacements, 4)

	names := []string{"John Doe", "Jane Smith", "Bob Johnson"}
	for i, name := range names {
		assert.Equal(t, name, cfg.Replacements[i].Find)
		assert.Equal(t, "[NAME]", cfg.Replacements[i].Replace)
		assert.True(t, cfg.Replacements[i].CaseInsensitive)
		assert.False(t, cfg.Replacements[i].Regex)
	}
	assert.Equal(t, `\d{3}-\d{2}-\d{4}`, cfg.Replacements[3].Find)
	assert.True(t, cfg.Replacements[3].Regex)
}

func TestParseCompressionDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"replacements": []}`))
	require.NoError(t, err)
	assert.True(t, cfg.Compression.Preserve)
	assert.Equal(t, 9, cfg.Compression.Level)

	cfg, err = Parse([]byte(`{"compression": {"preserve": false}}`))
	require.NoError(t, err)
	assert.False(t, cfg.Compression.Preserve)
	assert.Equal(t, 9, cfg.Compression.Level)

	cfg, err = Parse([]byte(`{"compression": {"level": 3}}`))
	require.NoError(t, err)
	assert.True(t, cfg.Compression.Preserve)
	assert.Equal(t, 3, cfg.Compression.Level)
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"malformed JSON":      `{"replacements": [}`,
		"missing find":        `{"replacements": [{"replace": "[X]"}]}`,
		"empty find":          `{"replacements": [{"find": "", "replace": "[X]"}]}`,
		"empty find in array": `{"replacements": [{"find": ["ok", ""], "replace": "[X]"}]}`,
		"level too high":      `{"compression": {"level": 10}}`,
		"level negative":      `{"compression": {"level": -1}}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParseScriptField(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"replacements": [
			{"find": "Jane", "replace": "[NAME]", "script": "replacement.toUpperCase()"}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.Replacements, 1)
	assert.Equal(t, "replacement.toUpperCase()", cfg.Replacements[0].Script)
}

func TestLoadReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"replacements": [{"find": "secret", "replace": "[X]"}],
		"compression": {"preserve": true, "level": 6}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Replacements, 1)
	assert.Equal(t, 6, cfg.Compression.Level)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
