package seed

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/alucardeht/triad/internal/types"
)

const sampleBundle = `
models:
  - ai_type: brain
    slot: 1
    provider: static
    model: echo
    timeout: 5s
nodes:
  - id: n-db
    ai_type: brain
    model_slot: 1
    label: database
    keywords: [sql, index]
    priority: 40
    stacks:
      - id: s-pg
        label: postgres
        keywords: [vacuum]
        domains:
          - id: d-idx
            label: indexing
            keywords: [btree]
            system_prompt: You tune indexes.
          - id: d-off
            label: retired
            active: false
memories:
  - id: m-1
    domain: d-idx
    content: Foreign keys need indexes.
    relevance: 0.9
  - id: m-shared
    content: Prefer boring technology.
`

func TestParseFlattensTree(t *testing.T) {
	b, err := Parse(strings.NewReader(sampleBundle))
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	cat := b.Catalog()
	require.Len(t, cat.Nodes, 1)
	require.Len(t, cat.Stacks, 1)
	require.Len(t, cat.Domains, 2)

	assert.Equal(t, types.AITypeBrain, cat.Nodes[0].AIType)
	require.NotNil(t, cat.Nodes[0].ModelSlot)
	assert.Equal(t, 1, *cat.Nodes[0].ModelSlot)
	assert.True(t, cat.Nodes[0].Active)
	assert.Equal(t, "n-db", cat.Stacks[0].NodeID)
	assert.Equal(t, "s-pg", cat.Domains[0].StackID)
	assert.Equal(t, "You tune indexes.", cat.Domains[0].SystemPrompt)
	assert.False(t, cat.Domains[1].Active)
	assert.Equal(t, []string{}, cat.Domains[1].Keywords)

	models := b.ModelConfigs()
	require.Len(t, models, 1)
	assert.Equal(t, "brain-1", models[0].ID)
	assert.Equal(t, "5s", models[0].Timeout.String())

	mems := b.MemoryRows()
	require.Len(t, mems, 2)
	require.NotNil(t, mems[0].DomainID)
	assert.Equal(t, "d-idx", *mems[0].DomainID)
	assert.Nil(t, mems[1].DomainID)
}

func TestParseUTF16WithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := enc.Bytes([]byte(sampleBundle))
	require.NoError(t, err)

	b, err := Parse(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Len(t, b.Nodes, 1)
}

func TestParseEmptyInput(t *testing.T) {
	b, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, b.Empty())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("nodes:\n  - id: x\n    colour: red\n"))
	require.Error(t, err)
}

func TestValidateReportsAllProblems(t *testing.T) {
	slot := 7
	b := &Bundle{
		Models: []ModelEntry{
			{AIType: "brain", Slot: 1, Provider: "static", Model: "a"},
			{AIType: "brain", Slot: 1, Provider: "static", Model: "b"},
			{AIType: "oracle", Slot: 2, Provider: "static", Model: "c"},
		},
		Nodes: []NodeEntry{
			{ID: "n1", AIType: "brain", Label: "one", ModelSlot: &slot},
			{ID: "n1", AIType: "brain", Label: "dup"},
		},
		Memories: []MemoryEntry{
			{ID: "m1", Domain: "missing", Content: "x"},
		},
	}

	err := b.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "duplicate model for brain/1")
	assert.Contains(t, msg, "unknown ai type")
	assert.Contains(t, msg, "model_slot 7")
	assert.Contains(t, msg, `duplicate node id "n1"`)
	assert.Contains(t, msg, `unknown domain "missing"`)
}

func TestLoadDirMergesMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "brain"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	write := func(rel, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(content), 0644))
	}
	write("brain/nodes.yaml", sampleBundle)
	write("models.yml", "models:\n  - ai_type: heart\n    slot: 2\n    provider: static\n    model: echo\n")
	write("notes.txt", "not yaml at all: [")
	write(".git/config.yaml", "garbage: [")

	b, files, err := LoadDir(dir, nil, []string{"**/.git/**"})
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Len(t, b.Models, 2)
	assert.Len(t, b.Nodes, 1)
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("a/b/c.yaml", DefaultPatterns, nil))
	assert.True(t, Match("top.yml", DefaultPatterns, nil))
	assert.False(t, Match("a/b/c.json", DefaultPatterns, nil))
	assert.False(t, Match(".git/x.yaml", DefaultPatterns, []string{"**/.git/**", ".git/**"}))
}
