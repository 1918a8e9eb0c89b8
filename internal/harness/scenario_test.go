package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
max_image_bytes: 4096
steps:
  - action: acquire
    image: { path: page.jpg, size: 100, source: camera }
  - action: confirm
    regions: [HELLO, WORLD]
    expect: { state: recognized, listed: 1 }
assertions:
  - type: records
    texts: ["HELLO\tWORLD"]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, int64(4096), scenario.MaxImageBytes)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, &ImageSpec{Path: "page.jpg", Size: 100, Source: "camera"}, scenario.Steps[0].Image)
	assert.Equal(t, []string{"HELLO", "WORLD"}, scenario.Steps[1].Regions)
	require.NotNil(t, scenario.Steps[1].Expect)
	require.NotNil(t, scenario.Steps[1].Expect.Listed)
	assert.Equal(t, 1, *scenario.Steps[1].Expect.Listed)
	assert.Equal(t, []string{"HELLO\tWORLD"}, scenario.Assertions[0].Texts)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "top level typo",
			content: `
name: x
description: x
steps: [{ action: clear }]
assertion:
  - { type: final_state, state: idle }
`,
		},
		{
			name: "step typo",
			content: `
name: x
description: x
steps: [{ action: confirm, region: [a] }]
assertions: [{ type: final_state, state: idle }]
`,
		},
		{
			name: "expect typo",
			content: `
name: x
description: x
steps: [{ action: clear, expect: { stat: idle } }]
assertions: [{ type: final_state, state: idle }]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "field")
		})
	}
}

func TestLoadScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: x\nsteps: [{ action: clear }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nsteps: [{ action: clear }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "description is required",
		},
		{
			name:    "missing steps",
			content: "name: x\ndescription: x\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "steps list is required",
		},
		{
			name:    "missing assertions",
			content: "name: x\ndescription: x\nsteps: [{ action: clear }]",
			wantErr: "assertions list is required",
		},
		{
			name:    "missing action",
			content: "name: x\ndescription: x\nsteps: [{ id: a }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "steps[0]: action is required",
		},
		{
			name:    "unknown action",
			content: "name: x\ndescription: x\nsteps: [{ action: shake }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: `unknown action "shake"`,
		},
		{
			name:    "acquire without image",
			content: "name: x\ndescription: x\nsteps: [{ action: acquire }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "image is required for acquire",
		},
		{
			name:    "hang and async",
			content: "name: x\ndescription: x\nsteps: [{ action: confirm, hang: true, async: true }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "hang and async are exclusive",
		},
		{
			name:    "fail and regions",
			content: "name: x\ndescription: x\nsteps: [{ action: confirm, fail: boom, regions: [a] }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "fail and regions are exclusive",
		},
		{
			name:    "progress out of range",
			content: "name: x\ndescription: x\nsteps: [{ action: set_ready, progress: 140 }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "progress must be 0-100",
		},
		{
			name:    "remove without id",
			content: "name: x\ndescription: x\nsteps: [{ action: remove }]\nassertions: [{ type: final_state, state: idle }]",
			wantErr: "id is required for remove",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: x\nsteps: [{ action: clear }]\nassertions: [{ type: vibes }]",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "trace_count without event",
			content: "name: x\ndescription: x\nsteps: [{ action: clear }]\nassertions: [{ type: trace_count, count: 1 }]",
			wantErr: "event is required for trace_count",
		},
		{
			name:    "negative trace_count",
			content: "name: x\ndescription: x\nsteps: [{ action: clear }]\nassertions: [{ type: trace_count, event: error, count: -1 }]",
			wantErr: "count must be non-negative",
		},
		{
			name:    "trace_order without states",
			content: "name: x\ndescription: x\nsteps: [{ action: clear }]\nassertions: [{ type: trace_order }]",
			wantErr: "states list is required",
		},
		{
			name:    "final_state without state",
			content: "name: x\ndescription: x\nsteps: [{ action: clear }]\nassertions: [{ type: final_state }]",
			wantErr: "state is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_TraceCountZeroAllowed(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, `
name: x
description: x
steps: [{ action: clear }]
assertions: [{ type: trace_count, event: error, count: 0 }]
`))
	require.NoError(t, err)
}

func TestLoadExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, filepath.Base(path), scenario.Name+".yaml")
		})
	}
}
