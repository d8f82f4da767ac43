package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/genmatrix/internal/model"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// readOutput returns the contents of the matrix output file.
func readOutput(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func createSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, ".github/workflows/gen_matrix.py", "#!/usr/bin/env python3\n")
	writeTestFile(t, dir, ".github/workflows/unit-tests.yml", `jobs:
  matrix:
    runs-on: ubuntu-latest
    steps:
      - run: python3 .github/workflows/gen_matrix.py "$FILES" "$GITHUB_OUTPUT" unit
`)
	writeTestFile(t, dir, "aoc_lib/src/lib.hpp", "#pragma once\n")
	writeTestFile(t, dir, "2023/Makefile", "all:\n")
	writeTestFile(t, dir, "2023/run_answer_tests.sh", "#!/bin/sh\n")
	writeTestFile(t, dir, "2023/src/day05.cpp", "#include \"day05.hpp\"\nint main() {}\n")
	writeTestFile(t, dir, "2023/src/day05.hpp", "#include \"lib.hpp\"\n")
	writeTestFile(t, dir, "2023/src/test05.cpp", "#include \"day05.hpp\"\nint main() {}\n")
	writeTestFile(t, dir, "2023/src/day06.cpp", "int main() {}\n")
	return dir
}

const allConfigs = `matrix-build-configs=[{"compiler":"clang++","stdlib":"libstdc++"},{"compiler":"g++","stdlib":"libstdc++"},{"compiler":"clang++-17","stdlib":"libc++"}]`

func TestRunBuild(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	output := filepath.Join(t.TempDir(), "github_output")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--root", dir, `["aoc_lib/src/lib.hpp"]`, output, "build"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	want := `matrix-targets=[{"directory":"2023","name":"day05"},{"directory":"2023","name":"test05"}]` + "\n" + allConfigs + "\n"
	assert.Equal(t, want, readOutput(t, output))

	assert.Contains(t, stdout.String(), "  aoc_lib/src/lib.hpp")
	assert.Contains(t, stdout.String(), "targets[2]{directory,name}:")
}

func TestRunModes(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	tests := []struct {
		mode string
		want string
	}{
		{"build", `[{"directory":"2023","name":"day05"},{"directory":"2023","name":"test05"}]`},
		{"answer", `[{"directory":"2023","name":"day05"}]`},
		{"unit", `[{"directory":"2023","name":"test05"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Parallel()
			output := filepath.Join(t.TempDir(), "out")

			var stdout, stderr bytes.Buffer
			err := run([]string{"--root", dir, `["2023/src/day05.hpp"]`, output, tt.mode}, &stdout, &stderr)
			require.NoError(t, err, stderr.String())
			assert.True(t, strings.HasPrefix(readOutput(t, output), "matrix-targets="+tt.want+"\n"), readOutput(t, output))
		})
	}
}

func TestRunNoTargets(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	output := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--root", dir, `["README.md"]`, output, "unit"}, &stdout, &stderr))
	assert.Equal(t, "matrix-targets=[]\nmatrix-build-configs=[]\n", readOutput(t, output))
}

func TestRunAppends(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	output := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(output, []byte("other=1\n"), 0o644))

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--root", dir, `[]`, output, "build"}, &stdout, &stderr))
	assert.Equal(t, "other=1\nmatrix-targets=[]\nmatrix-build-configs=[]\n", readOutput(t, output))
}

func TestRunWorkflowChange(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	for mode, want := range map[string]string{
		"unit":  `matrix-targets=[{"directory":"2023","name":"test05"}]`,
		"build": `matrix-targets=[]`,
	} {
		output := filepath.Join(t.TempDir(), "out")
		var stdout, stderr bytes.Buffer
		require.NoError(t, run([]string{"--root", dir, `[".github/workflows/unit-tests.yml"]`, output, mode}, &stdout, &stderr), mode)
		got := readOutput(t, output)
		assert.True(t, strings.HasPrefix(got, want+"\n"), "%s: %s", mode, got)
	}
}

func TestRunMaxTargets(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	output := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--root", dir, "--max-targets", "1", `["2023/Makefile"]`, output, "build"}, &stdout, &stderr)
	require.NoError(t, err)
	got := readOutput(t, output)
	assert.True(t, strings.HasPrefix(got, `matrix-targets=[{"directory":"2023","name":"day05"}]`+"\n"), got)
	assert.Contains(t, stderr.String(), "truncated target list")
}

func TestRunVerbose(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, "2023/src/day06.cpp", "#include \"nowhere.hpp\"\nint main() {}\n")
	output := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"-v", "--root", dir, `[]`, output, "build"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "nowhere.hpp")
}

func TestRunPreconditions(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	tests := []struct {
		name string
		args []string
	}{
		{"invalid mode", []string{`[]`, "out", "deploy"}},
		{"invalid json", []string{`not json`, "out", "build"}},
		{"outside root", []string{`["../elsewhere.cpp"]`, "out", "build"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			output := filepath.Join(t.TempDir(), "out")
			args := append([]string{"--root", dir}, tt.args...)
			args[len(args)-2] = output

			var stdout, stderr bytes.Buffer
			err := run(args, &stdout, &stderr)
			require.ErrorIs(t, err, model.ErrPrecondition)
			assert.NoFileExists(t, output, "no output expected on failure")
		})
	}
}

func TestRunMissingRunner(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, "2022/Makefile", "all:\n")
	writeTestFile(t, dir, "2022/src/day01.cpp", "int main() {}\n")
	output := filepath.Join(t.TempDir(), "out")

	// 2022 has no runner, so answer mode skips it instead of failing.
	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--root", dir, `["2022/src/day01.cpp"]`, output, "answer"}, &stdout, &stderr))
	assert.Equal(t, "matrix-targets=[]\nmatrix-build-configs=[]\n", readOutput(t, output))
}

func TestRunWrongArgCount(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	assert.Error(t, run([]string{`[]`, "out"}, &stdout, &stderr), "missing mode")
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--version"}, &stdout, &stderr))
	assert.Equal(t, "gen-matrix dev\n", stdout.String())
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, ".gen-matrix.yaml", "build_configs:\n  - compiler: g++-14\n    stdlib: libstdc++\n")
	output := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--root", dir, `["2023/src/day06.cpp"]`, output, "build"}, &stdout, &stderr))
	want := `matrix-targets=[{"directory":"2023","name":"day06"}]` + "\n" +
		`matrix-build-configs=[{"compiler":"g++-14","stdlib":"libstdc++"}]` + "\n"
	assert.Equal(t, want, readOutput(t, output))
}

func TestRunDiff(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	patch := filepath.Join(t.TempDir(), "change.patch")
	writeTestFile(t, filepath.Dir(patch), filepath.Base(patch), `diff --git a/2023/src/day06.cpp b/2023/src/day06.cpp
index 1111111..2222222 100644
--- a/2023/src/day06.cpp
+++ b/2023/src/day06.cpp
@@ -1 +1 @@
-int main() {}
+int main() { return 0; }
`)
	output := filepath.Join(t.TempDir(), "out")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"diff", "--root", dir, patch, output, "build"}, &stdout, &stderr), stderr.String())
	got := readOutput(t, output)
	assert.True(t, strings.HasPrefix(got, `matrix-targets=[{"directory":"2023","name":"day06"}]`+"\n"), got)
}

func TestRunDeps(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"deps", "--root", dir, "2023/src/test05.cpp"}, &stdout, &stderr), stderr.String())

	want := strings.Join([]string{
		"file: 2023/src/test05.cpp",
		"direct[1]{path}:",
		"  2023/src/day05.hpp",
		"transitive[2]{path}:",
		"  2023/src/day05.hpp",
		"  aoc_lib/src/lib.hpp",
	}, "\n") + "\n"
	assert.Equal(t, want, stdout.String())
}

func TestRunDepsOutsideRoot(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"deps", "--root", dir, "../x.cpp"}, &stdout, &stderr)
	assert.ErrorIs(t, err, model.ErrPrecondition)
}
