package toon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/genmatrix/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "2023/src/day05.cpp", "2023/src/day05.cpp"},
		{"compiler", "clang++-17", "clang++-17"},
		{"target name", "test00_graph", "test00_graph"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, encodeValue(tt.in))
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	res := &model.Result{
		Targets: []model.TargetEntry{
			{Directory: "2023", Name: "day05"},
			{Directory: "2023", Name: "test05"},
		},
		BuildConfigs: []model.BuildConfig{
			{Compiler: "clang++", Stdlib: "libstdc++"},
			{Compiler: "g++", Stdlib: "libstdc++"},
		},
	}

	got := Encode(model.Build, []string{"2023/src/day05.hpp"}, res)
	want := strings.Join([]string{
		"mode: build",
		"changed[1]{path}:",
		"  2023/src/day05.hpp",
		"targets[2]{directory,name}:",
		"  2023,day05",
		"  2023,test05",
		"build_configs[2]{compiler,stdlib}:",
		"  clang++,libstdc++",
		"  g++,libstdc++",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(model.Unit, nil, &model.Result{})
	assert.Contains(t, got, "changed[0]{path}:")
	assert.Contains(t, got, "targets[0]{directory,name}:")
	assert.Contains(t, got, "build_configs[0]{compiler,stdlib}:")
}

func TestEncodeDeps(t *testing.T) {
	t.Parallel()

	got := EncodeDeps("2023/src/day05.cpp",
		[]string{"2023/src/day05.hpp"},
		[]string{"2023/src/day05.hpp", "aoc_lib/src/lib.hpp"})
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "file: 2023/src/day05.cpp", lines[0])
	assert.Equal(t, "direct[1]{path}:", lines[1])
	assert.Equal(t, "transitive[2]{path}:", lines[3])
	assert.Equal(t, "  aoc_lib/src/lib.hpp", lines[5])
}
