package parse

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	workspaceRe = regexp.MustCompile(`(?:\$\{\{\s*github\.workspace\s*\}\}|\$\{GITHUB_WORKSPACE\}|\$GITHUB_WORKSPACE)/([^\s"'();|&<>]+)`)
	rootRelRe   = regexp.MustCompile(`(?m)(?:^|[\s"'=])(?:\./)?(\.github/[^\s"'();|&<>]+)`)
)

// PipelineRefs are the cross-references found in a workflow or action file.
// All paths are relative to the repository root, slash separated.
type PipelineRefs struct {
	// Uses holds local `uses:` targets: reusable workflow files or action directories.
	Uses []string
	// Scripts holds paths of scripts invoked from step bodies.
	Scripts []string
}

// Pipeline parses a workflow or composite action definition.
// Remote `uses:` references such as actions/checkout@v4 are ignored.
func Pipeline(source []byte) (PipelineRefs, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(source, &doc); err != nil {
		return PipelineRefs{}, fmt.Errorf("parsing pipeline: %w", err)
	}

	c := collector{seen: make(map[string]struct{})}
	c.walk(&doc, false)
	return c.refs, nil
}

type collector struct {
	refs PipelineRefs
	seen map[string]struct{}
}

// withScriptKeys are the action inputs under `with:` whose values are
// commands or scripts, as for actions/github-script or docker actions.
var withScriptKeys = map[string]bool{
	"script":     true,
	"run":        true,
	"command":    true,
	"entrypoint": true,
	"args":       true,
}

// walk visits node. Only `run:` bodies and command-carrying `with:` inputs
// are scanned for script paths; trigger filters such as on.push.paths name
// files without invoking them.
func (c *collector) walk(node *yaml.Node, inWith bool) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			c.walk(child, false)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if value.Kind == yaml.ScalarNode {
				switch {
				case key.Value == "uses":
					if ref, ok := localUses(value.Value); ok {
						c.add(&c.refs.Uses, "uses:"+ref, ref)
					}
				case key.Value == "run", inWith && withScriptKeys[key.Value]:
					c.scanScripts(value.Value)
				}
				continue
			}
			c.walk(value, key.Value == "with")
		}
	}
}

func (c *collector) scanScripts(s string) {
	for _, m := range workspaceRe.FindAllStringSubmatch(s, -1) {
		c.add(&c.refs.Scripts, "script:"+m[1], m[1])
	}
	for _, m := range rootRelRe.FindAllStringSubmatch(s, -1) {
		c.add(&c.refs.Scripts, "script:"+m[1], m[1])
	}
}

func (c *collector) add(list *[]string, key, value string) {
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}
	*list = append(*list, value)
}

// localUses strips the leading ./ from a repository-local uses: value.
func localUses(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "./") {
		return "", false
	}
	ref := strings.TrimRight(strings.TrimPrefix(v, "./"), "/")
	if ref == "" {
		return "", false
	}
	return ref, true
}
