// Package prepare turns raw user source into the exact bytes an Executor
// injects into a sandbox, scaffolding a minimal entrypoint when the
// submitted code is a bare snippet rather than a complete program.
//
// Prepare is pure and idempotent: running it twice on its own output is a
// no-op, because every scaffold check first looks for the marker it would
// otherwise insert.
package prepare

import (
	"regexp"
	"strings"

	"execcore/internal/registry"
)

var javaClassPattern = regexp.MustCompile(`public\s+class\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Prepare returns the content to write into the sandbox's workspace and the
// file name it should be written under. For languages with a required
// entrypoint (LanguageSpec.Entrypoint), source missing the corresponding
// EntrypointMarker is wrapped in the minimal scaffold for that language.
func Prepare(source string, spec registry.LanguageSpec) (content []byte, fileName string) {
	fileName = spec.FileName

	switch spec.ID {
	case "go":
		content = []byte(prepareGo(source))
	case "rust":
		content = []byte(prepareWrap(source, spec.EntrypointMarker, "fn main() {\n", "\n}\n"))
	case "c":
		content = []byte(prepareInclude(source, []string{"#include <stdio.h>", "#include <stdlib.h>"}))
	case "cpp":
		content = []byte(prepareInclude(source, []string{"#include <iostream>", "using namespace std;"}))
	case "java":
		body, class := prepareJava(source)
		content = []byte(body)
		fileName = class + ".java"
	case "kotlin":
		content = []byte(prepareWrap(source, spec.EntrypointMarker, "fun main() {\n", "\n}\n"))
	case "scala":
		content = []byte(prepareScala(source, spec.EntrypointMarker))
	case "csharp":
		content = []byte(prepareCSharp(source, spec.EntrypointMarker))
	default:
		content = []byte(source)
	}

	return content, fileName
}

func prepareGo(source string) string {
	if strings.Contains(source, "package ") {
		return source
	}
	if strings.Contains(source, "func main(") {
		return "package main\n\n" + source
	}
	return "package main\n\nfunc main() {\n" + indent(source) + "\n}\n"
}

func prepareWrap(source, marker, prefix, suffix string) string {
	if marker != "" && strings.Contains(source, marker) {
		return source
	}
	return prefix + indent(source) + suffix
}

func prepareInclude(source string, includes []string) string {
	if strings.Contains(source, "#include") {
		return source
	}
	return strings.Join(includes, "\n") + "\n\n" + source
}

func prepareJava(source string) (body, class string) {
	class = "Main"
	if m := javaClassPattern.FindStringSubmatch(source); len(m) > 1 {
		return source, m[1]
	}
	if strings.Contains(source, "class Main") {
		return source, class
	}
	body = "public class Main {\n  public static void main(String[] args) {\n" + indentDepth(source, 4) + "\n  }\n}\n"
	return body, class
}

func prepareScala(source, marker string) string {
	if marker != "" && strings.Contains(source, marker) {
		return source
	}
	// An App-style program has no def main; it must also pass through,
	// not least because it is what the scaffold below produces.
	if strings.Contains(source, "extends App") {
		return source
	}
	return "object Main extends App {\n" + indent(source) + "\n}\n"
}

func prepareCSharp(source, marker string) string {
	if marker != "" && strings.Contains(source, marker) {
		return source
	}
	return "using System;\n\nclass Program {\n  static void Main() {\n" + indentDepth(source, 4) + "\n  }\n}\n"
}

func indent(code string) string {
	return indentDepth(code, 4)
}

func indentDepth(code string, depth int) string {
	pad := strings.Repeat(" ", depth)
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = pad + line
	}
	return strings.Join(lines, "\n")
}
