package registry

import "time"

const (
	defaultTimeout = 10 * time.Second
	defaultMemory  = 128 * 1024 * 1024
	compileMemory  = 256 * 1024 * 1024
)

// defaultSpecs is the built-in catalog of supported languages. Image tags
// use a "-slim"/"-alpine" minimal variant for python, node, go, rust, ruby,
// perl and lua; the other languages use a full upstream image.
var defaultSpecs = []LanguageSpec{
	{
		ID:             "python",
		Image:          "python:3.12-slim",
		FileName:       "main.py",
		RunCommand:     []string{"python3", "{{file}}"},
		DefaultTimeout: defaultTimeout,
		DefaultMemory:  defaultMemory,
		PidsLimit:      32,
		CPUCores:       1,
		SyntaxOnlyCommand: []string{"python3", "-m", "py_compile", "{{file}}"},
		CacheMounts: []CacheMount{
			{Name: "pip-cache", ContainerPath: "/home/sandbox/.cache/pip", Env: map[string]string{"PIP_CACHE_DIR": "/home/sandbox/.cache/pip"}},
		},
	},
	{
		ID:                "javascript",
		Image:             "node:20-slim",
		FileName:          "main.js",
		RunCommand:        []string{"node", "{{file}}"},
		DefaultTimeout:    defaultTimeout,
		DefaultMemory:     defaultMemory,
		PidsLimit:         32,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"node", "--check", "{{file}}"},
		CacheMounts: []CacheMount{
			{Name: "npm-cache", ContainerPath: "/home/sandbox/.npm", Env: map[string]string{"NPM_CONFIG_CACHE": "/home/sandbox/.npm"}},
		},
	},
	{
		ID:       "typescript",
		Image:    "node:20-slim",
		FileName: "main.ts",
		Setup: []SetupStep{
			{Command: []string{"npx", "--yes", "tsc", "{{file}}", "--outFile", "main.js", "--target", "ES2020"}},
		},
		RunCommand:        []string{"node", "main.js"},
		DefaultTimeout:    30 * time.Second,
		DefaultMemory:     compileMemory,
		PidsLimit:         32,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"npx", "--yes", "tsc", "--noEmit", "{{file}}"},
		CacheMounts: []CacheMount{
			{Name: "npm-cache", ContainerPath: "/home/sandbox/.npm", Env: map[string]string{"NPM_CONFIG_CACHE": "/home/sandbox/.npm"}},
		},
	},
	{
		ID:       "go",
		Image:    "golang:1.23-alpine",
		FileName: "main.go",
		RunCommand: []string{"go", "run", "{{file}}"},
		DefaultTimeout: 20 * time.Second,
		DefaultMemory:  compileMemory,
		PidsLimit:      32,
		CPUCores:       1,
		Entrypoint:       "func main",
		EntrypointMarker: "func main(",
		AuxFiles: []AuxFile{
			{Name: "go.mod", Content: "module sandbox\n\ngo 1.23\n"},
		},
		CacheMounts: []CacheMount{
			{Name: "go-build-cache", ContainerPath: "/home/sandbox/.cache/go-build", Env: map[string]string{"GOCACHE": "/home/sandbox/.cache/go-build"}},
		},
	},
	{
		ID:       "rust",
		Image:    "rust:1.79-slim",
		FileName: "main.rs",
		Setup: []SetupStep{
			{Command: []string{"rustc", "-O", "-o", "main", "{{file}}"}},
		},
		RunCommand:        []string{"./main"},
		DefaultTimeout:    30 * time.Second,
		DefaultMemory:     compileMemory,
		PidsLimit:         16,
		CPUCores:          1,
		Entrypoint:        "fn main",
		EntrypointMarker:  "fn main(",
		SyntaxOnlyCommand: []string{"rustc", "--edition", "2021", "--crate-type", "bin", "-o", "/dev/null", "{{file}}"},
	},
	{
		ID:       "java",
		Image:    "eclipse-temurin:21-jdk",
		FileName: "Main.java",
		Setup: []SetupStep{
			{Command: []string{"javac", "{{file}}"}},
		},
		RunCommand:        []string{"java", "{{base}}"},
		DefaultTimeout:    30 * time.Second,
		DefaultMemory:     compileMemory,
		PidsLimit:         32,
		CPUCores:          1,
		Entrypoint:        "Main",
		EntrypointMarker:  "class Main",
		SyntaxOnlyCommand: []string{"javac", "-d", "/tmp/out", "{{file}}"},
	},
	{
		ID:       "c",
		Image:    "gcc:13",
		FileName: "main.c",
		Setup: []SetupStep{
			{Command: []string{"gcc", "-O2", "-o", "main", "{{file}}", "-lm"}},
		},
		RunCommand:        []string{"./main"},
		DefaultTimeout:    15 * time.Second,
		DefaultMemory:     compileMemory,
		PidsLimit:         16,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"gcc", "-fsyntax-only", "{{file}}"},
	},
	{
		ID:       "cpp",
		Image:    "gcc:13",
		FileName: "main.cpp",
		Setup: []SetupStep{
			{Command: []string{"g++", "-O2", "-std=c++20", "-o", "main", "{{file}}"}},
		},
		RunCommand:        []string{"./main"},
		DefaultTimeout:    15 * time.Second,
		DefaultMemory:     compileMemory,
		PidsLimit:         16,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"g++", "-fsyntax-only", "-std=c++20", "{{file}}"},
	},
	{
		ID:                "ruby",
		Image:             "ruby:3.3-slim",
		FileName:          "main.rb",
		RunCommand:        []string{"ruby", "{{file}}"},
		DefaultTimeout:    defaultTimeout,
		DefaultMemory:     defaultMemory,
		PidsLimit:         32,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"ruby", "-c", "{{file}}"},
	},
	{
		ID:                "php",
		Image:             "php:8.3-cli",
		FileName:          "main.php",
		RunCommand:        []string{"php", "{{file}}"},
		DefaultTimeout:    defaultTimeout,
		DefaultMemory:     defaultMemory,
		PidsLimit:         32,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"php", "-l", "{{file}}"},
	},
	{
		ID:       "csharp",
		Image:    "mcr.microsoft.com/dotnet/sdk:8.0",
		FileName: "main.cs",
		Setup: []SetupStep{
			{Command: []string{"sh", "-c", "dotnet new console -o . --force >/dev/null && cp {{file}} Program.cs"}},
			{Command: []string{"dotnet", "build", "-c", "Release", "-o", "out"}},
		},
		RunCommand:       []string{"dotnet", "out/app.dll"},
		DefaultTimeout:   40 * time.Second,
		DefaultMemory:    512 * 1024 * 1024,
		PidsLimit:        32,
		CPUCores:         1,
		Entrypoint:       "Main",
		EntrypointMarker: "static void Main",
	},
	{
		ID:       "kotlin",
		Image:    "zenika/kotlin:1.9-jdk21",
		FileName: "main.kt",
		Setup: []SetupStep{
			{Command: []string{"kotlinc", "{{file}}", "-include-runtime", "-d", "main.jar"}},
		},
		RunCommand:        []string{"java", "-jar", "main.jar"},
		DefaultTimeout:    45 * time.Second,
		DefaultMemory:     512 * 1024 * 1024,
		PidsLimit:         32,
		CPUCores:          1,
		Entrypoint:        "fun main",
		EntrypointMarker:  "fun main(",
		SyntaxOnlyCommand: []string{"kotlinc", "-d", "/tmp/out", "{{file}}"},
	},
	{
		ID:       "swift",
		Image:    "swift:5.10",
		FileName: "main.swift",
		Setup: []SetupStep{
			{Command: []string{"swiftc", "-O", "-o", "main", "{{file}}"}},
		},
		RunCommand:        []string{"./main"},
		DefaultTimeout:    30 * time.Second,
		DefaultMemory:     compileMemory,
		PidsLimit:         16,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"swiftc", "-parse", "{{file}}"},
	},
	{
		ID:                "bash",
		Image:             "bash:5.2",
		FileName:          "main.sh",
		RunCommand:        []string{"bash", "{{file}}"},
		DefaultTimeout:    defaultTimeout,
		DefaultMemory:     64 * 1024 * 1024,
		PidsLimit:         16,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"bash", "-n", "{{file}}"},
	},
	{
		ID:                "perl",
		Image:             "perl:5.38-slim",
		FileName:          "main.pl",
		RunCommand:        []string{"perl", "{{file}}"},
		DefaultTimeout:    defaultTimeout,
		DefaultMemory:     defaultMemory,
		PidsLimit:         16,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"perl", "-c", "{{file}}"},
	},
	{
		ID:                "lua",
		Image:             "nickblah/lua:5.4-alpine",
		FileName:          "main.lua",
		RunCommand:        []string{"lua", "{{file}}"},
		DefaultTimeout:    defaultTimeout,
		DefaultMemory:     64 * 1024 * 1024,
		PidsLimit:         16,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"luac", "-p", "{{file}}"},
	},
	{
		ID:                "r",
		Image:             "r-base:4.4.1",
		FileName:          "main.R",
		RunCommand:        []string{"Rscript", "{{file}}"},
		DefaultTimeout:    20 * time.Second,
		DefaultMemory:     256 * 1024 * 1024,
		PidsLimit:         16,
		CPUCores:          1,
		SyntaxOnlyCommand: []string{"R", "CMD", "BATCH", "--no-save", "--no-restore", "-e", "{{file}}"},
	},
	{
		ID:       "scala",
		Image:    "hseeberger/scala-sbt:17.0.2_1.9.7_3.3.1",
		FileName: "main.scala",
		Setup: []SetupStep{
			{Command: []string{"scalac", "{{file}}", "-d", "main.jar"}},
		},
		RunCommand:        []string{"scala", "main.jar"},
		DefaultTimeout:    60 * time.Second,
		DefaultMemory:     512 * 1024 * 1024,
		PidsLimit:         32,
		CPUCores:          1,
		Entrypoint:        "def main",
		EntrypointMarker:  "def main(",
		SyntaxOnlyCommand: []string{"scalac", "-d", "/tmp/out", "{{file}}"},
	},
}
