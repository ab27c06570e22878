// Package registry is the static, read-only catalog of supported languages:
// one immutable record per language carrying everything the Executor needs
// to prepare, inject, set up, and run a submission.
package registry

import (
	"fmt"
	"strings"
	"time"
)

// SetupStep is a shell command run once in a freshly created sandbox after
// code injection, before the run command.
type SetupStep struct {
	Command []string
}

// CacheMount describes a shared package-cache bind mount and the env vars
// that point a toolchain at it.
type CacheMount struct {
	Name          string
	ContainerPath string
	Env           map[string]string
}

// AuxFile is an extra file injected into the sandbox alongside the
// prepared source, for toolchains that refuse to run a bare file without a
// manifest next to it.
type AuxFile struct {
	Name    string
	Content string
}

// LanguageSpec is the immutable, per-language execution recipe.
type LanguageSpec struct {
	ID             string
	Image          string
	FileName       string
	Setup          []SetupStep
	RunCommand     []string // argv; "{{file}}"/"{{base}}" are substituted by Render
	DefaultTimeout time.Duration
	DefaultMemory  int64 // bytes
	PidsLimit      int64
	CPUCores       float64
	// Entrypoint names the required scaffold construct (e.g. "Main"), or ""
	// if the language has no required entrypoint.
	Entrypoint string
	// EntrypointMarker is the substring whose presence means the user's
	// source already declares the required scaffold (Code Preparer contract).
	EntrypointMarker string
	// SyntaxOnlyCommand is the in-container compiler invocation for the
	// Validator when no native Go-side parser exists for the language.
	// Empty for Go, which is validated natively and never reaches this path
	// (see internal/validate), and for csharp, which the Validator then
	// reports valid without a check.
	SyntaxOnlyCommand []string
	AuxFiles          []AuxFile
	CacheMounts       []CacheMount
}

// Render substitutes the command placeholders against the file actually
// injected into the sandbox: "{{file}}" becomes fileName, "{{base}}" the
// file name with its extension stripped (the compiled class/binary name).
// The injected name can differ from the spec's FileName when the Code
// Preparer renames it (a Java source declaring its own public class), so
// commands are rendered at run time, not at catalog-definition time.
func Render(cmd []string, fileName string) []string {
	base := fileName
	if i := strings.LastIndex(fileName, "."); i > 0 {
		base = fileName[:i]
	}
	out := make([]string, len(cmd))
	for i, part := range cmd {
		part = strings.ReplaceAll(part, "{{file}}", fileName)
		out[i] = strings.ReplaceAll(part, "{{base}}", base)
	}
	return out
}

// RenderRunCommand renders RunCommand against the spec's default FileName.
func (s LanguageSpec) RenderRunCommand() []string {
	return Render(s.RunCommand, s.FileName)
}

// Registry is the keyed mapping from language id to LanguageSpec. It is
// built once at construction and exposes no mutator, so concurrent reads
// are always safe: there is no exported method that could mutate a live
// Registry.
type Registry struct {
	specs map[string]LanguageSpec
}

// New builds the registry with the full catalog of supported languages.
func New() *Registry {
	r := &Registry{specs: make(map[string]LanguageSpec, len(defaultSpecs))}
	for _, s := range defaultSpecs {
		r.specs[s.ID] = s
	}
	return r
}

// ErrUnsupported is returned by Lookup for an unknown language id.
type ErrUnsupported struct {
	Language string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("registry: unsupported language %q", e.Language)
}

// Lookup returns a copy of the LanguageSpec for id, or ErrUnsupported. The
// copy is deep: a caller mutating the returned slices cannot corrupt the
// catalog other callers read.
func (r *Registry) Lookup(id string) (LanguageSpec, error) {
	spec, ok := r.specs[normalize(id)]
	if !ok {
		return LanguageSpec{}, &ErrUnsupported{Language: id}
	}
	return spec.clone(), nil
}

func (s LanguageSpec) clone() LanguageSpec {
	out := s
	out.RunCommand = append([]string(nil), s.RunCommand...)
	out.SyntaxOnlyCommand = append([]string(nil), s.SyntaxOnlyCommand...)
	if s.Setup != nil {
		out.Setup = make([]SetupStep, len(s.Setup))
		for i, step := range s.Setup {
			out.Setup[i] = SetupStep{Command: append([]string(nil), step.Command...)}
		}
	}
	out.AuxFiles = append([]AuxFile(nil), s.AuxFiles...)
	if s.CacheMounts != nil {
		out.CacheMounts = make([]CacheMount, len(s.CacheMounts))
		for i, cm := range s.CacheMounts {
			env := make(map[string]string, len(cm.Env))
			for k, v := range cm.Env {
				env[k] = v
			}
			out.CacheMounts[i] = CacheMount{Name: cm.Name, ContainerPath: cm.ContainerPath, Env: env}
		}
	}
	return out
}

// SupportedLanguage is the summary shape the supported_languages()
// operation returns to callers.
type SupportedLanguage struct {
	ID             string
	Extension      string
	DefaultTimeout time.Duration
	DefaultMemory  int64
	Image          string
}

// SupportedLanguages returns the public summary of every registered
// language, keyed by id.
func (r *Registry) SupportedLanguages() map[string]SupportedLanguage {
	out := make(map[string]SupportedLanguage, len(r.specs))
	for id, spec := range r.specs {
		ext := spec.FileName
		if i := strings.LastIndex(spec.FileName, "."); i >= 0 {
			ext = spec.FileName[i:]
		}
		out[id] = SupportedLanguage{
			ID:             id,
			Extension:      ext,
			DefaultTimeout: spec.DefaultTimeout,
			DefaultMemory:  spec.DefaultMemory,
			Image:          spec.Image,
		}
	}
	return out
}

func normalize(language string) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	switch lang {
	case "js", "node", "nodejs":
		return "javascript"
	case "ts":
		return "typescript"
	case "py", "python3":
		return "python"
	case "golang":
		return "go"
	case "c++", "cplusplus":
		return "cpp"
	case "rb":
		return "ruby"
	case "cs", "c#":
		return "csharp"
	default:
		return lang
	}
}
