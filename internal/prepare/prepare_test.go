package prepare

import (
	"testing"

	"execcore/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specFor(t *testing.T, id string) registry.LanguageSpec {
	t.Helper()
	reg := registry.New()
	spec, err := reg.Lookup(id)
	require.NoError(t, err)
	return spec
}

func TestPrepareGoWrapsBareSnippet(t *testing.T) {
	content, fileName := Prepare(`fmt.Println("hi")`, specFor(t, "go"))

	assert.Equal(t, "main.go", fileName)
	assert.Contains(t, string(content), "package main")
	assert.Contains(t, string(content), "func main()")
}

func TestPrepareGoLeavesCompleteProgramAlone(t *testing.T) {
	src := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"
	content, _ := Prepare(src, specFor(t, "go"))

	assert.Equal(t, src, string(content))
}

func TestPrepareGoIsIdempotent(t *testing.T) {
	spec := specFor(t, "go")
	first, _ := Prepare(`fmt.Println("hi")`, spec)
	second, _ := Prepare(string(first), spec)

	assert.Equal(t, string(first), string(second))
}

func TestPrepareRustWrapsBareSnippet(t *testing.T) {
	content, fileName := Prepare(`println!("hi");`, specFor(t, "rust"))

	assert.Equal(t, "main.rs", fileName)
	assert.Contains(t, string(content), "fn main()")
}

func TestPrepareJavaUsesDeclaredClassName(t *testing.T) {
	src := "public class Solution {\n  public static void main(String[] a) {}\n}\n"
	content, fileName := Prepare(src, specFor(t, "java"))

	assert.Equal(t, "Solution.java", fileName)
	assert.Equal(t, src, string(content))
}

func TestPrepareJavaScaffoldsBareSnippet(t *testing.T) {
	content, fileName := Prepare(`System.out.println("hi");`, specFor(t, "java"))

	assert.Equal(t, "Main.java", fileName)
	assert.Contains(t, string(content), "public class Main")
	assert.Contains(t, string(content), "public static void main")
}

func TestPrepareScalaWrapsBareSnippet(t *testing.T) {
	content, fileName := Prepare(`println("hi")`, specFor(t, "scala"))

	assert.Equal(t, "main.scala", fileName)
	assert.Contains(t, string(content), "object Main extends App")
}

func TestPrepareScalaIsIdempotent(t *testing.T) {
	spec := specFor(t, "scala")
	first, _ := Prepare(`println("hi")`, spec)
	second, _ := Prepare(string(first), spec)

	assert.Equal(t, string(first), string(second))
}

func TestPrepareScalaLeavesExplicitMainAlone(t *testing.T) {
	src := "object Runner {\n  def main(args: Array[String]): Unit = {\n    println(\"hi\")\n  }\n}\n"
	content, _ := Prepare(src, specFor(t, "scala"))

	assert.Equal(t, src, string(content))
}

func TestPrepareKotlinIsIdempotent(t *testing.T) {
	spec := specFor(t, "kotlin")
	first, _ := Prepare(`println("hi")`, spec)
	second, _ := Prepare(string(first), spec)

	assert.Equal(t, string(first), string(second))
}

func TestPrepareCSharpWrapsBareSnippet(t *testing.T) {
	content, fileName := Prepare(`Console.WriteLine("hi");`, specFor(t, "csharp"))

	assert.Equal(t, "main.cs", fileName)
	assert.Contains(t, string(content), "static void Main")
}

func TestPreparePassthroughForScriptLanguages(t *testing.T) {
	src := "print('hi')"
	content, fileName := Prepare(src, specFor(t, "python"))

	assert.Equal(t, "main.py", fileName)
	assert.Equal(t, src, string(content))
}
