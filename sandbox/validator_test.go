package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_SafeCode(t *testing.T) {
	v := NewValidator()

	safe, details := v.Validate("var x = 1 + 1")
	assert.True(t, safe)
	assert.Equal(t, []string{SafeMessage}, details)
}

func TestValidator_ForbiddenImport(t *testing.T) {
	v := NewValidator()

	safe, details := v.Validate(`const os = require("os")`)
	assert.False(t, safe)
	require.Len(t, details, 1)
	assert.Equal(t, "Forbidden import: os", details[0])
}

func TestValidator_ForbiddenCalls(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		code string
		want string
	}{
		{"eval", `eval('1+1')`, "Forbidden function call: eval"},
		{"function call", `Function("return 1")()`, "Forbidden function call: Function"},
		{"new function", `var f = new Function("a", "return a")`, "Forbidden function call: Function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			safe, details := v.Validate(tt.code)
			assert.False(t, safe)
			assert.Contains(t, details, tt.want)
		})
	}
}

func TestValidator_AttributeAccess(t *testing.T) {
	v := NewValidator()

	safe, details := v.Validate(`process.exit(1)`)
	assert.False(t, safe)
	assert.Equal(t, []string{"Potentially unsafe attribute access: process.exit"}, details)

	safe, details = v.Validate(`var k = process["env"]`)
	assert.False(t, safe)
	assert.Equal(t, []string{"Potentially unsafe attribute access: process.env"}, details)
}

func TestValidator_CollectsAllViolations(t *testing.T) {
	v := NewValidator()

	code := `
const cp = require("child_process");
eval("1");
function f() { return os.platform(); }
`
	safe, details := v.Validate(code)
	assert.False(t, safe)
	assert.Equal(t, []string{
		"Forbidden import: child_process",
		"Forbidden function call: eval",
		"Potentially unsafe attribute access: os.platform",
	}, details)
}

func TestValidator_NestedConstructs(t *testing.T) {
	v := NewValidator()

	code := `
[1, 2].map(function (n) {
  if (n > 1) {
    return (() => require("fs"))();
  }
  return n;
});
`
	safe, details := v.Validate(code)
	assert.False(t, safe)
	assert.Equal(t, []string{"Forbidden import: fs"}, details)
}

func TestValidator_AliasIsNotTracked(t *testing.T) {
	// 名称黑名单不追踪别名：只有 require 调用本身被报告
	v := NewValidator()

	safe, details := v.Validate(`const o = require("os"); o.exit();`)
	assert.False(t, safe)
	assert.Equal(t, []string{"Forbidden import: os"}, details)
}

func TestValidator_AllowedRequire(t *testing.T) {
	v := NewValidator()

	safe, _ := v.Validate(`const plot = require("plot")`)
	assert.True(t, safe)
}

func TestValidator_SyntaxError(t *testing.T) {
	v := NewValidator()

	safe, details := v.Validate("var = ;")
	assert.False(t, safe)
	require.Len(t, details, 1)
	assert.Contains(t, details[0], "Syntax Error:")
}

func TestValidator_CustomSets(t *testing.T) {
	v := NewValidator(
		WithForbiddenModules("http"),
		WithForbiddenCalls("setTimeout"),
	)

	safe, details := v.Validate(`require("http"); require("os"); setTimeout(f, 1)`)
	assert.False(t, safe)
	assert.Equal(t, []string{
		"Forbidden import: http",
		"Forbidden function call: setTimeout",
	}, details)
}

func TestDeclaredNames(t *testing.T) {
	prog, err := Parse(`
var a = 1;
let b = 2, c = 3;
const d = 4;
function e() {}
class F {}
g = 5;
if (true) { let inner = 1; }
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "F"}, DeclaredNames(prog))
	assert.Nil(t, DeclaredNames(nil))
}
