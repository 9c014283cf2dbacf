package sandbox

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

var fragments = []string{
	`var x = 1;`,
	`x = x + 1;`,
	`print(x);`,
	`require("os");`,
	`require("plot");`,
	`eval("2");`,
	`process.env;`,
	`function f(a) { return a * 2; }`,
	`new Function("return 1");`,
	`if (x > 1) { fs.readFileSync("a"); }`,
	`}{`,
}

func TestValidator_DeterministicProperty(t *testing.T) {
	v := NewValidator()

	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(fragments), 0, 8).Draw(t, "parts")
		code := strings.Join(parts, "\n")

		safe1, details1 := v.Validate(code)
		safe2, details2 := v.Validate(code)

		if safe1 != safe2 {
			t.Fatalf("safe flag differs for %q", code)
		}
		if strings.Join(details1, "|") != strings.Join(details2, "|") {
			t.Fatalf("details differ for %q: %v vs %v", code, details1, details2)
		}
		if safe1 && (len(details1) != 1 || details1[0] != SafeMessage) {
			t.Fatalf("safe code must report %q, got %v", SafeMessage, details1)
		}
		if !safe1 && len(details1) == 0 {
			t.Fatalf("unsafe code must report at least one detail")
		}
	})
}
