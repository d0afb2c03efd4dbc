//go:build property

// Property-based tests for the Template Engine, mirroring the invariants
// in spec.md §8. Run with `go test -tags=property ./template/...`.
package template

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Comcast/darkroom/cut"
)

// TestResolveIdempotentProperty checks property 1 of spec.md §8: resolving
// an already-concrete value (no remaining references) is a no-op, for any
// generated variable name and alphabetic string binding.
func TestResolveIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("resolving a concrete value twice yields the same value", prop.ForAll(
		func(name, value string) bool {
			if name == "" || !cut.ValidName(name) {
				return true
			}
			reg, err := cut.Merge(map[string]interface{}{name: value})
			if err != nil {
				return true
			}

			input := "${" + name + "} and more"
			once, err := Resolve(input, reg)
			if err != nil {
				return true
			}
			twice, err := Resolve(once, reg)
			if err != nil {
				return false
			}
			return once == twice
		},
		gen.RegexMatch("[A-Za-z_][A-Za-z0-9_]{0,8}"),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestEscapeNeverSubstitutesProperty checks property 2 of spec.md §8 across
// generated literal text surrounding the escape sequence.
func TestEscapeNeverSubstitutesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property(`\$ always resolves to a literal $`, prop.ForAll(
		func(prefix, suffix string) bool {
			reg := cut.New()
			got, err := Resolve(prefix+`\$`+suffix, reg)
			if err != nil {
				return false
			}
			return got == prefix+"$"+suffix
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
