package flags

import (
	"testing"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
			require.Equal(t, opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix), envFlags[0])
		})
	}
}

func runApp(t *testing.T, flags []cli.Flag, args []string, action cli.ActionFunc) error {
	t.Helper()
	app := &cli.App{
		Flags:  flags,
		Action: action,
	}
	return app.Run(append([]string{"app"}, args...))
}

func TestReportFormatsFlag(t *testing.T) {
	testCases := []struct {
		name        string
		args        []string
		expected    []string
		shouldError bool
	}{
		{"default is json", nil, []string{"json"}, false},
		{"several formats", []string{"--report-formats", "json,markdown,csv"}, []string{"json", "markdown", "csv"}, false},
		{"md alias", []string{"--report-formats", "md"}, []string{"md"}, false},
		{"unknown format", []string{"--report-formats", "xml"}, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := runApp(t, []cli.Flag{ReportFormats}, tc.args, func(ctx *cli.Context) error {
				assert.Equal(t, tc.expected, ctx.StringSlice(ReportFormats.Name))
				return nil
			})
			if tc.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTestsFlag(t *testing.T) {
	err := runApp(t, []cli.Flag{Tests}, []string{"--test", "TCP:Legacy", "--test", "WS:Subscriptions"}, func(ctx *cli.Context) error {
		assert.Equal(t, []string{"TCP:Legacy", "WS:Subscriptions"}, ctx.StringSlice(Tests.Name))
		return nil
	})
	require.NoError(t, err)

	err = runApp(t, []cli.Flag{Tests}, []string{"--test", "TCP"}, func(ctx *cli.Context) error {
		return nil
	})
	assert.Error(t, err)
}

func TestMaxJSONLengthFlag(t *testing.T) {
	err := runApp(t, []cli.Flag{MaxJSONLength}, []string{"--max-json-length", "-1"}, func(ctx *cli.Context) error {
		return nil
	})
	assert.Error(t, err)

	err = runApp(t, []cli.Flag{MaxJSONLength}, nil, func(ctx *cli.Context) error {
		assert.Equal(t, 100, ctx.Int(MaxJSONLength.Name))
		return nil
	})
	assert.NoError(t, err)
}

func TestCheckRequired(t *testing.T) {
	err := runApp(t, Flags, []string{"--collection", "collection.json"}, func(ctx *cli.Context) error {
		return CheckRequired(ctx)
	})
	assert.NoError(t, err)
}
