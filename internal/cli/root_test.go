package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with the given args and captures output.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errBuf bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errBuf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "recwave", cmd.Use)
	assert.Contains(t, cmd.Long, "LaTeX")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"translate", "validate", "eval", "channels"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestEvalCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	evalCmd, _, err := cmd.Find([]string{"eval"})
	require.NoError(t, err)

	recFlag := evalCmd.Flags().Lookup("recording")
	require.NotNil(t, recFlag)
	assert.Equal(t, "r", recFlag.Shorthand)

	require.NotNil(t, evalCmd.Flags().Lookup("store"))
	require.NotNil(t, evalCmd.Flags().Lookup("label"))
	require.NotNil(t, evalCmd.Flags().Lookup("unit"))
	require.NotNil(t, evalCmd.Flags().Lookup("id"))
	require.NotNil(t, evalCmd.Flags().Lookup("config"))
}

func TestChannelsCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	channelsCmd, _, err := cmd.Find([]string{"channels"})
	require.NoError(t, err)

	require.NotNil(t, channelsCmd.Flags().Lookup("store"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, "--format", "invalid", "translate", "I_{A}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
