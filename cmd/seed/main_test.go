package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RequiresExactlyOneMode(t *testing.T) {
	tests := map[string][]string{
		"no mode":    {},
		"both modes": {"--import", "--delete"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := rootCmd()
			cmd.SetArgs(args)

			err := cmd.Execute()

			require.Error(t, err)
			assert.Contains(t, err.Error(), "import")
		})
	}
}

func TestRootCmd_NeedsDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, mode := range []string{"--import", "--delete"} {
		cmd := rootCmd()
		cmd.SetArgs([]string{mode})

		err := cmd.Execute()

		require.Error(t, err, mode)
		assert.Equal(t, "DATABASE_URL is not set", err.Error())
	}
}

func TestFixtures_CoverEveryRole(t *testing.T) {
	seen := map[string]bool{}
	for _, spec := range users {
		require.True(t, spec.role.Valid(), spec.email)
		seen[string(spec.role)] = true
	}
	assert.Len(t, seen, 4)
}
