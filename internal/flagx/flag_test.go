package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	serverFlags = []string{"-a", "-g", "-d", "-s", "-e", "-u", "-t", "-m", "-r", "-l", "-n"}
	configFlags = []string{"c", "config"}
)

func TestFilterArgs_SplitsServerAndConfigFlags(t *testing.T) {
	argv := []string{"-c", "idkeeper.json", "-a", ":3000", "-g=:50051", "-d", "memory://", "--config=other.json"}

	assert.Equal(t,
		[]string{"-a", ":3000", "-g=:50051", "-d", "memory://"},
		FilterArgs(argv, serverFlags))
	assert.Equal(t,
		[]string{"-c", "idkeeper.json", "--config=other.json"},
		FilterArgs(argv, configFlags))
}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"double dash form", []string{"--a", ":3000", "--x", "1"}, []string{"-a"}, []string{"--a", ":3000"}},
		{"allow list without dashes", []string{"-d", "postgres://db/idkeeper", "-s", "k"}, []string{"d"}, []string{"-d", "postgres://db/idkeeper"}},
		{"positionals and unknown flags dropped", []string{"serve", "-x", "1", "--y=2"}, serverFlags, []string{}},
		{"trailing flag without value", []string{"-s"}, serverFlags, []string{"-s"}},
		{"value never taken from the next flag", []string{"-s", "-e", "production"}, serverFlags, []string{"-s", "-e", "production"}},
		{"equals value may start with a dash", []string{"--config=--odd.json"}, configFlags, []string{"--config=--odd.json"}},
		{"repeats keep order", []string{"-t", "1h", "-t", "2h"}, serverFlags, []string{"-t", "1h", "-t", "2h"}},
		{"nil args", nil, serverFlags, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	cases := []struct {
		name string
		env  string
		argv []string
		want string
	}{
		{"short flag", "", []string{"-c", "/etc/idkeeper/short.json"}, "/etc/idkeeper/short.json"},
		{"long flag", "", []string{"-a", ":3000", "-config", "/etc/idkeeper/long.json"}, "/etc/idkeeper/long.json"},
		{"flag beats env", "/env.json", []string{"-c", "/flag.json"}, "/flag.json"},
		{"env fallback", "/env.json", []string{"-d", "memory://"}, "/env.json"},
		{"nothing set", "", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(ConfigEnvName, tc.env)
			os.Args = append([]string{"idkeeper"}, tc.argv...)
			assert.Equal(t, tc.want, JsonConfigFlags())
		})
	}
}
