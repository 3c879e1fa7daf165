package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactURL(t *testing.T) {
	result := RedactURL("postgres://user:secretpassword123@db:5432/speedtest")
	assert.NotContains(t, result, "secretpassword123")
	assert.Contains(t, result, "user:xxxxx@")
	assert.Contains(t, result, "db:5432/speedtest")

	assert.Equal(t, "postgres://db/speedtest", RedactURL("postgres://db/speedtest"))
	assert.Equal(t, "not a url :", RedactURL("not a url :"))
}

func TestSecrets(t *testing.T) {
	t.Setenv(KeyDBPassword, "")
	l := NewLoader()
	l.file[KeyDBPassword] = "pw-from-file"

	assert.Equal(t, []string{"pw-from-file"}, Secrets(l, KeyDBPassword, "NETPROBE_UNSET"))
	assert.Nil(t, Secrets(l, "NETPROBE_UNSET"))
}
