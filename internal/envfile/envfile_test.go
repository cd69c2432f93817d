package envfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	out, err := Render(map[string]string{
		"PORT":       "3000",
		"DB_NAME":    "shop",
		"JWT_SECRET": `s3cr"et with space`,
		"NODE_ENV":   "production",
		"UPLOAD_DIR": "/var/www/backend/uploads",
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "DB_NAME="), "keys are sorted: %v", lines)
	assert.True(t, strings.HasSuffix(out, "\n"))

	back, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, `s3cr"et with space`, back["JWT_SECRET"])
	assert.Equal(t, "3000", back["PORT"])
}

func TestRender_Empty(t *testing.T) {
	out, err := Render(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRender_InvalidKey(t *testing.T) {
	_, err := Render(map[string]string{"BAD KEY": "x"})
	assert.Error(t, err)

	_, err = Render(map[string]string{"1ST": "x"})
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	vars, err := Parse("# comment\n\nA=1\nB='two words'\nexport C=\"3\"\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "two words", "C": "3"}, vars)
}

func TestMissing(t *testing.T) {
	vars := map[string]string{"DB_HOST": "localhost", "DB_PASSWORD": "  ", "PORT": "3000"}

	missing := Missing([]string{"JWT_SECRET", "DB_HOST", "DB_PASSWORD", "PORT"}, vars)
	assert.Equal(t, []string{"JWT_SECRET", "DB_PASSWORD"}, missing)

	assert.Empty(t, Missing(nil, vars))
	assert.Empty(t, Missing([]string{"PORT"}, vars))
}

func TestMerge(t *testing.T) {
	base := map[string]string{"A": "1", "B": "2"}
	merged := Merge(base, map[string]string{"B": "3", "C": "4"})

	assert.Equal(t, map[string]string{"A": "1", "B": "3", "C": "4"}, merged)
	assert.Equal(t, "2", base["B"], "base must not be modified")
}

func TestMasked(t *testing.T) {
	out := Masked(map[string]string{
		"DB_PASSWORD": "hunter2",
		"JWT_SECRET":  "abc",
		"NODE_ENV":    "production",
		"EMPTY":       "",
	})

	assert.Contains(t, out, "DB_PASSWORD=****\n")
	assert.Contains(t, out, "JWT_SECRET=****\n")
	assert.Contains(t, out, "NODE_ENV=production\n")
	assert.Contains(t, out, "EMPTY=\n")
	assert.NotContains(t, out, "hunter2")
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestReadCommand(t *testing.T) {
	assert.Equal(t, "cat '/var/www/backend/.env' 2>/dev/null || true", ReadCommand("/var/www/backend/.env"))
}

func TestFormatMissingError(t *testing.T) {
	msg := FormatMissingError([]string{"JWT_SECRET"}, "prod")
	assert.Contains(t, msg, "JWT_SECRET")
	assert.Contains(t, msg, "opsrun env push prod")
}
