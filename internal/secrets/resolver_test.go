package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	r := NewResolver("", MapLookup(map[string]string{"DB_PASS": "s3cret", "EMPTY": ""}))

	tests := []struct {
		name      string
		value     string
		want      string
		wantRef   string
		wantFound bool
	}{
		{name: "literal", value: "hunter2", want: "hunter2", wantFound: true},
		{name: "empty literal", value: "", want: "", wantFound: true},
		{name: "reference set", value: "ENV_DB_PASS", want: "s3cret", wantRef: "DB_PASS", wantFound: true},
		{name: "reference set but empty", value: "ENV_EMPTY", want: "", wantRef: "EMPTY", wantFound: true},
		{name: "reference unset", value: "ENV_MISSING", want: "", wantRef: "MISSING", wantFound: false},
		{name: "prefix is case sensitive", value: "env_DB_PASS", want: "env_DB_PASS", wantFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.value)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.wantRef, got.Ref)
			assert.Equal(t, tt.wantFound, got.Found)
			assert.Equal(t, tt.wantRef != "" && !tt.wantFound, got.Missing())
		})
	}
}

func TestResolveCustomPrefix(t *testing.T) {
	r := NewResolver("SECRET:", MapLookup(map[string]string{"PG": "pw"}))

	assert.Equal(t, "pw", r.Resolve("SECRET:PG").Value)
	assert.Equal(t, "ENV_PG", r.Resolve("ENV_PG").Value)
}

func TestResolveDefaultsToEnvironment(t *testing.T) {
	t.Setenv("STRATUM_TEST_DB_PASS", "from-env")
	r := NewResolver("", nil)

	got := r.Resolve("ENV_STRATUM_TEST_DB_PASS")
	assert.True(t, got.Found)
	assert.Equal(t, "from-env", got.Value)
}
