package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTo(t *testing.T) {
	n := 42
	p := To(n)
	require.NotNil(t, p)
	assert.Equal(t, 42, *p)
	assert.NotSame(t, &n, p, "To must copy the value")

	type submissionID string
	id := To(submissionID("sub-1"))
	assert.Equal(t, submissionID("sub-1"), *id)
}

func TestDeref(t *testing.T) {
	assert.Equal(t, 1, Deref(nil, 1), "nil W2 count defaults")
	assert.Equal(t, 25, Deref(To(25), 1))
	assert.Equal(t, "", Deref[string](nil, ""))
}

func TestTypedHelpers(t *testing.T) {
	assert.Equal(t, "AUTO_ATTACHED|company:Acme", *String("AUTO_ATTACHED|company:Acme"))
	assert.Equal(t, 7, *Int(7))
	assert.Equal(t, 2.5, *Float64(2.5))
}
