package executor

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`echo hi`, []string{"echo", "hi"}},
		{`echo  "hi there"`, []string{"echo", "hi there"}},
		{`echo 'a b' "c d"`, []string{"echo", "a b", "c d"}},
		{`  echo   hi  `, []string{"echo", "hi"}},
		{``, nil},
		{`"only quoted"`, []string{"only quoted"}},
	}
	for _, c := range cases {
		got := tokenize(c.in)
		assert.DeepEqual(t, got, c.want)
	}
}

func TestRunOne_SeparatesStdoutAndStderr(t *testing.T) {
	out, err := runOne(context.Background(), "echo out; echo err 1>&2", nil, t.TempDir(), true, "")
	assert.NilError(t, err)
	assert.Equal(t, out, "out\n")
}

func TestRunOne_FailureCarriesStderrNotOutput(t *testing.T) {
	out, err := runOne(context.Background(), "echo out; echo err 1>&2; exit 3", nil, t.TempDir(), true, "")
	assert.Equal(t, out, "")
	var failErr *TaskFailedError
	assert.Assert(t, errors.As(err, &failErr))
	assert.Equal(t, failErr.Code, 3)
	assert.Equal(t, failErr.Stderr, "err\n")
}
