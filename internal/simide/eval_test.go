package simide

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalString(t *testing.T, src string) (value, error) {
	t.Helper()
	prog, err := parse(src)
	require.NoError(t, err)
	return newInterp(context.Background(), New(Options{}), 0).run(prog)
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want value
	}{
		{"1 + 1", int64(2)},
		{"1 + 2 * 3", int64(7)},
		{"(1 + 2) * 3", int64(9)},
		{"10 / 3", int64(3)},
		{"10 % 3", int64(1)},
		{"-4 + 1", int64(-3)},
		{"'a' + 'b'", "ab"},
		{"'n = ' + 1 + 1", "n = 11"},
		{"let x = 40; x + 2", int64(42)},
		{"[1, 'two']", []value{int64(1), "two"}},
		{"undefined", nil},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := evalString(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_RuntimeErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 / 0", "division by zero"},
		{"y + 1", "ReferenceError: y is not defined"},
		{"foo.bar()", "foo.bar is not a function"},
		{"'a' * 2", "TypeError"},
		{"remix.execute('missing.js')", "file not found: missing.js"},
		{"remix.call('fileManager')", "missing argument 2"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := evalString(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"console.log(1 + ",
		"1 +* 2",
		"'unterminated",
		"let = 3",
		"a b",
		"#",
		"   ",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := parse(src)
			assert.Error(t, err)
		})
	}
}

func TestParse_MultilineScript(t *testing.T) {
	prog, err := parse(`
// wait for the promise
let text = await remix.call(
  'fileManager',
  'readFile',
  'contracts/3_Ballot.sol'
)
console.log('result - ', text); sleep(1)
`)
	require.NoError(t, err)
	assert.Len(t, prog, 3)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "undefined", formatValue(nil))
	assert.Equal(t, "2", formatValue(int64(2)))
	assert.Equal(t, "[]", formatValue([]value{}))
	assert.Equal(t, `[ "0xA", "0xB" ]`, formatValue([]value{"0xA", "0xB"}))
	assert.Equal(t, `[ 1, "x" ]`, formatValue([]value{int64(1), "x"}))
}
