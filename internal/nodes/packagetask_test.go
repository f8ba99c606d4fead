package nodes

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestLogFilename(t *testing.T) {
	testCases := []struct{ input, want string }{
		{
			"build",
			"sail-build.log",
		},
		{
			"build:prod",
			"sail-build$colon$prod.log",
		},
		{
			"build:prod:extra",
			"sail-build$colon$prod$colon$extra.log",
		},
	}

	for _, testCase := range testCases {
		got := logFilename(testCase.input)
		assert.Equal(t, got, testCase.want)
	}
}
