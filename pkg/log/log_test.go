package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputPaths(t *testing.T) {
	// "stdout" 与空值都表示仅输出到控制台，不创建任何目录
	assert.Equal(t, []string{"stdout"}, outputPaths(""))
	assert.Equal(t, []string{"stdout"}, outputPaths("stdout"))

	assert.Equal(t, []string{"stdout", "./logs/app.log"}, outputPaths("./logs"))
}
