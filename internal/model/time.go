package model

import (
	"fmt"
	"time"
)

// LocalTime 在 JSON 输出中以 "2006-01-02 15:04:05" 呈现时间，
// 用于对话列表这类面向展示的字段；持久化仍然使用 time.Time。
type LocalTime time.Time

const localTimeLayout = "2006-01-02 15:04:05"

// MarshalJSON 实现 json.Marshaler 接口。
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Time(t).Format(localTimeLayout))), nil
}
