// Package reveal 实现助手消息的逐字显示状态机。
package reveal

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Formatter 将 Markdown 文本渲染为可安全下发的 HTML。
// goldmark 默认不输出原始 HTML，bluemonday 再过滤一遍，
// 因此嵌入的脚本永远不会存活，代码块按字面渲染。
type Formatter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewFormatter 创建一个带 GFM 扩展和 UGC 过滤策略的 Formatter。
func NewFormatter() *Formatter {
	return &Formatter{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render 渲染并过滤一段 Markdown。渲染失败时退化为纯文本过滤输出。
func (f *Formatter) Render(text string) string {
	var buf bytes.Buffer
	if err := f.md.Convert([]byte(text), &buf); err != nil {
		return f.policy.Sanitize(text)
	}
	return f.policy.Sanitize(buf.String())
}
