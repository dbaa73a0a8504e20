package reveal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_StripsScript(t *testing.T) {
	f := NewFormatter()

	out := f.Render("hello <script>alert('x')</script> world")

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "alert('x')")
	assert.Contains(t, out, "hello")
}

func TestRender_Markdown(t *testing.T) {
	f := NewFormatter()

	out := f.Render("**bold** and [link](https://example.com)")

	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, `href="https://example.com"`)
}

func TestRender_CodeBlockStaysLiteral(t *testing.T) {
	f := NewFormatter()

	out := f.Render("```\n<b>not markup</b>\n```")

	// 代码块内容被转义，不作为 HTML 生效
	assert.Contains(t, out, "&lt;b&gt;not markup&lt;/b&gt;")
	assert.NotContains(t, out, "<b>not markup</b>")
}

func TestRender_EventHandlersRemoved(t *testing.T) {
	f := NewFormatter()

	out := f.Render(`[click](javascript:alert(1)) <img src=x onerror=alert(1)>`)

	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "onerror")
}
