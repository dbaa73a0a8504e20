package reveal

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"sorvx-chat-go/internal/repository"
	"sorvx-chat-go/pkg/log"
)

// 默认逐字节奏与抖动，避免机械感。
const (
	DefaultSpeed  = 28 * time.Millisecond
	DefaultJitter = 5 * time.Millisecond
)

// Frame 是一次显示状态：当前已显示的文本及其安全渲染结果。
type Frame struct {
	Text string `json:"text"`
	HTML string `json:"html"`
	Done bool   `json:"done"`
}

// FrameWriter 接收渲染器产生的每一帧。
// websocket 处理器用它把帧下发到浏览器，测试中用切片收集帧。
type FrameWriter interface {
	WriteFrame(frame Frame) error
}

// Message 描述一条待显示的助手消息。
type Message struct {
	ChatID    string
	MessageID string
	Text      string
	Streaming bool // 文本是否仍在从模型流式到达
}

// Renderer 决定一条消息是立即完整显示还是逐字播放，
// 并保证已经看过动画的消息不会重播。
type Renderer struct {
	records   repository.RevealRecordRepository
	formatter *Formatter
	speed     time.Duration
	jitter    time.Duration
}

// NewRenderer 创建一个 Renderer。speed/jitter 传 0 时使用默认值。
func NewRenderer(records repository.RevealRecordRepository, speed, jitter time.Duration) *Renderer {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	if jitter < 0 {
		jitter = DefaultJitter
	}
	return &Renderer{
		records:   records,
		formatter: NewFormatter(),
		speed:     speed,
		jitter:    jitter,
	}
}

// Animation 是一次播放的句柄。视图销毁时必须调用 Cancel，
// 保证取消返回后不会再有任何帧写出。
type Animation struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
	completed bool
	done      chan struct{}
}

// Done 在播放完成或被取消后关闭。
func (a *Animation) Done() <-chan struct{} {
	return a.done
}

// Cancel 停止尚未触发的定时步进。对已完成的播放调用是空操作。
func (a *Animation) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.completed || a.cancelled {
		return
	}
	a.cancelled = true
	if a.timer != nil {
		a.timer.Stop()
	}
	close(a.done)
}

func (a *Animation) finish() {
	a.completed = true
	close(a.done)
}

// Reveal 按消息状态选择显示方式并开始输出帧。
//
//   - 流式消息：立即原样输出当前全文，不写动画记录——到达延迟本身就是节奏；
//   - 已有动画记录：立即输出全文，无中间状态；
//   - 首次完整看到：从空串起每步增加一个 rune，按配置节奏播放，
//     播完后写入 (chatID, messageID) 的动画记录。
//
// 返回的 Animation 在前两种情况下已处于完成状态。
func (r *Renderer) Reveal(ctx context.Context, msg Message, w FrameWriter) (*Animation, error) {
	a := &Animation{done: make(chan struct{})}

	if msg.Streaming {
		if err := r.writeFull(msg, w); err != nil {
			return nil, err
		}
		a.completed = true
		close(a.done)
		return a, nil
	}

	animated, err := r.records.IsAnimated(ctx, msg.ChatID, msg.MessageID)
	if err != nil {
		return nil, err
	}
	if animated {
		if err := r.writeFull(msg, w); err != nil {
			return nil, err
		}
		a.completed = true
		close(a.done)
		return a, nil
	}

	// 逐 rune 而不是逐字节推进，避免把多字节字符劈开。
	runes := []rune(msg.Text)

	var step func(i int)
	step = func(i int) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.cancelled {
			return
		}

		prefix := string(runes[:i])
		frame := Frame{Text: prefix, HTML: r.formatter.Render(prefix), Done: i == len(runes)}
		if err := w.WriteFrame(frame); err != nil {
			log.Warnf("reveal: aborting animation for message %s: %v", msg.MessageID, err)
			a.finish()
			return
		}

		if i == len(runes) {
			// 原始请求的 ctx 可能已经结束，记录写入用后台上下文。
			if err := r.records.MarkAnimated(context.Background(), msg.ChatID, msg.MessageID); err != nil {
				log.Warnf("reveal: failed to record animation for message %s: %v", msg.MessageID, err)
			}
			a.finish()
			return
		}

		// 同一消息同时只有一个待触发的定时步进。
		a.timer = time.AfterFunc(r.stepDelay(), func() { step(i + 1) })
	}

	step(0)
	return a, nil
}

// Format 通过安全格式化器渲染一段文本。
func (r *Renderer) Format(text string) string {
	return r.formatter.Render(text)
}

// writeFull 立即输出完整文本，没有任何人为延迟。
func (r *Renderer) writeFull(msg Message, w FrameWriter) error {
	return w.WriteFrame(Frame{
		Text: msg.Text,
		HTML: r.formatter.Render(msg.Text),
		Done: !msg.Streaming,
	})
}

// stepDelay 返回带随机抖动的单步间隔。
func (r *Renderer) stepDelay() time.Duration {
	if r.jitter == 0 {
		return r.speed
	}
	d := r.speed + time.Duration(rand.Int63n(int64(2*r.jitter)+1)) - r.jitter
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
