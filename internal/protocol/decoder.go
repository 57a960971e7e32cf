// Package protocol 实现助手事件流的帧解码与事件解释。
//
// 线格式: 每帧为 "event: <tag>" 行 + "data: <json>" 行组成的文本块,
// 帧间以空行分隔。字节以任意边界到达, 由 Decoder 跨块重组;
// Interpreter 将完整帧解出四种类型化事件 (step/action/response/error)。
package protocol

import "bytes"

// frameDelimiter 帧边界: 连续两个换行 (空行)。
var frameDelimiter = []byte("\n\n")

// Decoder 将任意切分的字节块重组为完整帧。
//
// 内部仅保留尚未定界的尾部; 每次 Feed 提取全部完整帧。
// 非并发安全 — 单条流由单个读取循环驱动。
type Decoder struct {
	carry []byte
}

// NewDecoder 创建空缓冲的 Decoder。
func NewDecoder() *Decoder { return &Decoder{} }

// Feed 追加 chunk 并返回其中新完成的帧 (不含边界空行)。
//
// 纯空白的段 (连续空行产生) 被丢弃。未终结的尾部留在缓冲中
// 等待后续字节; 同一帧不会产出两次。
func (d *Decoder) Feed(chunk []byte) []string {
	d.carry = append(d.carry, chunk...)

	var frames []string
	for {
		idx := bytes.Index(d.carry, frameDelimiter)
		if idx < 0 {
			return frames
		}
		seg := d.carry[:idx]
		d.carry = d.carry[idx+len(frameDelimiter):]
		if len(bytes.TrimSpace(seg)) == 0 {
			continue
		}
		frames = append(frames, string(seg))
	}
}

// Pending 返回缓冲中未终结尾部的字节数。
// 流结束后仍非零说明该尾部被永久丢弃, 调用方据此记录诊断。
func (d *Decoder) Pending() int { return len(d.carry) }
