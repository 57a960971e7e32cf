package protocol

import (
	"encoding/json"
	"strings"

	pkgerr "github.com/sql-workbench/go-assistant/pkg/errors"
	"github.com/sql-workbench/go-assistant/pkg/util"
)

// ========================================
// 事件类型常量
// ========================================

const (
	EventStep     = "step"
	EventAction   = "action"
	EventResponse = "response"
	EventError    = "error"
)

// StepToolCall step 载荷的 type 线值。
const StepToolCall = "tool_call"

// ActionSetEditorContent 当前唯一定义的编辑器动作类型。
const ActionSetEditorContent = "set_editor_content"

// ========================================
// 载荷类型
// ========================================

// Step 一次工具调用记录。到达顺序即展示顺序。
type Step struct {
	Type          string         `json:"type"`
	Tool          string         `json:"tool"`
	Args          map[string]any `json:"args,omitempty"`
	ResultSummary string         `json:"result_summary,omitempty"`
}

// Action 编辑器动作指令, 到达即应用, 不批处理。
type Action struct {
	Type string `json:"type"`
	SQL  string `json:"sql,omitempty"`
}

// Usage 一轮对话的 token 统计。
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 最终回答载荷。
type Response struct {
	Response string `json:"response"`
	Usage    *Usage `json:"usage,omitempty"`
}

// ErrorPayload 服务端宣告的错误。
type ErrorPayload struct {
	Error string `json:"error"`
}

// Event 解释完成的流事件; Kind 对应的载荷指针恰有一个非 nil。
type Event struct {
	Kind     string
	Step     *Step
	Action   *Action
	Response *Response
	Error    *ErrorPayload
}

// ========================================
// 帧解释
// ========================================

// Frame 已定界但未解释的帧。
type Frame struct {
	Event string // event: 行的值
	Data  string // data: 行的值 (JSON 文本)
}

// ParseFrame 扫描帧文本, 提取第一条 event: 行与第一条 data: 行的值。
//
// 两行的相对顺序不做假设, 各自首次出现者生效; 冒号后空格可选,
// 行尾多余的 \r 被容忍。任一字段缺失或为空时返回错误,
// 调用方记录诊断并跳过该帧。
func ParseFrame(block string) (Frame, error) {
	var f Frame
	var haveEvent, haveData bool
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case !haveEvent && strings.HasPrefix(line, "event:"):
			f.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			haveEvent = true
		case !haveData && strings.HasPrefix(line, "data:"):
			f.Data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			haveData = true
		}
	}
	if !haveEvent || f.Event == "" {
		return Frame{}, pkgerr.New("Protocol.ParseFrame", "frame missing event line")
	}
	if !haveData || f.Data == "" {
		return Frame{}, pkgerr.New("Protocol.ParseFrame", "frame missing data line")
	}
	return f, nil
}

// Interpret 将帧按 event 标签解出类型化载荷。
//
// 标签不在已知四种之内、或载荷不是合法 JSON 对象时返回错误;
// 调用方跳过该帧并继续处理后续帧, 绝不中断整条流。
func Interpret(f Frame) (*Event, error) {
	data := strings.TrimSpace(f.Data)
	if !strings.HasPrefix(data, "{") {
		return nil, pkgerr.Newf("Protocol.Interpret", "payload is not a JSON object: %s", util.Truncate(data, 80))
	}

	switch f.Event {
	case EventStep:
		var p Step
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, pkgerr.Wrap(err, "Protocol.Interpret", "decode step payload")
		}
		return &Event{Kind: EventStep, Step: &p}, nil

	case EventAction:
		var p Action
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, pkgerr.Wrap(err, "Protocol.Interpret", "decode action payload")
		}
		return &Event{Kind: EventAction, Action: &p}, nil

	case EventResponse:
		var p Response
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, pkgerr.Wrap(err, "Protocol.Interpret", "decode response payload")
		}
		return &Event{Kind: EventResponse, Response: &p}, nil

	case EventError:
		var p ErrorPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, pkgerr.Wrap(err, "Protocol.Interpret", "decode error payload")
		}
		return &Event{Kind: EventError, Error: &p}, nil

	default:
		return nil, pkgerr.Newf("Protocol.Interpret", "unknown event tag %q", f.Event)
	}
}

// InterpretBlock 组合 ParseFrame 与 Interpret: 帧文本 → 类型化事件。
func InterpretBlock(block string) (*Event, error) {
	f, err := ParseFrame(block)
	if err != nil {
		return nil, err
	}
	return Interpret(f)
}
