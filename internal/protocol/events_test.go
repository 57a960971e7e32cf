package protocol

import (
	"testing"
)

// ── ParseFrame ──────────────────────────────────────────────

func TestParseFrame_Basic(t *testing.T) {
	f, err := ParseFrame("event: step\ndata: {\"type\":\"tool_call\"}")
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != "step" {
		t.Errorf("Event = %q, want step", f.Event)
	}
	if f.Data != `{"type":"tool_call"}` {
		t.Errorf("Data = %q", f.Data)
	}
}

func TestParseFrame_NoSpaceAfterColon(t *testing.T) {
	f, err := ParseFrame("event:response\ndata:{\"response\":\"ok\"}")
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != "response" {
		t.Errorf("Event = %q, want response", f.Event)
	}
	if f.Data != `{"response":"ok"}` {
		t.Errorf("Data = %q", f.Data)
	}
}

func TestParseFrame_DataLineBeforeEventLine(t *testing.T) {
	f, err := ParseFrame("data: {\"error\":\"boom\"}\nevent: error")
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != "error" || f.Data != `{"error":"boom"}` {
		t.Errorf("frame = %+v", f)
	}
}

func TestParseFrame_FirstSeenWins(t *testing.T) {
	f, err := ParseFrame("event: step\nevent: response\ndata: {\"a\":1}\ndata: {\"b\":2}")
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != "step" {
		t.Errorf("Event = %q, want first-seen step", f.Event)
	}
	if f.Data != `{"a":1}` {
		t.Errorf("Data = %q, want first-seen payload", f.Data)
	}
}

func TestParseFrame_TrailingCRTolerated(t *testing.T) {
	f, err := ParseFrame("event: action\r\ndata: {\"type\":\"set_editor_content\"}\r")
	if err != nil {
		t.Fatal(err)
	}
	if f.Event != "action" {
		t.Errorf("Event = %q, want action", f.Event)
	}
	if f.Data != `{"type":"set_editor_content"}` {
		t.Errorf("Data = %q", f.Data)
	}
}

func TestParseFrame_MissingEventLine(t *testing.T) {
	if _, err := ParseFrame("data: {\"response\":\"x\"}"); err == nil {
		t.Fatal("expected error for frame without event line")
	}
}

func TestParseFrame_MissingDataLine(t *testing.T) {
	if _, err := ParseFrame("event: step"); err == nil {
		t.Fatal("expected error for frame without data line")
	}
}

func TestParseFrame_EmptyEventValue(t *testing.T) {
	if _, err := ParseFrame("event:\ndata: {}"); err == nil {
		t.Fatal("expected error for empty event value")
	}
}

func TestParseFrame_EmptyDataValue(t *testing.T) {
	if _, err := ParseFrame("event: step\ndata:"); err == nil {
		t.Fatal("expected error for empty data value")
	}
}

// ── Interpret: 类型化载荷 ───────────────────────────────────

func TestInterpret_StepPayload(t *testing.T) {
	ev, err := Interpret(Frame{
		Event: "step",
		Data:  `{"type":"tool_call","tool":"get_table_columns","args":{"table":"orders"},"result_summary":"12 columns"}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventStep || ev.Step == nil {
		t.Fatalf("ev = %+v, want step event", ev)
	}
	if ev.Step.Tool != "get_table_columns" {
		t.Errorf("Tool = %q", ev.Step.Tool)
	}
	if ev.Step.Args["table"] != "orders" {
		t.Errorf("Args = %v", ev.Step.Args)
	}
	if ev.Step.ResultSummary != "12 columns" {
		t.Errorf("ResultSummary = %q", ev.Step.ResultSummary)
	}
}

func TestInterpret_ActionPayload(t *testing.T) {
	ev, err := Interpret(Frame{
		Event: "action",
		Data:  `{"type":"set_editor_content","sql":"SELECT * FROM orders"}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventAction || ev.Action == nil {
		t.Fatalf("ev = %+v, want action event", ev)
	}
	if ev.Action.Type != ActionSetEditorContent {
		t.Errorf("Type = %q", ev.Action.Type)
	}
	if ev.Action.SQL != "SELECT * FROM orders" {
		t.Errorf("SQL = %q", ev.Action.SQL)
	}
}

func TestInterpret_ResponsePayloadWithUsage(t *testing.T) {
	ev, err := Interpret(Frame{
		Event: "response",
		Data:  `{"response":"Here are your tables.","usage":{"prompt_tokens":120,"completion_tokens":45,"total_tokens":165}}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventResponse || ev.Response == nil {
		t.Fatalf("ev = %+v, want response event", ev)
	}
	if ev.Response.Response != "Here are your tables." {
		t.Errorf("Response = %q", ev.Response.Response)
	}
	if ev.Response.Usage == nil || ev.Response.Usage.TotalTokens != 165 {
		t.Errorf("Usage = %+v, want total 165", ev.Response.Usage)
	}
}

func TestInterpret_ResponsePayloadWithoutUsage(t *testing.T) {
	ev, err := Interpret(Frame{Event: "response", Data: `{"response":"ok"}`})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Response.Usage != nil {
		t.Errorf("Usage = %+v, want nil", ev.Response.Usage)
	}
}

func TestInterpret_ErrorPayload(t *testing.T) {
	ev, err := Interpret(Frame{Event: "error", Data: `{"error":"provider unavailable"}`})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventError || ev.Error == nil {
		t.Fatalf("ev = %+v, want error event", ev)
	}
	if ev.Error.Error != "provider unavailable" {
		t.Errorf("Error = %q", ev.Error.Error)
	}
}

// ── Interpret: 跳过语义 ─────────────────────────────────────

func TestInterpret_UnknownTagSkipped(t *testing.T) {
	if _, err := Interpret(Frame{Event: "ping", Data: `{}`}); err == nil {
		t.Fatal("expected error for unknown event tag")
	}
}

func TestInterpret_MalformedJSONSkipped(t *testing.T) {
	if _, err := Interpret(Frame{Event: "step", Data: `{"type":"tool_call"`}); err == nil {
		t.Fatal("expected error for malformed JSON payload")
	}
}

func TestInterpret_NonObjectPayloadSkipped(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"array", `[1,2,3]`},
		{"string", `"just text"`},
		{"number", `42`},
		{"null", `null`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Interpret(Frame{Event: "response", Data: tt.data}); err == nil {
				t.Fatalf("expected error for non-object payload %q", tt.data)
			}
		})
	}
}

func TestInterpret_WrongFieldTypeSkipped(t *testing.T) {
	// response 字段类型不符 → 跳过而非折叠坏值
	if _, err := Interpret(Frame{Event: "response", Data: `{"response":123}`}); err == nil {
		t.Fatal("expected error for wrong-typed response field")
	}
}

// ── InterpretBlock ──────────────────────────────────────────

func TestInterpretBlock_EndToEnd(t *testing.T) {
	ev, err := InterpretBlock("event: step\ndata: {\"type\":\"tool_call\",\"tool\":\"list_schemas\"}")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventStep || ev.Step.Tool != "list_schemas" {
		t.Fatalf("ev = %+v", ev)
	}
}

func TestInterpretBlock_PropagatesParseError(t *testing.T) {
	if _, err := InterpretBlock("data: {\"response\":\"x\"}"); err == nil {
		t.Fatal("expected parse error to propagate")
	}
}

func TestInterpretBlock_ValidAfterInvalidStillWorks(t *testing.T) {
	// 跳过是逐帧的: 坏帧不影响下一帧的解释
	if _, err := InterpretBlock("event: ping\ndata: {}"); err == nil {
		t.Fatal("expected error for ping frame")
	}
	ev, err := InterpretBlock("event: response\ndata: {\"response\":\"still fine\"}")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Response.Response != "still fine" {
		t.Errorf("Response = %q", ev.Response.Response)
	}
}
