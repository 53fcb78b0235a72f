package a2a

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantErr  bool
	}{
		{
			name:     "message list shape",
			raw:      `{"messages":[{"role":"assistant","content":"hello"}]}`,
			wantText: "hello",
		},
		{
			name:     "message list joins assistant turns",
			raw:      `{"messages":[{"role":"assistant","content":"one"},{"role":"user","content":"skip"},{"role":"assistant","content":"two"}]}`,
			wantText: "one\ntwo",
		},
		{
			name:     "message list without roles",
			raw:      `{"messages":[{"content":"bare"}]}`,
			wantText: "bare",
		},
		{
			name:     "content parts shape",
			raw:      `{"content":[{"type":"text","text":"hi"}]}`,
			wantText: "hi",
		},
		{
			name:     "content parts skips non-text",
			raw:      `{"content":[{"type":"image","text":"nope"},{"type":"text","text":"yes"}]}`,
			wantText: "yes",
		},
		{
			name:    "empty response",
			raw:     ``,
			wantErr: true,
		},
		{
			name:    "unrecognized shape",
			raw:     `{"reply":"hello"}`,
			wantErr: true,
		},
		{
			name:    "empty message list",
			raw:     `{"messages":[]}`,
			wantErr: true,
		},
		{
			name:    "only non-assistant messages",
			raw:     `{"messages":[{"role":"system","content":"x"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Normalize([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", resp)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Text != tt.wantText {
				t.Errorf("expected %q, got %q", tt.wantText, resp.Text)
			}
			if string(resp.Raw) != tt.raw {
				t.Errorf("expected raw preserved, got %s", resp.Raw)
			}
		})
	}
}
