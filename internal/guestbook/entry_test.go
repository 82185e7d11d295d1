package guestbook

import (
	"strings"
	"testing"
	"time"
)

// Validate

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
		want string // empty means valid
	}{
		{"valid", Submission{"Ann", "Hello"}, ""},
		{"missing author", Submission{"", "Hello"}, MsgRequired},
		{"missing content", Submission{"Ann", ""}, MsgRequired},
		{"both missing", Submission{}, MsgRequired},
		{"missing author with long content", Submission{"", strings.Repeat("x", 900)}, MsgRequired},
		{"whitespace kept", Submission{" ", " "}, ""},
		{"500 ascii", Submission{"Ann", strings.Repeat("a", 500)}, ""},
		{"501 ascii", Submission{"Ann", strings.Repeat("a", 501)}, MsgTooLong},
		{"500 han", Submission{"Ann", strings.Repeat("留", 500)}, ""},
		{"501 han", Submission{"Ann", strings.Repeat("留", 501)}, MsgTooLong},
		{"250 emoji fill 500 units", Submission{"Ann", strings.Repeat("😀", 250)}, ""},
		{"251 emoji exceed", Submission{"Ann", strings.Repeat("😀", 251)}, MsgTooLong},
		{"300 emoji", Submission{"Ann", strings.Repeat("😀", 300)}, MsgTooLong},
		{"emoji plus han at limit", Submission{"Ann", "😀" + strings.Repeat("留", 498)}, ""},
		{"emoji plus han over", Submission{"Ann", "😀" + strings.Repeat("留", 499)}, MsgTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if KindOf(err) != KindValidation {
				t.Fatalf("KindOf = %v, want validation", KindOf(err))
			}
			if Message(err) != tt.want {
				t.Fatalf("Message = %q, want %q", Message(err), tt.want)
			}
		})
	}
}

func TestContentLength(t *testing.T) {
	for s, want := range map[string]int{
		"":         0,
		"hello":    5,
		"留言":       2,
		"😀":        2,
		"a😀b":      4,
		"\xff\xfe": 2,
	} {
		if got := contentLength(s); got != want {
			t.Errorf("contentLength(%q) = %d, want %d", s, got, want)
		}
	}
}

// FormatEntry

func TestFormatEntry(t *testing.T) {
	ts := time.Date(2025, 1, 5, 8, 5, 9, 0, time.UTC)
	got := FormatEntry("Ann", ts, "Hello", time.UTC)
	want := "作者:Ann\n时间:2025/1/5 08:05:09\n内容:Hello\n\n"
	if got != want {
		t.Fatalf("FormatEntry = %q, want %q", got, want)
	}
}

func TestFormatEntry_Location(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	ts := time.Date(2025, 12, 31, 20, 0, 0, 0, time.UTC)
	got := FormatEntry("Bob", ts, "新年快乐", shanghai)
	if !strings.Contains(got, "时间:2026/1/1 04:00:00\n") {
		t.Fatalf("timestamp not rendered in location: %q", got)
	}
}

func TestFormatEntry_MultilineContentKept(t *testing.T) {
	got := FormatEntry("A", time.Unix(0, 0), "line1\nline2", time.UTC)
	if !strings.HasSuffix(got, "内容:line1\nline2\n\n") {
		t.Fatalf("content altered: %q", got)
	}
}

func TestCommitMessage(t *testing.T) {
	if got := CommitMessage("Ann"); got != "添加新留言 - Ann" {
		t.Fatalf("CommitMessage = %q", got)
	}
}

// Kind

func TestKind_HTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindValidation:       400,
		KindMethodNotAllowed: 405,
		KindConfiguration:    500,
		KindUpstreamAuth:     500,
		KindUpstream:         500,
		KindUpstreamWrite:    500,
		KindUnknown:          500,
	}
	for k, want := range tests {
		if got := k.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", k, got, want)
		}
	}
}

func TestMessage_UnclassifiedHidden(t *testing.T) {
	if got := Message(errString("db password is hunter2")); got != MsgInternal {
		t.Fatalf("Message = %q, want %q", got, MsgInternal)
	}
	if KindOf(nil) != KindUnknown {
		t.Fatal("KindOf(nil) should be unknown")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
