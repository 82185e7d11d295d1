package guestbook

import (
	"strings"
	"time"
	"unicode/utf16"
)

// MaxContentLength is the longest accepted message body in UTF-16 code
// units, the length a browser reports for the form field. Characters outside
// the Basic Multilingual Plane, emoji included, count as two.
const MaxContentLength = 500

// TimestampLayout renders times the way the zh-CN locale does:
// unpadded year/month/day and a 24-hour clock.
const TimestampLayout = "2006/1/2 15:04:05"

// Submission is one guestbook message as posted by a visitor.
type Submission struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Validate checks required fields and the content length. Only the empty
// string counts as missing; whitespace is kept as the visitor sent it.
func (s Submission) Validate() error {
	if s.Author == "" || s.Content == "" {
		return Invalid(MsgRequired)
	}
	if contentLength(s.Content) > MaxContentLength {
		return Invalid(MsgTooLong)
	}
	return nil
}

// contentLength counts s in UTF-16 code units. Invalid UTF-8 bytes count as
// one unit each, as U+FFFD.
func contentLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// FormatEntry renders one four-line entry, the last line blank. A nil loc
// means time.Local.
func FormatEntry(author string, t time.Time, content string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	b.Grow(len(author) + len(content) + 48)
	b.WriteString("作者:")
	b.WriteString(author)
	b.WriteString("\n时间:")
	b.WriteString(t.In(loc).Format(TimestampLayout))
	b.WriteString("\n内容:")
	b.WriteString(content)
	b.WriteString("\n\n")
	return b.String()
}

// CommitMessage is the commit message used when appending an entry by author.
func CommitMessage(author string) string {
	return "添加新留言 - " + author
}
