package version_test

import (
	"testing"

	v "github.com/keithlinneman/linnemanlabs-guestbook/internal/version"
)

func TestGet_LdflagsWin(t *testing.T) {
	oldVersion, oldCommit, oldDirty := v.Version, v.Commit, v.VCSDirty
	t.Cleanup(func() { v.Version, v.Commit, v.VCSDirty = oldVersion, oldCommit, oldDirty })

	v.Version = "1.2.3"
	v.Commit = "abc123"
	dirty := true
	v.VCSDirty = &dirty

	info := v.Get()
	if info.Version != "1.2.3" {
		t.Fatalf("Version = %q", info.Version)
	}
	if info.Commit != "abc123" {
		t.Fatalf("Commit = %q", info.Commit)
	}
	if info.VCSDirty == nil || !*info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}
	if info.AppName != v.AppName {
		t.Fatalf("AppName = %q", info.AppName)
	}
}

func TestGet_GoVersionFilled(t *testing.T) {
	if v.Get().GoVersion == "" {
		t.Fatal("GoVersion should be filled from build info")
	}
}

func TestUserAgent(t *testing.T) {
	info := v.Info{AppName: "linnemanlabs-guestbook", Version: "dev"}
	if got := info.UserAgent(); got != "linnemanlabs-guestbook/dev" {
		t.Fatalf("UserAgent = %q", got)
	}
}
