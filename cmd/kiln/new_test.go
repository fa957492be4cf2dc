package main

import "testing"

func TestReplaceSiteURL(t *testing.T) {
	in := "[site]\nurl = \"https://example.com\"\nroot = \".\"\n"
	out := replaceSiteURL(in, "https://blog.example.org")
	want := "[site]\nurl = \"https://blog.example.org\"\nroot = \".\"\n"
	if out != want {
		t.Fatalf("replaceSiteURL =\n%q\nwant\n%q", out, want)
	}
}

func TestReplaceSiteURL_NoMatchLeavesInputUnchanged(t *testing.T) {
	in := "[site]\nroot = \".\"\n"
	out := replaceSiteURL(in, "https://blog.example.org")
	if out != in {
		t.Fatalf("replaceSiteURL changed input with no url line: %q", out)
	}
}
