package cloudpath

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{".", ""},
		{"/", ""},
		{"///", ""},
		{"bucket", "bucket"},
		{"/bucket/", "bucket"},
		{"bucket//key", "bucket/key"},
		{"//bucket///sub//key//", "bucket/sub/key"},
		{"a/./b", "a/b"},
		{"  bucket/key  ", "bucket/key"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"", ".", "a//b/./c/", "///x///", "bucket/key"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{""}, ""},
		{[]string{"a", "b"}, "a/b"},
		{[]string{"/a/", "/b/"}, "a/b"},
		{[]string{"a", "", "b", ".", "c"}, "a/b/c"},
		{[]string{"bucket", "sub/key"}, "bucket/sub/key"},
	}
	for _, tt := range tests {
		if got := Join(tt.args...); got != tt.want {
			t.Errorf("Join(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestJoinEquivalentToNormalizedConcat(t *testing.T) {
	pairs := [][2]string{
		{"a", "b"},
		{"/bucket/", "x//y"},
		{"bucket", "key"},
	}
	for _, p := range pairs {
		if got, want := Join(p[0], p[1]), Normalize(p[0]+"/"+p[1]); got != want {
			t.Errorf("Join(%q, %q) = %q, want %q", p[0], p[1], got, want)
		}
	}
}

func TestBucketAndKeyAccessors(t *testing.T) {
	joined := Join("some-bucket", "a/b/file.fastq")

	if got := Bucket(joined); got != "some-bucket" {
		t.Errorf("Bucket(%q) = %q", joined, got)
	}
	if got := Key(joined); got != "a/b/file.fastq" {
		t.Errorf("Key(%q) = %q", joined, got)
	}
	if got := Basename(joined); got != "file.fastq" {
		t.Errorf("Basename(%q) = %q", joined, got)
	}

	if got := Key("just-a-bucket"); got != "" {
		t.Errorf("Key(bucket-only) = %q, want empty", got)
	}
	if Bucket("") != "" || Key("") != "" || Basename("") != "" {
		t.Error("empty input must yield empty output")
	}
}

func TestHasSeparator(t *testing.T) {
	if HasSeparator("bucket") {
		t.Error("bucket-only path should have no separator")
	}
	if !HasSeparator("bucket/key") {
		t.Error("bucket/key should have a separator")
	}
	if HasSeparator("/bucket/") {
		t.Error("normalization should strip outer slashes before checking")
	}
}

func TestBucketAndKey(t *testing.T) {
	tests := []struct {
		arg        string
		arg2       string
		wantBucket string
		wantKey    string
	}{
		{"bucket/sub/key", "", "bucket", "sub/key"},
		{"s3://bucket/sub/key", "", "bucket", "sub/key"},
		{"gs://bucket/obj", "", "bucket", "obj"},
		{"bucket", "", "bucket", ""},
		{"bucket", "sub/key", "bucket", "sub/key"},
		{"/bucket/", "//key//", "bucket", "key"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		bucket, key := BucketAndKey(tt.arg, tt.arg2)
		if bucket != tt.wantBucket || key != tt.wantKey {
			t.Errorf("BucketAndKey(%q, %q) = (%q, %q), want (%q, %q)",
				tt.arg, tt.arg2, bucket, key, tt.wantBucket, tt.wantKey)
		}
	}
}
