package rclone

import (
	"os"
	"strings"
	"testing"

	"github.com/helixbio/portal-submit/internal/credentials"
)

func TestRenderSectionOmitsEmptyValues(t *testing.T) {
	out := renderSection("remote", []ConfigEntry{
		{"type", "s3"},
		{"session_token", ""},
		{"region", "us-east-1"},
	})
	want := "[remote]\ntype = s3\nregion = us-east-1\n"
	if out != want {
		t.Errorf("renderSection = %q, want %q", out, want)
	}
}

func TestWriteConfigFileAmazon(t *testing.T) {
	store := NewAmazonStore(&credentials.Amazon{
		Region:          "us-east-1",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		KMSKeyID:        "kms-1",
	}, "my-bucket")

	cfg, err := WriteConfigFile(false, store)
	if err != nil {
		t.Fatal(err)
	}
	defer cfg.Close()

	info, err := os.Stat(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"[" + store.Name + "]",
		"type = s3",
		"provider = AWS",
		"access_key_id = AKIA",
		"secret_access_key = secret",
		"session_token = token",
		"region = us-east-1",
		"server_side_encryption = aws:kms",
		"sse_kms_key_id = kms-1",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("config missing %q:\n%s", want, content)
		}
	}
}

func TestWriteConfigFileGoogleOmitsEmptyServiceAccount(t *testing.T) {
	store := NewGoogleStore(&credentials.Google{Location: "us-central1"}, "gcs-bucket")

	cfg, err := WriteConfigFile(false, store)
	if err != nil {
		t.Fatal(err)
	}
	defer cfg.Close()

	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "type = google cloud storage") {
		t.Errorf("missing provider type:\n%s", content)
	}
	if !strings.Contains(content, "bucket_policy_only = true") {
		t.Errorf("missing bucket_policy_only:\n%s", content)
	}
	if strings.Contains(content, "service_account_file") {
		t.Errorf("empty service_account_file must be omitted:\n%s", content)
	}
}

func TestWriteConfigFileTwoStores(t *testing.T) {
	src := NewGoogleStore(&credentials.Google{ServiceAccountFile: "/dev/null"}, "src-bucket")
	dst := NewAmazonStore(&credentials.Amazon{AccessKeyID: "AKIA", SecretAccessKey: "s"}, "dst-bucket")

	cfg, err := WriteConfigFile(false, src, dst)
	if err != nil {
		t.Fatal(err)
	}
	defer cfg.Close()

	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "["+src.Name+"]") || !strings.Contains(content, "["+dst.Name+"]") {
		t.Errorf("both remotes must be present:\n%s", content)
	}
}

func TestConfigFileClose(t *testing.T) {
	store := NewAmazonStore(&credentials.Amazon{AccessKeyID: "AKIA"}, "b")

	cfg, err := WriteConfigFile(false, store)
	if err != nil {
		t.Fatal(err)
	}
	path := cfg.Path()
	if err := cfg.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Close must remove a non-persisted config file")
	}
	// Closing twice is harmless.
	if err := cfg.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestConfigFilePersisted(t *testing.T) {
	store := NewAmazonStore(&credentials.Amazon{AccessKeyID: "AKIA"}, "b")

	cfg, err := WriteConfigFile(true, store)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Persisted() {
		t.Fatal("expected persisted config file")
	}
	path := cfg.Path()
	defer os.Remove(path)

	if err := cfg.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("Close must keep a persisted config file")
	}
}
