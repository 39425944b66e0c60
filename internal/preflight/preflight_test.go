package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftbyte/snapharbor/internal/models"
)

func s3Target(bucket, endpoint string) *models.CloudTarget {
	return &models.CloudTarget{
		Type: models.CloudTargetS3,
		S3: &models.S3Target{
			Bucket:          bucket,
			Region:          "us-east-1",
			Endpoint:        endpoint,
			AccessKeyID:     "AKIATEST",
			SecretAccessKey: "secret",
		},
	}
}

func TestCheckRejectsIncompleteTarget(t *testing.T) {
	checker := NewChecker(time.Second)
	target := &models.CloudTarget{
		Type: models.CloudTargetS3,
		S3:   &models.S3Target{Bucket: "backups"},
	}
	if err := checker.Check(context.Background(), target); err == nil {
		t.Fatal("expected validation error for target without credentials")
	}
	if err := checker.Check(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil target")
	}
}

func TestCheckS3AgainstReachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "backups") {
			t.Errorf("expected bucket in path-style request, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewChecker(5 * time.Second)
	if err := checker.Check(context.Background(), s3Target("backups", server.URL)); err != nil {
		t.Fatalf("expected reachable bucket to pass, got %v", err)
	}
}

func TestCheckS3MissingBucket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewChecker(5 * time.Second)
	err := checker.Check(context.Background(), s3Target("missing", server.URL))
	if err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected missing-bucket message, got %v", err)
	}
}

func TestCheckS3AccessDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	checker := NewChecker(5 * time.Second)
	err := checker.Check(context.Background(), s3Target("private", server.URL))
	if err == nil {
		t.Fatal("expected error for denied bucket")
	}
	if !strings.Contains(err.Error(), "denied") {
		t.Errorf("expected access-denied message, got %v", err)
	}
}

func TestCheckResticURLSyntax(t *testing.T) {
	checker := NewChecker(time.Second)

	valid := []string{
		"/srv/restic-repo",
		"s3:s3.amazonaws.com/bucket/repo",
		"sftp:user@host:/srv/repo",
		"rest:https://restic.example.com/repo",
		"b2:bucket:path",
	}
	for _, repo := range valid {
		target := &models.CloudTarget{
			Type:   models.CloudTargetRestic,
			Restic: &models.ResticTarget{Repository: repo, RepositoryPassword: "pw"},
		}
		if err := checker.Check(context.Background(), target); err != nil {
			t.Errorf("expected %q to be accepted, got %v", repo, err)
		}
	}

	invalid := []string{
		"relative/path",
		"ftp://host/repo",
		"s3:",
	}
	for _, repo := range invalid {
		target := &models.CloudTarget{
			Type:   models.CloudTargetRestic,
			Restic: &models.ResticTarget{Repository: repo, RepositoryPassword: "pw"},
		}
		if err := checker.Check(context.Background(), target); err == nil {
			t.Errorf("expected %q to be rejected", repo)
		}
	}
}
