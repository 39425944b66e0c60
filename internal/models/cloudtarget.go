package models

import (
	"fmt"
	"strings"
)

// CloudTargetType identifies the provider variant of a cloud restore target.
type CloudTargetType string

const (
	// CloudTargetS3 uploads to AWS S3 or an S3-compatible endpoint.
	CloudTargetS3 CloudTargetType = "s3"
	// CloudTargetB2 uploads to Backblaze B2.
	CloudTargetB2 CloudTargetType = "b2"
	// CloudTargetRestic uploads into another Restic repository.
	CloudTargetRestic CloudTargetType = "restic"
)

// S3Target holds S3 credentials and location.
type S3Target struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// B2Target holds Backblaze B2 credentials and location.
type B2Target struct {
	Bucket         string `json:"bucket"`
	Prefix         string `json:"prefix,omitempty"`
	Region         string `json:"region,omitempty"`
	AccountID      string `json:"account_id"`
	ApplicationKey string `json:"application_key"`
}

// ResticTarget holds the URL and password of a destination Restic repository.
type ResticTarget struct {
	Repository         string `json:"repository"`
	RepositoryPassword string `json:"repository_password"`
}

// CloudTarget is a tagged variant: exactly one of S3, B2 or Restic is
// populated, selected by Type. Validity is type-dependent.
type CloudTarget struct {
	Type   CloudTargetType `json:"type"`
	S3     *S3Target       `json:"s3,omitempty"`
	B2     *B2Target       `json:"b2,omitempty"`
	Restic *ResticTarget   `json:"restic,omitempty"`
}

// requiredFields maps each variant to the fields that must be non-empty
// before a cloud restore may be submitted.
func (t *CloudTarget) requiredFields() map[string]string {
	switch t.Type {
	case CloudTargetS3:
		if t.S3 == nil {
			return nil
		}
		return map[string]string{
			"bucket":            t.S3.Bucket,
			"access_key_id":     t.S3.AccessKeyID,
			"secret_access_key": t.S3.SecretAccessKey,
		}
	case CloudTargetB2:
		if t.B2 == nil {
			return nil
		}
		return map[string]string{
			"bucket":          t.B2.Bucket,
			"account_id":      t.B2.AccountID,
			"application_key": t.B2.ApplicationKey,
		}
	case CloudTargetRestic:
		if t.Restic == nil {
			return nil
		}
		return map[string]string{
			"repository":          t.Restic.Repository,
			"repository_password": t.Restic.RepositoryPassword,
		}
	}
	return nil
}

// Validate checks that exactly one variant is populated, that it matches
// Type, and that the variant's required fields are all non-empty.
func (t *CloudTarget) Validate() error {
	if t == nil {
		return fmt.Errorf("cloud target is required")
	}

	populated := 0
	if t.S3 != nil {
		populated++
	}
	if t.B2 != nil {
		populated++
	}
	if t.Restic != nil {
		populated++
	}
	if populated != 1 {
		return fmt.Errorf("cloud target must have exactly one provider variant, got %d", populated)
	}

	fields := t.requiredFields()
	if fields == nil {
		return fmt.Errorf("cloud target variant does not match type %q", t.Type)
	}

	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("cloud target %s is missing required fields: %s", t.Type, strings.Join(sorted(missing), ", "))
	}

	return nil
}

// Complete reports whether the target would pass validation. Used to gate the
// submit control without surfacing an error.
func (t *CloudTarget) Complete() bool {
	return t != nil && t.Validate() == nil
}

func sorted(values []string) []string {
	out := append([]string(nil), values...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
