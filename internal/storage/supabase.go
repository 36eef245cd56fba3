package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseSink writes files to a Supabase storage bucket.
type SupabaseSink struct {
	client *storage_go.Client
	bucket string
}

func NewSupabaseSink(supabaseURL, serviceKey, bucket string) *SupabaseSink {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	return &SupabaseSink{
		client: storage_go.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket: bucket,
	}
}

func (s *SupabaseSink) Exists(_ context.Context, dest string) (bool, error) {
	// The API lists a folder; matching the file name is on us.
	dir, name := path.Split(dest)
	files, err := s.client.ListFiles(s.bucket, strings.TrimSuffix(dir, "/"), storage_go.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", dest, err)
	}
	for _, f := range files {
		if f.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *SupabaseSink) Write(_ context.Context, dest string, r io.Reader, _ int64) error {
	contentType := "application/octet-stream"
	upsert := true
	_, err := s.client.UploadFile(s.bucket, dest, r, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", dest, err)
	}
	return nil
}
