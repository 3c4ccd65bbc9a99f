package archive

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// uploadToGCS streams an artifact into a Google Cloud Storage bucket using
// a service-account key supplied base64-encoded in accessInfo.
func uploadToGCS(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	bucket := accessInfo["bucket"]
	if bucket == "" {
		return fmt.Errorf("missing required accessInfo key: bucket")
	}
	object := path.Join(accessInfo["remoteDir"], accessInfo["filename"])

	credentialsJSON, err := base64.StdEncoding.DecodeString(accessInfo["credentialsJSON"])
	if err != nil {
		return fmt.Errorf("credentialsJSON is not valid base64: %w", err)
	}

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(wc, reader); err != nil {
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}
	return nil
}
