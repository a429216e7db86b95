package utils

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const receiptUploadTimeout = 60 * time.Second

// ReceiptUploader stores receipt images attached to manual contributions.
type ReceiptUploader interface {
	UploadReceipt(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error)
	DeleteReceipt(ctx context.Context, imageURL string) error
}

// CloudinaryUploader keeps receipts in one Cloudinary folder.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryUploader(cloudName, apiKey, apiSecret, folder string) (*CloudinaryUploader, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary: cloud name, api key and secret are required")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %w", err)
	}
	if folder == "" {
		folder = "receipts"
	}
	return &CloudinaryUploader{cld: cld, folder: folder}, nil
}

// UploadReceipt uploads the file and returns its secure URL.
func (u *CloudinaryUploader) UploadReceipt(ctx context.Context, file multipart.File, _ *multipart.FileHeader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, receiptUploadTimeout)
	defer cancel()

	resp, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{Folder: u.folder})
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload error: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// DeleteReceipt removes a previously uploaded receipt by its URL.
func (u *CloudinaryUploader) DeleteReceipt(ctx context.Context, imageURL string) error {
	publicID, err := extractPublicID(imageURL)
	if err != nil {
		return fmt.Errorf("could not extract public ID: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}

// extractPublicID turns
// https://res.cloudinary.com/demo/image/upload/v1234567890/receipts/abc123.jpg
// into receipts/abc123.
func extractPublicID(imageURL string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", err
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	upload := -1
	for i, p := range parts {
		if p == "upload" {
			upload = i
			break
		}
	}
	if upload < 0 || upload == len(parts)-1 {
		return "", errors.New("invalid cloudinary URL format")
	}

	rest := parts[upload+1:]
	if len(rest) > 1 && isVersionSegment(rest[0]) {
		rest = rest[1:]
	}
	joined := path.Join(rest...)
	return strings.TrimSuffix(joined, path.Ext(joined)), nil
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
