package services

import (
	"fmt"
	"mime/multipart"

	"github.com/framecraft-studio/framecraft-api/utils"
)

// FileService stores draft artifacts and resolves them back to URLs.
// With S3 configured, files go to the bucket and URLs are presigned;
// otherwise files land on local disk and are served by the uploads
// endpoint.
type FileService interface {
	// StoreDraftFile validates and stores a draft upload, returns the storage key
	StoreDraftFile(fileHeader *multipart.FileHeader) (string, error)

	// GetFileURL resolves a storage key to a fetchable URL
	GetFileURL(key string) (string, error)

	// DeleteFile removes a stored file
	DeleteFile(key string) error
}

var fileServiceInstance FileService

// InitFileService picks the storage backend: S3 when a bucket is
// configured (and the S3 service initialized), local disk otherwise.
func InitFileService(uploadDir string) FileService {
	if s3 := GetS3Service(); s3 != nil {
		fileServiceInstance = &S3FileService{s3: s3}
	} else {
		fileServiceInstance = &LocalFileService{uploadDir: uploadDir}
	}
	return fileServiceInstance
}

// GetFileService returns the installed file service.
func GetFileService() FileService {
	return fileServiceInstance
}

// SetFileService installs a file service (primarily for testing)
func SetFileService(fs FileService) {
	fileServiceInstance = fs
}

// S3FileService stores drafts in the configured bucket.
type S3FileService struct {
	s3 S3Interface
}

// StoreDraftFile validates the upload and pushes it to S3.
func (s *S3FileService) StoreDraftFile(fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateDraftFile(fileHeader); err != nil {
		return "", err
	}
	return s.s3.UploadFile(fileHeader)
}

// GetFileURL returns a presigned URL for the key.
func (s *S3FileService) GetFileURL(key string) (string, error) {
	return s.s3.GetPresignedURL(key)
}

// DeleteFile removes the object from the bucket.
func (s *S3FileService) DeleteFile(key string) error {
	return s.s3.DeleteFile(key)
}

// LocalFileService stores drafts on local disk, the development fallback.
type LocalFileService struct {
	uploadDir string
}

// NewLocalFileService creates a LocalFileService rooted at uploadDir.
func NewLocalFileService(uploadDir string) *LocalFileService {
	return &LocalFileService{uploadDir: uploadDir}
}

// StoreDraftFile validates the upload and writes it under the upload
// directory.
func (l *LocalFileService) StoreDraftFile(fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateDraftFile(fileHeader); err != nil {
		return "", err
	}
	return utils.SaveUploadedFile(fileHeader, l.uploadDir)
}

// GetFileURL returns the uploads-endpoint path for the key.
func (l *LocalFileService) GetFileURL(key string) (string, error) {
	return utils.GetLocalFileURL(key), nil
}

// DeleteFile is a no-op for local storage; files are cleaned up out of
// band.
func (l *LocalFileService) DeleteFile(key string) error {
	if key == "" {
		return nil
	}
	return fmt.Errorf("local file deletion is not supported")
}
