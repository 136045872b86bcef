package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"kinship/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultUploadDir       = "/tmp/kinship/uploads"
	DefaultMaxUploadSizeMB = 10
	MasterMaxSize          = 2048
	JPEGQuality            = 82
	WebPQuality            = 70
)

// Store persists uploaded media and destroys it on demand. Handles are
// opaque strings; callers keep them on the owning record and ask for
// destruction when that record stops referencing them.
type Store interface {
	Save(ctx context.Context, in SaveInput) (string, error)
	Destroy(ctx context.Context, handle string) error
	URL(handle string) string
	ResolvePath(handle string) (string, error)
}

type SaveInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// diskStore is a content-addressed store on the local filesystem. Each
// asset lives under <uploadDir>/<handle>/ as a JPEG master plus a WebP
// rendition.
type diskStore struct {
	uploadDir          string
	maxUploadSizeBytes int64
}

func NewDiskStore(uploadDir string, maxUploadSizeMB int) Store {
	if uploadDir == "" {
		uploadDir = DefaultUploadDir
	}
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	return &diskStore{
		uploadDir:          uploadDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

func (s *diskStore) Save(_ context.Context, in SaveInput) (string, error) {
	if in.UserID == 0 {
		return "", models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return "", models.NewValidationError("Unsupported image format")
	}

	master := resizeToFit(decoded, MasterMaxSize, MasterMaxSize)

	encodedJPG, err := encodeJPEG(master, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	encodedWebP, err := encodeWebP(master, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	handle := buildHandle(in.UserID, encodedJPG)
	jpgAbs := filepath.Join(s.uploadDir, handle, "master.jpg")
	webpAbs := filepath.Join(s.uploadDir, handle, "master.webp")

	if err := writeBytesToFile(jpgAbs, encodedJPG); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpAbs, encodedWebP); err != nil {
		_ = os.RemoveAll(filepath.Join(s.uploadDir, handle))
		return "", models.NewInternalError(err)
	}

	return handle, nil
}

// Destroy removes the asset's directory. Destroying a handle that no
// longer exists succeeds, so retries after a partial failure are safe.
func (s *diskStore) Destroy(_ context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	if !isValidHandle(handle) {
		return models.NewValidationError("Invalid asset handle")
	}
	if err := os.RemoveAll(filepath.Join(s.uploadDir, handle)); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *diskStore) URL(handle string) string {
	if handle == "" {
		return ""
	}
	return fmt.Sprintf("/media/a/%s/master.jpg", handle)
}

// ResolvePath maps a handle to the master file on disk for serving.
func (s *diskStore) ResolvePath(handle string) (string, error) {
	if !isValidHandle(handle) {
		return "", models.NewValidationError("Invalid asset handle")
	}
	fullPath := filepath.Join(s.uploadDir, handle, "master.jpg")
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Asset", handle)
		}
		return "", models.NewInternalError(err)
	}
	return fullPath, nil
}

// isValidHandle checks that the handle is strictly lowercase hex
// (SHA-256 style). This prevents path traversal via crafted handles.
func isValidHandle(handle string) bool {
	if len(handle) == 0 || len(handle) > 128 {
		return false
	}
	for _, c := range handle {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// buildHandle salts the digest with a fresh uuid so every upload gets its
// own handle. Identical images stored twice must not collide: each handle
// has exactly one owner, and destroying one cannot take the other's files.
func buildHandle(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:%s:", userID, uuid.NewString())
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
