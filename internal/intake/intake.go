// Package intake checks uploaded symptom images against account limits and
// normalizes them into metadata-free JPEGs.
package intake

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // registers the webp decoder

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/models"
)

const (
	MaxImages     = 3
	MaxImageBytes = 5 << 20
	MaxDimension  = 2048
	jpegQuality   = 90
)

const (
	MsgNoPremiumTier          = "Uploading images requires a premium tier account."
	MsgImageCountExceeded     = "Too many images. At most 3 images can be uploaded."
	MsgImageTooLarge          = "Image is too large. Maximum size is 5 MB."
	MsgUnsupportedImageFormat = "Unsupported image format. Allowed formats are JPEG, PNG and WEBP."
	MsgSavingIOError          = "Processing of the image failed, please try again later."
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Upload is one received image file, not yet read.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// ReadAll reads the upload, refusing more than MaxImageBytes even when the
// declared size was wrong.
func (u Upload) ReadAll() ([]byte, error) {
	rc, err := u.Open()
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageIOFailure, MsgSavingIOError, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxImageBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageIOFailure, MsgSavingIOError, err)
	}
	if len(data) > MaxImageBytes {
		return nil, apperr.New(apperr.PayloadTooLarge, MsgImageTooLarge)
	}
	return data, nil
}

// NormalizedImage is a re-encoded JPEG ready for storage.
type NormalizedImage struct {
	Name   string
	Data   []byte
	Width  int
	Height int
}

// CheckCriteria enforces tier, count and size limits before any image is
// read. An empty upload list always passes.
func CheckCriteria(user *models.User, uploads []Upload) error {
	if len(uploads) == 0 {
		return nil
	}
	if !user.HasPremiumTier {
		return apperr.New(apperr.PaymentRequired, MsgNoPremiumTier)
	}
	if len(uploads) > MaxImages {
		return apperr.New(apperr.PayloadTooLarge, MsgImageCountExceeded)
	}
	for _, u := range uploads {
		if u.Size > MaxImageBytes {
			return apperr.New(apperr.PayloadTooLarge, MsgImageTooLarge)
		}
	}
	return nil
}

// Normalize validates the image type, applies EXIF orientation, fits it
// into MaxDimension square and re-encodes it as JPEG without metadata.
func Normalize(data []byte) (*NormalizedImage, error) {
	if !isAllowed(data) {
		return nil, apperr.New(apperr.UnsupportedMediaType, MsgUnsupportedImageFormat)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageIOFailure, MsgSavingIOError, fmt.Errorf("decode image: %w", err))
	}

	img = orient(img, orientation(data))
	img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	img = flatten(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, apperr.Wrap(apperr.StorageIOFailure, MsgSavingIOError, fmt.Errorf("encode image: %w", err))
	}

	b := img.Bounds()
	return &NormalizedImage{
		Name:   uuid.NewString() + ".jpg",
		Data:   buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

func isAllowed(data []byte) bool {
	m := mimetype.Detect(data)
	for _, t := range allowedTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// orientation returns the EXIF orientation tag, or 1 when absent.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// orient rotates counter-clockwise for the three pure-rotation values.
// Mirrored orientations are left as they are.
func orient(img image.Image, o int) image.Image {
	switch o {
	case 3:
		return imaging.Rotate180(img)
	case 6:
		return imaging.Rotate270(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// flatten drops any alpha channel by compositing onto white.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
