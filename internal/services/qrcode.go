package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"

	"ticketer/internal/models"
)

// QRPayload is the ticket identity embedded in a QR code
type QRPayload struct {
	EntryCode    string                `json:"entry_code"`
	Category     models.TicketCategory `json:"category"`
	HolderName   string                `json:"holder_name,omitempty"`
	PurchaseDate time.Time             `json:"purchase_date"`
}

// PayloadFor builds the QR payload of a ticket
func PayloadFor(ticket *models.Ticket) QRPayload {
	return QRPayload{
		EntryCode:    ticket.EntryCode,
		Category:     ticket.Category,
		HolderName:   ticket.HolderName,
		PurchaseDate: ticket.PurchasedAt,
	}
}

// QRCodeService encodes ticket payloads into PNG QR codes and decodes them
// back from scanned photos.
type QRCodeService struct {
	size         int // Edge of generated PNGs in pixels
	maxScanEdge  int // Larger scans are downscaled before decoding
	recoverLevel qrcode.RecoveryLevel
	read         func(image.Image) (string, error)
}

// NewQRCodeService creates a QR code service with sensible defaults
func NewQRCodeService() *QRCodeService {
	s := &QRCodeService{
		size:         256,
		maxScanEdge:  1024,
		recoverLevel: qrcode.Medium,
	}
	s.read = s.readQR
	return s
}

// Encode renders the payload as a PNG QR code
func (s *QRCodeService) Encode(payload QRPayload) ([]byte, error) {
	if strings.TrimSpace(payload.EntryCode) == "" {
		return nil, models.NewValidationError("entry_code", "is required")
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return nil, &models.ValidationError{Err: fmt.Errorf("failed to marshal QR payload: %w", err)}
	}

	png, err := qrcode.Encode(string(content), s.recoverLevel, s.size)
	if err != nil {
		return nil, &models.ValidationError{Err: fmt.Errorf("failed to encode QR code: %w", err)}
	}

	return png, nil
}

// Decode reads a QR code from a PNG, JPEG or GIF image. Photos are
// auto-oriented from EXIF, converted to grayscale and downscaled first;
// when that fails the image is retried rotated by 90, 180 and 270 degrees.
func (s *QRCodeService) Decode(data []byte) (QRPayload, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return QRPayload{}, &models.ValidationError{
			Fields: map[string]string{"image": "unsupported or corrupt image"},
			Err:    fmt.Errorf("%w: %v", models.ErrQRDecode, err),
		}
	}

	text, err := s.readRotated(s.normalize(img))
	if err != nil {
		return QRPayload{}, &models.ValidationError{
			Fields: map[string]string{"image": "no readable QR code"},
			Err:    fmt.Errorf("%w: %v", models.ErrQRDecode, err),
		}
	}

	return ParseQRPayload(text)
}

func (s *QRCodeService) normalize(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() > s.maxScanEdge || bounds.Dy() > s.maxScanEdge {
		img = imaging.Fit(img, s.maxScanEdge, s.maxScanEdge, imaging.Lanczos)
	}
	return imaging.Grayscale(img)
}

func (s *QRCodeService) readRotated(img image.Image) (string, error) {
	rotations := []func(image.Image) *image.NRGBA{imaging.Rotate90, imaging.Rotate180, imaging.Rotate270}

	text, err := s.read(img)
	for _, rotate := range rotations {
		if err == nil {
			break
		}
		text, err = s.read(rotate(img))
	}
	return text, err
}

func (s *QRCodeService) readQR(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	result, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", err
	}

	return result.GetText(), nil
}

// ParseQRPayload parses decoded QR text. A bare entry code with no JSON
// wrapper is accepted as well.
func ParseQRPayload(text string) (QRPayload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return QRPayload{}, &models.ValidationError{
			Fields: map[string]string{"entry_code": "is required"},
			Err:    models.ErrQRDecode,
		}
	}

	if !strings.HasPrefix(text, "{") {
		return QRPayload{EntryCode: text}, nil
	}

	var payload QRPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return QRPayload{}, &models.ValidationError{
			Fields: map[string]string{"image": "QR code does not hold a ticket"},
			Err:    fmt.Errorf("%w: %v", models.ErrQRDecode, err),
		}
	}
	if payload.EntryCode == "" {
		return QRPayload{}, &models.ValidationError{
			Fields: map[string]string{"entry_code": "is required"},
			Err:    errors.New("QR payload has no entry code"),
		}
	}

	return payload, nil
}
