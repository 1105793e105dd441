// Package logo turns stored startup logos into URLs a browser can display directly.
package logo

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/disintegration/imaging"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("logo")

// DefaultMaxWidth is the thumbnail width used when the caller passes zero.
const DefaultMaxWidth = 280

// DataURL renders logo as a data: URL. Images wider than maxWidth are scaled down
// preserving the aspect ratio. Blobs that cannot be decoded are embedded unchanged.
// A logo without inline data yields its stored image URL.
func DataURL(logo *data.Logo, maxWidth int) string {
	if logo == nil {
		return ""
	}
	if len(logo.Data) == 0 {
		return logo.ImageURL
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}

	mime := logo.ImageType
	if mime == "" {
		mime = "image/png"
	}
	payload := logo.Data

	if thumb, ok := thumbnail(logo.Data, mime, maxWidth); ok {
		payload = thumb
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload)
}

func thumbnail(blob []byte, mime string, maxWidth int) ([]byte, bool) {
	format, ok := formatOf(mime)
	if !ok {
		return nil, false
	}
	img, err := imaging.Decode(bytes.NewReader(blob))
	if err != nil {
		log.Debugf("logo not decodable as %s, embedding as is: %v", mime, err)
		return nil, false
	}
	if img.Bounds().Dx() <= maxWidth {
		return nil, false
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Resize(img, maxWidth, 0, imaging.Lanczos), format); err != nil {
		log.Warningf("encoding thumbnail: %v", err)
		return nil, false
	}
	return buf.Bytes(), true
}

func formatOf(mime string) (imaging.Format, bool) {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, true
	case "image/png":
		return imaging.PNG, true
	case "image/gif":
		return imaging.GIF, true
	case "image/bmp":
		return imaging.BMP, true
	case "image/tiff":
		return imaging.TIFF, true
	}
	return 0, false
}
