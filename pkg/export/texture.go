package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // decode GIF textures
	_ "image/jpeg" // decode JPEG textures
	"image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"  // decode BMP textures
	_ "golang.org/x/image/tiff" // decode TIFF textures
	_ "golang.org/x/image/webp" // decode WebP textures

	"github.com/Faultbox/scenebake/pkg/scene"
)

// ErrUnsupportedTexture is reported (as a warning) when a texture cannot be
// embedded. The material then keeps its solid base color.
var ErrUnsupportedTexture = errors.New("unsupported texture")

// EncodedImage is an image in a format every writer can embed or copy.
type EncodedImage struct {
	Data     []byte
	MIMEType string // image/png or image/jpeg
	Ext      string // file extension without dot
}

// TextureResult is the outcome of EmbedTexture. When OK is false, Image is
// empty, Err says why, and the caller falls back to the material's base color.
type TextureResult struct {
	Image EncodedImage
	OK    bool
	Err   error
}

// EmbedTexture converts a texture into PNG or JPEG data.
//
//	image.Image        -> PNG
//	PNG/JPEG bytes     -> passed through
//	BMP/TIFF/WebP/GIF  -> decoded and re-encoded as PNG
//	anything else      -> not OK, ErrUnsupportedTexture
func EmbedTexture(tex scene.Texture) TextureResult {
	if tex.Image != nil {
		return encodePNG(tex.Image)
	}
	if len(tex.Data) == 0 {
		return fallback(errors.New("no image data"))
	}

	kind, err := filetype.Match(tex.Data)
	if err != nil || kind == filetype.Unknown {
		return fallback(errors.New("unrecognized data"))
	}

	switch kind.MIME.Value {
	case "image/png":
		return TextureResult{Image: EncodedImage{Data: tex.Data, MIMEType: "image/png", Ext: "png"}, OK: true}
	case "image/jpeg":
		return TextureResult{Image: EncodedImage{Data: tex.Data, MIMEType: "image/jpeg", Ext: "jpg"}, OK: true}
	}

	if !filetype.IsImage(tex.Data) {
		return fallback(fmt.Errorf("%s is not an image", kind.MIME.Value))
	}
	img, _, err := image.Decode(bytes.NewReader(tex.Data))
	if err != nil {
		return fallback(fmt.Errorf("decoding %s: %w", kind.MIME.Value, err))
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) TextureResult {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fallback(fmt.Errorf("encoding png: %w", err))
	}
	return TextureResult{Image: EncodedImage{Data: buf.Bytes(), MIMEType: "image/png", Ext: "png"}, OK: true}
}

func fallback(err error) TextureResult {
	return TextureResult{Err: fmt.Errorf("%w: %w", ErrUnsupportedTexture, err)}
}
