package frame

import (
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// jpegQuality is the quality used for .jpg/.jpeg output.
const jpegQuality = 95

// Load decodes the image file at path into a 4-channel frame.
// PNG, JPEG, GIF, BMP, TIFF and WebP are recognized by content.
func Load(path string) (*Buffer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("frame: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// LoadPair loads the reference and input frames and checks that they share
// the same geometry.
func LoadPair(refPath, inPath string) (ref, in *Buffer, err error) {
	ref, err = Load(refPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reference %s: %w", refPath, err)
	}
	in, err = Load(inPath)
	if err != nil {
		return nil, nil, fmt.Errorf("input %s: %w", inPath, err)
	}
	if err := CheckPair(ref, in); err != nil {
		return nil, nil, err
	}
	return ref, in, nil
}

// Decode decodes an image from r, auto-detecting the format.
func Decode(r io.Reader) (*Buffer, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("frame: decode: %w", err)
	}
	return FromStdImage(img)
}

// FromStdImage converts img into a 4-channel frame.
func FromStdImage(img image.Image) (*Buffer, error) {
	bounds := img.Bounds()

	// Fast path: an NRGBA image anchored at the origin is adopted as is.
	// Decoders return fresh images, so sharing the pixels is safe.
	if nrgba, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) {
		if buf, err := FromRaw(nrgba.Pix, bounds.Dx(), bounds.Dy(), FormatRGBA8, nrgba.Stride); err == nil {
			return buf, nil
		}
	}

	buf, err := NewFrame(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := range buf.height {
			src := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(buf.RowBytes(y), nrgba.Pix[src:src+buf.width*4])
		}
		return buf, nil
	}

	dst := &image.NRGBA{
		Pix:    buf.data,
		Stride: buf.stride,
		Rect:   image.Rect(0, 0, buf.width, buf.height),
	}
	draw.Draw(dst, dst.Rect, img, bounds.Min, draw.Src)
	return buf, nil
}

// ToStdImage returns an image.Image view of b. RGB8 buffers are expanded to
// opaque NRGBA so encoders emit them without an alpha channel.
func (b *Buffer) ToStdImage() image.Image {
	rect := image.Rect(0, 0, b.width, b.height)
	out := image.NewNRGBA(rect)

	switch b.format {
	case FormatRGBA8:
		for y := range b.height {
			copy(out.Pix[y*out.Stride:], b.RowBytes(y))
		}
	case FormatRGB8:
		for y := range b.height {
			row := b.RowBytes(y)
			dst := out.Pix[y*out.Stride:]
			for x := range b.width {
				dst[x*4+0] = row[x*3+0]
				dst[x*4+1] = row[x*3+1]
				dst[x*4+2] = row[x*3+2]
				dst[x*4+3] = 0xff
			}
		}
	}
	return out
}

// Save encodes b to path. The encoder follows the file extension:
// .jpg/.jpeg, .bmp and .tif/.tiff select those formats, anything else
// (including no extension) is written as PNG. On an encoding failure the
// partial file is removed.
func Save(path string, b *Buffer) error {
	path = filepath.Clean(path)
	encode := encoderFor(strings.ToLower(filepath.Ext(path)))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("frame: create file: %w", err)
	}
	if err := encode(f, b.ToStdImage()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("frame: close file: %w", err)
	}
	return nil
}

type encodeFunc func(io.Writer, image.Image) error

func encoderFor(ext string) encodeFunc {
	switch ext {
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			if err := jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
				return fmt.Errorf("frame: encode JPEG: %w", err)
			}
			return nil
		}
	case ".bmp":
		return func(w io.Writer, img image.Image) error {
			if err := bmp.Encode(w, img); err != nil {
				return fmt.Errorf("frame: encode BMP: %w", err)
			}
			return nil
		}
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			if err := tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
				return fmt.Errorf("frame: encode TIFF: %w", err)
			}
			return nil
		}
	default:
		return func(w io.Writer, img image.Image) error {
			if err := png.Encode(w, img); err != nil {
				return fmt.Errorf("frame: encode PNG: %w", err)
			}
			return nil
		}
	}
}

// Debug copy file names written by SaveDebugCopies.
const (
	DebugReferenceName = "ref_image.png"
	DebugInputName     = "input_image.png"
)

// SaveDebugCopies re-encodes the reference and input frames as PNG files
// with fixed names inside dir.
func SaveDebugCopies(dir string, ref, in *Buffer) error {
	if err := Save(filepath.Join(dir, DebugReferenceName), ref); err != nil {
		return fmt.Errorf("reference debug copy: %w", err)
	}
	if err := Save(filepath.Join(dir, DebugInputName), in); err != nil {
		return fmt.Errorf("input debug copy: %w", err)
	}
	return nil
}
