package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	// Size is the square input edge the classifier was trained on.
	Size     = 224
	Channels = 3
)

var (
	Mean = [Channels]float32{0.485, 0.456, 0.406}
	Std  = [Channels]float32{0.229, 0.224, 0.225}
)

// Tensor is a dense float32 tensor in NCHW layout.
type Tensor struct {
	Shape [4]int64
	Data  []float32
}

// FromReader decodes and preprocesses an image stream.
func FromReader(r io.Reader) (*Tensor, error) {
	img, _, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

func FromBytes(data []byte) (*Tensor, error) {
	return FromReader(bytes.NewReader(data))
}

// FromFile preprocesses the image stored at path.
func FromFile(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()
	return FromReader(f)
}

// FromImage converts img to a normalized [1,3,224,224] tensor. Non-square
// images are stretched to the target size, never cropped.
func FromImage(img image.Image) (*Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	resized := resize.Resize(Size, Size, toRGB(img), resize.Bilinear)

	bounds := resized.Bounds()
	plane := Size * Size
	data := make([]float32, Channels*plane)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			i := y*Size + x
			data[i] = normalize(c.R, 0)
			data[plane+i] = normalize(c.G, 1)
			data[2*plane+i] = normalize(c.B, 2)
		}
	}
	return &Tensor{
		Shape: [4]int64{1, Channels, Size, Size},
		Data:  data,
	}, nil
}

func normalize(v uint8, channel int) float32 {
	return (float32(v)/255.0 - Mean[channel]) / Std[channel]
}

// toRGB drops the alpha channel: every pixel keeps its straight (not
// premultiplied) color and becomes fully opaque.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			s := n.Pix[n.PixOffset(b.Min.X, b.Min.Y+y):]
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < 4*b.Dx(); x += 4 {
				d[x], d[x+1], d[x+2], d[x+3] = s[x], s[x+1], s[x+2], 0xff
			}
		}
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}
