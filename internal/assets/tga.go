package assets

import (
	"image"
	"image/color"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// TGA image types.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

const tgaHeaderSize = 18

// DecodeTGA decodes an uncompressed or RLE true-color TGA with 24 or 32
// bits per pixel. Alpha is kept straight, so the result is NRGBA.
func DecodeTGA(data []byte) (*image.NRGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, xperr.Format(0, "TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := int(data[2])
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, xperr.Format(0, "color-mapped TGA not supported")
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, xperr.Format(0, "unsupported TGA type %d", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, xperr.Format(0, "unsupported TGA bit depth %d", bpp)
	}
	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, xperr.Format(0, "TGA data truncated")
	}

	d := &tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		bytes:       bpp / 8,
		topToBottom: descriptor&0x20 != 0,
	}
	if imageType == TGATypeUncompressed {
		if len(d.src) < width*height*d.bytes {
			return nil, xperr.Format(0, "TGA pixel data truncated")
		}
		for d.n < width*height {
			d.put(d.next())
		}
		return d.img, nil
	}
	if err := d.rle(); err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img           *image.NRGBA
	src           []byte
	pos, n        int
	width, height int
	bytes         int
	topToBottom   bool
}

// next reads one BGR(A) pixel.
func (d *tgaDecoder) next() color.NRGBA {
	p := d.src[d.pos : d.pos+d.bytes]
	d.pos += d.bytes
	c := color.NRGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if d.bytes == 4 {
		c.A = p[3]
	}
	return c
}

// put stores c at the next pixel in file order.
func (d *tgaDecoder) put(c color.NRGBA) {
	x, y := d.n%d.width, d.n/d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.img.SetNRGBA(x, y, c)
	d.n++
}

func (d *tgaDecoder) rle() error {
	total := d.width * d.height
	for d.n < total {
		if d.pos >= len(d.src) {
			return xperr.Format(0, "TGA RLE data truncated at pixel %d of %d", d.n, total)
		}
		packet := d.src[d.pos]
		d.pos++
		count := int(packet&0x7F) + 1
		if d.n+count > total {
			count = total - d.n
		}

		if packet&0x80 != 0 {
			// Run of one repeated pixel
			if d.pos+d.bytes > len(d.src) {
				return xperr.Format(0, "TGA RLE run truncated")
			}
			c := d.next()
			for i := 0; i < count; i++ {
				d.put(c)
			}
			continue
		}
		if d.pos+count*d.bytes > len(d.src) {
			return xperr.Format(0, "TGA RLE raw packet truncated")
		}
		for i := 0; i < count; i++ {
			d.put(d.next())
		}
	}
	return nil
}
