package classifier

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// ImageNet channel statistics; the tenant models are fine-tuned from
// ImageNet-pretrained backbones and expect the same normalization.
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocess decodes an image, resizes it to size x size and lays it out as
// a normalized NCHW float tensor: (px/255 - mean[c]) / std[c] per channel.
func Preprocess(data []byte, size int) ([]float32, error) {
	if len(data) == 0 {
		return nil, &PreprocessingError{Reason: "empty image payload"}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &PreprocessingError{Reason: "image decode failed", Err: err}
	}

	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	bounds := resized.Bounds()

	plane := size * size
	tensor := make([]float32, 3*plane)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// RGBA returns 16-bit channels.
			tensor[i] = (float32(r>>8)/255.0 - channelMean[0]) / channelStd[0]
			tensor[plane+i] = (float32(g>>8)/255.0 - channelMean[1]) / channelStd[1]
			tensor[2*plane+i] = (float32(b>>8)/255.0 - channelMean[2]) / channelStd[2]
			i++
		}
	}
	return tensor, nil
}
