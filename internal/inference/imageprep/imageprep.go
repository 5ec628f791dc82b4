// Package imageprep turns decoded images into normalized float tensors for
// vision encoders.
package imageprep

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Normalization constants shared by CLIP and BLIP vision encoders.
var (
	CLIPMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	CLIPStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// TensorLen is the number of floats CHW writes for a size x size image.
func TensorLen(size int) int { return 3 * size * size }

// CHW resizes img to cover size x size, center crops it and writes the
// pixels into dst in channel-major order, scaled to [0,1] and normalized
// with mean and std.
func CHW(img image.Image, size int, mean, std [3]float32, dst []float32) error {
	if size <= 0 {
		return fmt.Errorf("invalid size %d", size)
	}
	if len(dst) < TensorLen(size) {
		return fmt.Errorf("tensor too small: have %d, need %d", len(dst), TensorLen(size))
	}

	src := imaging.Fill(img, size, size, imaging.Center, imaging.CatmullRom)
	plane := size * size
	for y := 0; y < size; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+3]
			i := y*size + x
			for c := 0; c < 3; c++ {
				dst[c*plane+i] = (float32(px[c])/255 - mean[c]) / std[c]
			}
		}
	}
	return nil
}
