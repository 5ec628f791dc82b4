package inference

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"imagesearch/internal/inference/imageprep"
	"imagesearch/internal/vector"
)

const (
	clipImageSize = 224
	clipTextLen   = 77
)

// CLIP embeds images and text into the same space with two exported halves
// of a CLIP model. Each half owns fixed tensors and runs under its own lock.
type CLIP struct {
	dim       int
	tokenizer *Tokenizer

	imageMu     sync.Mutex
	imageSess   *ort.AdvancedSession
	pixels      *ort.Tensor[float32]
	imageEmbeds *ort.Tensor[float32]

	textMu        sync.Mutex
	textSess      *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	textEmbeds    *ort.Tensor[float32]

	once sync.Once
}

// NewCLIP loads the vision and text encoders. The ONNX environment must
// already be initialized.
func NewCLIP(visionPath, textPath, tokenizerPath string, dim int) (_ *CLIP, err error) {
	c := &CLIP{dim: dim}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if c.pixels, err = ort.NewTensor(ort.NewShape(1, 3, clipImageSize, clipImageSize),
		make([]float32, imageprep.TensorLen(clipImageSize))); err != nil {
		return nil, fmt.Errorf("create pixel tensor: %w", err)
	}
	if c.imageEmbeds, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dim))); err != nil {
		return nil, fmt.Errorf("create image output tensor: %w", err)
	}
	if c.imageSess, err = ort.NewAdvancedSession(visionPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{c.pixels},
		[]ort.ArbitraryTensor{c.imageEmbeds},
		nil,
	); err != nil {
		return nil, fmt.Errorf("create vision session: %w", err)
	}

	if c.inputIDs, err = ort.NewEmptyTensor[int64](ort.NewShape(1, clipTextLen)); err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	if c.attentionMask, err = ort.NewEmptyTensor[int64](ort.NewShape(1, clipTextLen)); err != nil {
		return nil, fmt.Errorf("create attention tensor: %w", err)
	}
	if c.textEmbeds, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dim))); err != nil {
		return nil, fmt.Errorf("create text output tensor: %w", err)
	}
	if c.textSess, err = ort.NewAdvancedSession(textPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{c.inputIDs, c.attentionMask},
		[]ort.ArbitraryTensor{c.textEmbeds},
		nil,
	); err != nil {
		return nil, fmt.Errorf("create text session: %w", err)
	}

	if c.tokenizer, err = NewTokenizer(tokenizerPath); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CLIP) Dimension() int { return c.dim }

// EmbedImage returns the unit length embedding of img.
func (c *CLIP) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.imageMu.Lock()
	defer c.imageMu.Unlock()

	if err := imageprep.CHW(img, clipImageSize, imageprep.CLIPMean, imageprep.CLIPStd, c.pixels.GetData()); err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	if err := c.imageSess.Run(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return normalized(c.imageEmbeds.GetData()), nil
}

// EmbedText returns the unit length embedding of text.
func (c *CLIP) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.textMu.Lock()
	defer c.textMu.Unlock()

	if n := c.tokenizer.Encode(text, c.inputIDs.GetData(), c.attentionMask.GetData()); n == 0 {
		return nil, fmt.Errorf("tokenize: no tokens for %q", text)
	}
	if err := c.textSess.Run(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return normalized(c.textEmbeds.GetData()), nil
}

func normalized(out []float32) []float32 {
	v := make([]float32, len(out))
	copy(v, out)
	vector.Normalize(v)
	return v
}

func (c *CLIP) Close() {
	c.once.Do(func() {
		destroy(c.imageSess, c.textSess)
		destroy(c.pixels, c.imageEmbeds, c.inputIDs, c.attentionMask, c.textEmbeds)
		if c.tokenizer != nil {
			c.tokenizer.Close()
		}
	})
}
