package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"imagesearch/internal/inference/imageprep"
	"imagesearch/internal/vector"
)

// BLIPConfig describes an exported BLIP base captioning model split into a
// vision encoder and a text decoder.
type BLIPConfig struct {
	VisionPath    string
	DecoderPath   string
	TokenizerPath string

	ImageSize  int
	Patches    int // vision tokens including CLS
	HiddenSize int
	VocabSize  int
	MaxTokens  int
	BOS        int64
	EOS        int64
}

// DefaultBLIPConfig matches Salesforce/blip-image-captioning-base.
func DefaultBLIPConfig(dir string) BLIPConfig {
	return BLIPConfig{
		VisionPath:    dir + "/blip_vision.onnx",
		DecoderPath:   dir + "/blip_decoder.onnx",
		TokenizerPath: dir + "/blip_tokenizer.json",
		ImageSize:     384,
		Patches:       577,
		HiddenSize:    768,
		VocabSize:     30524,
		MaxTokens:     30,
		BOS:           30522,
		EOS:           102,
	}
}

// BLIP generates captions by greedy decoding. The decoder is causal, so it
// runs on a fixed max length buffer and reads logits at the last filled
// position.
type BLIP struct {
	cfg       BLIPConfig
	tokenizer *Tokenizer

	mu         sync.Mutex
	visionSess *ort.AdvancedSession
	pixels     *ort.Tensor[float32]
	hidden     *ort.Tensor[float32]

	decoderSess   *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	logits        *ort.Tensor[float32]

	once sync.Once
}

func NewBLIP(cfg BLIPConfig) (_ *BLIP, err error) {
	b := &BLIP{cfg: cfg}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if b.pixels, err = ort.NewTensor(ort.NewShape(1, 3, int64(cfg.ImageSize), int64(cfg.ImageSize)),
		make([]float32, imageprep.TensorLen(cfg.ImageSize))); err != nil {
		return nil, fmt.Errorf("create pixel tensor: %w", err)
	}
	if b.hidden, err = ort.NewEmptyTensor[float32](
		ort.NewShape(1, int64(cfg.Patches), int64(cfg.HiddenSize))); err != nil {
		return nil, fmt.Errorf("create hidden state tensor: %w", err)
	}
	if b.visionSess, err = ort.NewAdvancedSession(cfg.VisionPath,
		[]string{"pixel_values"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{b.pixels},
		[]ort.ArbitraryTensor{b.hidden},
		nil,
	); err != nil {
		return nil, fmt.Errorf("create vision session: %w", err)
	}

	if b.inputIDs, err = ort.NewEmptyTensor[int64](ort.NewShape(1, int64(cfg.MaxTokens))); err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	if b.attentionMask, err = ort.NewEmptyTensor[int64](ort.NewShape(1, int64(cfg.MaxTokens))); err != nil {
		return nil, fmt.Errorf("create attention tensor: %w", err)
	}
	if b.logits, err = ort.NewEmptyTensor[float32](
		ort.NewShape(1, int64(cfg.MaxTokens), int64(cfg.VocabSize))); err != nil {
		return nil, fmt.Errorf("create logits tensor: %w", err)
	}
	if b.decoderSess, err = ort.NewAdvancedSession(cfg.DecoderPath,
		[]string{"input_ids", "attention_mask", "encoder_hidden_states"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{b.inputIDs, b.attentionMask, b.hidden},
		[]ort.ArbitraryTensor{b.logits},
		nil,
	); err != nil {
		return nil, fmt.Errorf("create decoder session: %w", err)
	}

	if b.tokenizer, err = NewTokenizer(cfg.TokenizerPath); err != nil {
		return nil, err
	}
	return b, nil
}

// Caption returns the greedy decoded caption of img.
func (b *BLIP) Caption(ctx context.Context, img image.Image) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := imageprep.CHW(img, b.cfg.ImageSize, imageprep.CLIPMean, imageprep.CLIPStd, b.pixels.GetData()); err != nil {
		return "", fmt.Errorf("preprocess: %w", err)
	}
	if err := b.visionSess.Run(); err != nil {
		return "", fmt.Errorf("vision encoder: %w", err)
	}

	ids := b.inputIDs.GetData()
	mask := b.attentionMask.GetData()
	clear(ids)
	clear(mask)
	ids[0], mask[0] = b.cfg.BOS, 1

	logits := b.logits.GetData()
	n := 1
	for n < b.cfg.MaxTokens {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := b.decoderSess.Run(); err != nil {
			return "", fmt.Errorf("text decoder: %w", err)
		}
		row := logits[(n-1)*b.cfg.VocabSize : n*b.cfg.VocabSize]
		next := int64(vector.Argmax(row))
		if next < 0 || next == b.cfg.EOS {
			break
		}
		ids[n], mask[n] = next, 1
		n++
	}

	caption := strings.TrimSpace(b.tokenizer.Decode(ids[1:n]))
	if caption == "" {
		return "", errors.New("decoder produced no tokens")
	}
	return caption, nil
}

func (b *BLIP) Close() {
	b.once.Do(func() {
		destroy(b.visionSess, b.decoderSess)
		destroy(b.pixels, b.hidden, b.inputIDs, b.attentionMask, b.logits)
		if b.tokenizer != nil {
			b.tokenizer.Close()
		}
	})
}
