package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const paddleFileTypeImage = 1

// PaddleEngine calls a PaddleOCR serving endpoint (PaddleX pipeline "/ocr").
type PaddleEngine struct {
	client *resty.Client
	url    string
}

func NewPaddleEngine(url string, timeout time.Duration) *PaddleEngine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	return &PaddleEngine{client: client, url: strings.TrimSpace(url)}
}

func (e *PaddleEngine) Name() string { return EnginePaddle }

type paddleRequest struct {
	File     string `json:"file"`
	FileType int    `json:"fileType"`
}

// Extract implements Engine.
func (e *PaddleEngine) Extract(ctx context.Context, image []byte, contentType string) (string, error) {
	res, err := e.ExtractScored(ctx, image, contentType)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ExtractScored implements ScoringEngine. Confidence is the mean rec_score
// over every recognised line of every page.
func (e *PaddleEngine) ExtractScored(ctx context.Context, image []byte, contentType string) (Result, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(paddleRequest{
			File:     base64.StdEncoding.EncodeToString(image),
			FileType: paddleFileTypeImage,
		}).
		Post(e.url)
	if err != nil {
		return Result{}, fmt.Errorf("paddle ocr request: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("paddle ocr status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	pages, err := parsePaddleOCRJSON(resp.Body())
	if err != nil {
		return Result{}, err
	}
	texts := make([]string, 0, len(pages))
	var scoreSum float64
	var scored int
	for _, page := range pages {
		if t := strings.TrimSpace(page.Text); t != "" {
			texts = append(texts, t)
		}
		scoreSum += page.AvgScore * float64(page.Scored)
		scored += page.Scored
	}
	text := normalizeText(strings.Join(texts, "\n\n"))
	if text == "" {
		return Result{}, ErrNoText
	}
	res := Result{Text: text}
	if scored > 0 {
		res.Confidence = scoreSum / float64(scored)
		res.Scored = true
	}
	return res, nil
}

type paddlePage struct {
	Text     string
	AvgScore float64
	// Scored counts the lines that carried a rec_score.
	Scored int
}

type paddlePruned struct {
	RecTexts  []string  `json:"rec_texts"`
	RecScores []float64 `json:"rec_scores"`
}

type paddleOCRResult struct {
	PrunedResult paddlePruned `json:"prunedResult"`
}

type paddleResponse struct {
	ErrorCode  int               `json:"errorCode"`
	ErrorMsg   string            `json:"errorMsg"`
	OCRResults []paddleOCRResult `json:"ocrResults"`
	Result     *struct {
		OCRResults []paddleOCRResult `json:"ocrResults"`
		paddlePruned
	} `json:"result"`
}

// parsePaddleOCRJSON accepts the PaddleX serving layout
// ({"result":{"ocrResults":[{"prunedResult":{...}}]}}), the bare ocrResults
// array, and the single-page {"result":{"rec_texts":[...]}} form.
func parsePaddleOCRJSON(raw []byte) ([]paddlePage, error) {
	var resp paddleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode paddle ocr response: %w", err)
	}
	if resp.ErrorCode != 0 {
		return nil, fmt.Errorf("paddle ocr error %d: %s", resp.ErrorCode, resp.ErrorMsg)
	}

	results := resp.OCRResults
	if len(results) == 0 && resp.Result != nil {
		results = resp.Result.OCRResults
	}
	if len(results) == 0 && resp.Result != nil && len(resp.Result.RecTexts) > 0 {
		results = []paddleOCRResult{{PrunedResult: resp.Result.paddlePruned}}
	}

	pages := make([]paddlePage, 0, len(results))
	for _, r := range results {
		pages = append(pages, paddlePage{
			Text:     strings.Join(r.PrunedResult.RecTexts, "\n"),
			AvgScore: average(r.PrunedResult.RecScores),
			Scored:   len(r.PrunedResult.RecScores),
		})
	}
	return pages, nil
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
