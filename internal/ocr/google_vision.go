package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// GoogleVisionEngine implements PageOCR and ImageOCR using the Google
// Cloud Vision document text detection API.
type GoogleVisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewGoogleVisionEngine creates a Vision engine with credentials from
// the environment. It expects either GOOGLE_APPLICATION_CREDENTIALS
// path or GOOGLE_CREDENTIALS JSON in env, falling back to application
// default credentials.
func NewGoogleVisionEngine(ctx context.Context) (*GoogleVisionEngine, error) {
	const op = "NewGoogleVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &GoogleVisionEngine{client: client}, nil
}

// NewGoogleVisionEngineWithClient creates an engine with an explicit client (for testing).
func NewGoogleVisionEngineWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionEngine {
	return &GoogleVisionEngine{client: client}
}

// RecognizePDFPage extracts text from one page of a PDF.
func (g *GoogleVisionEngine) RecognizePDFPage(ctx context.Context, pdfBytes []byte, pageNumber int) (string, error) {
	const op = "RecognizePDFPage"

	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return "", WrapOCRError(op, ErrInvalidPDF, "missing PDF header")
	}
	if pageNumber < 1 {
		return "", WrapOCRError(op, ErrPageOutOfRange, fmt.Sprintf("page %d", pageNumber))
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				Pages: []int32{int32(pageNumber)},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return "", WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}
	if len(fileResp.Responses) == 0 {
		return "", WrapOCRError(op, ErrEmptyResult, fmt.Sprintf("page %d", pageNumber))
	}

	pageResp := fileResp.Responses[0]
	if pageResp.Error != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("page %d: %s", pageNumber, pageResp.Error.Message))
	}
	if pageResp.FullTextAnnotation == nil {
		return "", nil
	}
	return pageResp.FullTextAnnotation.Text, nil
}

// RecognizeImage extracts text from a raster region. The whitelist
// constraint from opts is applied to the returned text.
func (g *GoogleVisionEngine) RecognizeImage(ctx context.Context, img image.Image, opts Options) (string, error) {
	const op = "RecognizeImage"

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", WrapOCRError(op, err, "failed to encode image")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: buf.Bytes()},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: opts.Languages},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return "", WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return "", WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}
	if imgResp.FullTextAnnotation == nil {
		return "", nil
	}
	return applyWhitelist(imgResp.FullTextAnnotation.Text, opts.Whitelist), nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionEngine) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
