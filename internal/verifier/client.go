package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"financing_api/internal/errs"
	"financing_api/types"
)

// Client wraps the third-party biometric verification API. One call matches
// a government ID photo against a live selfie and extracts identity fields.
type Client interface {
	Verify(ctx context.Context, nationalID string, idImage, faceImage io.Reader) (*types.VerificationResult, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) Client {
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type verifyResponse struct {
	VerificationPassed bool `json:"verification_passed"`
	DocumentInfo       *struct {
		Cedula          string `json:"cedula"`
		NombreCompleto  string `json:"nombre_completo"`
		FechaNacimiento string `json:"fecha_nacimiento"`
	} `json:"document_info"`
	VerificationDetails *struct {
		Error string `json:"error"`
	} `json:"verification_details"`
}

func (c *httpClient) Verify(ctx context.Context, nationalID string, idImage, faceImage io.Reader) (*types.VerificationResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("cedula", nationalID); err != nil {
		return nil, fmt.Errorf("failed to write cedula field: %w", err)
	}
	if err := writer.WriteField("api_key", c.apiKey); err != nil {
		return nil, fmt.Errorf("failed to write api_key field: %w", err)
	}

	idPart, err := writer.CreateFormFile("id_image", "id_image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create id_image part: %w", err)
	}
	if _, err := io.Copy(idPart, idImage); err != nil {
		return nil, fmt.Errorf("failed to copy id image: %w", err)
	}

	facePart, err := writer.CreateFormFile("face_image", "face_image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create face_image part: %w", err)
	}
	if _, err := io.Copy(facePart, faceImage); err != nil {
		return nil, fmt.Errorf("failed to copy face image: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("verifier request failed", zap.Error(err), zap.String("national_id", nationalID))
		return nil, errs.ExternalService("biometric verifier", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("verifier returned non-2xx status",
			zap.Int("status", resp.StatusCode),
			zap.String("national_id", nationalID),
			zap.ByteString("body", detail))
		return nil, errs.ExternalService("biometric verifier",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail))
	}

	var parsed verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Error("failed to decode verifier response", zap.Error(err), zap.String("national_id", nationalID))
		return nil, errs.ExternalService("biometric verifier",
			fmt.Errorf("malformed response body: %w", err))
	}

	result := &types.VerificationResult{Passed: parsed.VerificationPassed}
	if parsed.DocumentInfo != nil {
		result.Identity = &types.VerifiedIdentity{
			FullName:   parsed.DocumentInfo.NombreCompleto,
			NationalID: parsed.DocumentInfo.Cedula,
			BirthDate:  parsed.DocumentInfo.FechaNacimiento,
		}
	}
	if parsed.VerificationDetails != nil {
		result.RawDetail = parsed.VerificationDetails.Error
	}

	c.logger.Info("verifier call completed",
		zap.String("national_id", nationalID),
		zap.Bool("passed", result.Passed))
	return result, nil
}
