// Package mockup analyzes UI mockup images into structured PRD context: UI
// elements, extracted text, layout, inferred flows, and business logic.
package mockup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/prdforge/prdforge/internal/provider"
	"github.com/prdforge/prdforge/internal/store"
	"github.com/prdforge/prdforge/pkg/schema"
)

// Bucket is the fixed storage bucket mockup uploads are written to.
const Bucket = "mockups"

// Analyzer orchestrates upload, provider-backed analysis, and per-request
// consolidation of mockup images.
type Analyzer struct {
	Store     store.Store
	Storage   Storage
	Providers *provider.Registry
	MaxPrivacy provider.PrivacyLevel
}

// New constructs an Analyzer.
func New(st store.Store, storage Storage, providers *provider.Registry, maxPrivacy provider.PrivacyLevel) *Analyzer {
	return &Analyzer{Store: st, Storage: storage, Providers: providers, MaxPrivacy: maxPrivacy}
}

// Upload binds an image to requestID. The request MUST already exist;
// internal/store.CreateMockupUpload enforces the prerequisite along with the
// size/MIME-type/count invariants.
func (a *Analyzer) Upload(ctx context.Context, requestID, fileName, mimeType string, data []byte) (*schema.MockupUpload, error) {
	path, err := NewStoragePath(requestID, fileName)
	if err != nil {
		return nil, err
	}
	if err := a.Storage.Put(ctx, Bucket, path, data, mimeType); err != nil {
		return nil, fmt.Errorf("store mockup image: %w", err)
	}

	upload := &schema.MockupUpload{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		StoragePath: path,
		Bucket:      Bucket,
		FileName:    fileName,
		FileSize:    int64(len(data)),
		MimeType:    mimeType,
	}
	if err := a.Store.CreateMockupUpload(ctx, upload); err != nil {
		return nil, err
	}
	return upload, nil
}

// Analyze runs provider-backed analysis on an uploaded mockup and persists
// the structured result. It proceeds synchronously, per §4.4: the caller
// observes the analyzed upload once Analyze returns.
func (a *Analyzer) Analyze(ctx context.Context, uploadID, requestTitle, requestDescription string, existingAnalyses []string) (*schema.MockupUpload, error) {
	upload, err := a.Store.GetMockupUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	url, err := a.Storage.SignedURL(ctx, upload.Bucket, upload.StoragePath, DefaultSignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign mockup read url: %w", err)
	}

	resp, err := a.Providers.AnalyzeImage(ctx, "", a.MaxPrivacy, provider.AnalyzeImageRequest{
		ImageURL:           url,
		RequestTitle:       requestTitle,
		RequestDescription: requestDescription,
		ExistingAnalyses:   existingAnalyses,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze mockup %s: %w", uploadID, err)
	}

	result, err := parseAnalysis(resp.RawJSON)
	if err != nil {
		return nil, fmt.Errorf("parse analysis for mockup %s: %w", uploadID, err)
	}

	upload.AnalysisResult = result
	upload.AnalysisConfidence = &result.Confidence
	upload.IsProcessed = true
	if err := a.Store.UpdateMockupUpload(ctx, upload); err != nil {
		return nil, err
	}
	return upload, nil
}

func parseAnalysis(rawJSON string) (*schema.MockupAnalysisResult, error) {
	var result schema.MockupAnalysisResult
	if err := json.Unmarshal([]byte(rawJSON), &result); err != nil {
		return nil, err
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of [0,1] range", result.Confidence)
	}
	return &result, nil
}

// Consolidate fans in every analyzed mockup bound to requestID into one
// deduplicated view for PRD generation.
func (a *Analyzer) Consolidate(ctx context.Context, requestID string) (*schema.ConsolidatedMockupAnalysis, error) {
	uploads, err := a.Store.ListMockupUploads(ctx, requestID)
	if err != nil {
		return nil, err
	}

	seenTypes := make(map[schema.UIElementType]bool)
	out := &schema.ConsolidatedMockupAnalysis{}
	var confidenceSum float64
	var analyzed int

	for _, u := range uploads {
		if u.AnalysisResult == nil {
			continue
		}
		analyzed++
		confidenceSum += u.AnalysisResult.Confidence

		for _, el := range u.AnalysisResult.UIElements {
			if !seenTypes[el.Type] {
				seenTypes[el.Type] = true
				out.UIElementTypes = append(out.UIElementTypes, el.Type)
			}
		}
		out.UserFlows = append(out.UserFlows, u.AnalysisResult.UserFlows...)
		out.BusinessLogic = append(out.BusinessLogic, u.AnalysisResult.BusinessLogic...)
		out.ExtractedText = append(out.ExtractedText, u.AnalysisResult.ExtractedText...)
	}

	if analyzed > 0 {
		out.MeanConfidence = confidenceSum / float64(analyzed)
	}
	return out, nil
}
