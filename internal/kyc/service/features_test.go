package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verity/internal/kyc/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestBuildFeatures(t *testing.T) {
	tests := []struct {
		name string
		docs []models.Document
		face *models.FaceMatch
		meta FeatureMeta
		want map[string]float64
	}{
		{
			name: "averages ocr confidence across documents",
			docs: []models.Document{
				{OCRConfidence: floatPtr(0.8)},
				{OCRConfidence: floatPtr(0.6)},
			},
			face: &models.FaceMatch{Similarity: 0.9},
			want: map[string]float64{
				FeatureDocConfidence:    0.7,
				FeatureFaceSimilarity:   0.9,
				FeatureSanctionsHit:     0,
				FeatureGeoVariance:      0,
				FeatureDeviceTrustScore: 0.7,
			},
		},
		{
			name: "ignores documents without confidence",
			docs: []models.Document{
				{OCRConfidence: floatPtr(0.9)},
				{OCRConfidence: nil},
			},
			face: &models.FaceMatch{Similarity: 0.5},
			want: map[string]float64{
				FeatureDocConfidence:    0.9,
				FeatureFaceSimilarity:   0.5,
				FeatureSanctionsHit:     0,
				FeatureGeoVariance:      0,
				FeatureDeviceTrustScore: 0.7,
			},
		},
		{
			name: "empty documents yield zero confidence",
			docs: nil,
			face: &models.FaceMatch{Similarity: 0.5},
			want: map[string]float64{
				FeatureDocConfidence:    0,
				FeatureFaceSimilarity:   0.5,
				FeatureSanctionsHit:     0,
				FeatureGeoVariance:      0,
				FeatureDeviceTrustScore: 0.7,
			},
		},
		{
			name: "nil face match yields zero similarity",
			docs: []models.Document{{OCRConfidence: floatPtr(1)}},
			face: nil,
			want: map[string]float64{
				FeatureDocConfidence:    1,
				FeatureFaceSimilarity:   0,
				FeatureSanctionsHit:     0,
				FeatureGeoVariance:      0,
				FeatureDeviceTrustScore: 0.7,
			},
		},
		{
			name: "meta overrides the static defaults",
			docs: nil,
			face: nil,
			meta: FeatureMeta{
				SanctionsHit:     floatPtr(1),
				GeoVariance:      floatPtr(0.3),
				DeviceTrustScore: floatPtr(0.2),
			},
			want: map[string]float64{
				FeatureDocConfidence:    0,
				FeatureFaceSimilarity:   0,
				FeatureSanctionsHit:     1,
				FeatureGeoVariance:      0.3,
				FeatureDeviceTrustScore: 0.2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFeatures(tt.docs, tt.face, tt.meta)
			assert.InDeltaMapValues(t, tt.want, got, 1e-9)
		})
	}
}
