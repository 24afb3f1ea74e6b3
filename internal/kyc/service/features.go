package service

import (
	"verity/internal/kyc/models"
)

// Feature vector keys as the risk service expects them.
const (
	FeatureDocConfidence    = "doc_confidence"
	FeatureFaceSimilarity   = "face_similarity"
	FeatureSanctionsHit     = "sanctions_hit"
	FeatureGeoVariance      = "geo_variance"
	FeatureDeviceTrustScore = "device_trust_score"
)

const defaultDeviceTrustScore = 0.7

// FeatureMeta carries request-sourced signals for the static features.
// Zero value means "use defaults".
type FeatureMeta struct {
	SanctionsHit     *float64
	GeoVariance      *float64
	DeviceTrustScore *float64
}

// BuildFeatures aggregates per-document OCR confidence and the face-match
// similarity into the vector consumed by risk scoring. Pure: no side effects,
// no network calls.
//
// Mean OCR confidence over documents without any confidence value is 0,
// never an error. A nil face match contributes similarity 0.
func BuildFeatures(docs []models.Document, face *models.FaceMatch, meta FeatureMeta) map[string]float64 {
	var sum float64
	var counted int
	for _, doc := range docs {
		if doc.OCRConfidence != nil {
			sum += *doc.OCRConfidence
			counted++
		}
	}
	var docConfidence float64
	if counted > 0 {
		docConfidence = sum / float64(counted)
	}

	var faceSimilarity float64
	if face != nil {
		faceSimilarity = face.Similarity
	}

	return map[string]float64{
		FeatureDocConfidence:    docConfidence,
		FeatureFaceSimilarity:   faceSimilarity,
		FeatureSanctionsHit:     orDefault(meta.SanctionsHit, 0),
		FeatureGeoVariance:      orDefault(meta.GeoVariance, 0),
		FeatureDeviceTrustScore: orDefault(meta.DeviceTrustScore, defaultDeviceTrustScore),
	}
}

func orDefault(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}
