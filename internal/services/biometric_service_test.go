package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ibrahim99575/authentication-system/internal/biometric"
	"github.com/Ibrahim99575/authentication-system/internal/models"
)

func newTestCipher(t *testing.T) *biometric.TemplateCipher {
	t.Helper()
	cipher, err := biometric.NewTemplateCipher("test-encryption-secret")
	require.NoError(t, err)
	return cipher
}

func newBiometricService(templates *MockTemplateRepository, users *MockUserRepository, cipher *biometric.TemplateCipher, extractors ...biometric.Extractor) *BiometricService {
	return NewBiometricService(
		templates,
		users,
		cipher,
		extractors,
		ThresholdConfig{FaceThreshold: 0.6, FingerprintThreshold: 0.75},
		NewTestLogger(),
		NewTestAuditLogger(),
	)
}

// encryptedTemplate builds an active stored template holding the given vector.
func encryptedTemplate(t *testing.T, cipher *biometric.TemplateCipher, id, userID, modality string, vector biometric.FeatureVector) models.BiometricTemplate {
	t.Helper()
	plaintext, err := vector.Marshal()
	require.NoError(t, err)
	ciphertext, nonce, err := cipher.Encrypt(plaintext)
	require.NoError(t, err)
	return *NewTestTemplate(id, userID, modality, ciphertext, nonce)
}

func b64Payload(content string) string {
	return base64.StdEncoding.EncodeToString([]byte(content))
}

func singleSampleExtractor(modality string, vector biometric.FeatureVector, quality float64) *MockExtractor {
	return &MockExtractor{
		ModalityName: modality,
		ExtractFunc: func(raw []byte) []biometric.Sample {
			return []biometric.Sample{{Vector: vector, Quality: quality}}
		},
	}
}

// ============================================================================
// Enroll Tests
// ============================================================================

func TestBiometricService_Enroll_Success(t *testing.T) {
	var created *models.BiometricTemplate
	templates := &MockTemplateRepository{
		CreateFunc: func(ctx context.Context, template *models.BiometricTemplate) error {
			template.ID = "tpl_1"
			created = template
			return nil
		},
	}
	var enrolledFlag *bool
	users := &MockUserRepository{
		SetEnrolledFunc: func(ctx context.Context, id string, enrolled bool) error {
			enrolledFlag = &enrolled
			return nil
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, biometric.FeatureVector{0.1, 0.5, 0.9}, 0.82)
	service := newBiometricService(templates, users, newTestCipher(t), extractor)

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:    "user123",
		Modality:  models.ModalityFace,
		Payload:   b64Payload("face-frame"),
		IPAddress: "192.168.1.1",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Biometric template enrolled successfully", result.Message)
	require.NotNil(t, result.QualityScore)
	assert.InDelta(t, 0.82, *result.QualityScore, 1e-9)
	require.NotNil(t, result.TemplateID)
	assert.Equal(t, "tpl_1", *result.TemplateID)

	require.NotNil(t, created)
	assert.Equal(t, "user123", created.UserID)
	assert.True(t, created.IsActive)
	assert.True(t, created.IsPrimary)
	assert.NotEmpty(t, created.TemplateHash)
	assert.NotEmpty(t, created.SourceHash)
	assert.Equal(t, models.TemplateVersion, created.TemplateVersion)
	require.NotNil(t, created.EnrollmentIP)
	assert.Equal(t, "192.168.1.1", *created.EnrollmentIP)

	require.NotNil(t, enrolledFlag)
	assert.True(t, *enrolledFlag)
}

func TestBiometricService_Enroll_UnsupportedModality(t *testing.T) {
	service := newBiometricService(&MockTemplateRepository{}, &MockUserRepository{}, newTestCipher(t))

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:   "user123",
		Modality: "iris",
		Payload:  b64Payload("sample"),
	})

	assert.ErrorIs(t, err, models.ErrBadRequest)
	assert.Nil(t, result)
}

func TestBiometricService_Enroll_MalformedPayload(t *testing.T) {
	extractor := &MockExtractor{ModalityName: models.ModalityFace}
	service := newBiometricService(&MockTemplateRepository{}, &MockUserRepository{}, newTestCipher(t), extractor)

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  "not!!!base64",
	})

	assert.ErrorIs(t, err, biometric.ErrMalformedPayload)
	assert.Nil(t, result)
}

func TestBiometricService_Enroll_NoUsableSignal(t *testing.T) {
	createCalled := false
	templates := &MockTemplateRepository{
		CreateFunc: func(ctx context.Context, template *models.BiometricTemplate) error {
			createCalled = true
			return nil
		},
	}
	extractor := &MockExtractor{
		ModalityName: models.ModalityFace,
		ExtractFunc:  func(raw []byte) []biometric.Sample { return nil },
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t), extractor)

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("blank-frame"),
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No valid face encoding could be extracted", result.Message)
	assert.False(t, result.FaceDetected)
	assert.False(t, createCalled)
}

func TestBiometricService_Enroll_NoUsableSignal_FingerprintMessage(t *testing.T) {
	extractor := &MockExtractor{
		ModalityName: models.ModalityFingerprint,
		ExtractFunc:  func(raw []byte) []biometric.Sample { return nil },
	}
	service := newBiometricService(&MockTemplateRepository{}, &MockUserRepository{}, newTestCipher(t), extractor)

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:   "user123",
		Modality: models.ModalityFingerprint,
		Payload:  b64Payload("noise"),
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Failed to extract fingerprint features", result.Message)
}

func TestBiometricService_Enroll_PicksBestQualitySample(t *testing.T) {
	var created *models.BiometricTemplate
	templates := &MockTemplateRepository{
		CreateFunc: func(ctx context.Context, template *models.BiometricTemplate) error {
			template.ID = "tpl_1"
			created = template
			return nil
		},
	}
	extractor := &MockExtractor{
		ModalityName: models.ModalityFace,
		ExtractFunc: func(raw []byte) []biometric.Sample {
			return []biometric.Sample{
				{Vector: biometric.FeatureVector{1, 0}, Quality: 0.4},
				{Vector: biometric.FeatureVector{0, 1}, Quality: 0.9},
				{Vector: biometric.FeatureVector{1, 1}, Quality: 0.7},
			}
		},
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t), extractor)

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("multi-frame"),
	})

	require.NoError(t, err)
	require.NotNil(t, result.QualityScore)
	assert.InDelta(t, 0.9, *result.QualityScore, 1e-9)
	assert.InDelta(t, 0.9, created.QualityScore, 1e-9)
}

func TestBiometricService_Enroll_QualityTieKeepsFirstSample(t *testing.T) {
	first := biometric.FeatureVector{1, 0, 0}
	second := biometric.FeatureVector{0, 1, 0}
	firstBytes, err := first.Marshal()
	require.NoError(t, err)
	wantHash := biometric.PayloadHash(firstBytes)

	var created *models.BiometricTemplate
	templates := &MockTemplateRepository{
		CreateFunc: func(ctx context.Context, template *models.BiometricTemplate) error {
			template.ID = "tpl_1"
			created = template
			return nil
		},
	}
	extractor := &MockExtractor{
		ModalityName: models.ModalityFace,
		ExtractFunc: func(raw []byte) []biometric.Sample {
			return []biometric.Sample{
				{Vector: first, Quality: 0.8},
				{Vector: second, Quality: 0.8},
			}
		},
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t), extractor)

	_, err = service.Enroll(context.Background(), EnrollParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("two-frames"),
	})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, wantHash, created.TemplateHash)
}

func TestBiometricService_Enroll_ReplaceExistingRetiresPriorTemplates(t *testing.T) {
	var calls []string
	templates := &MockTemplateRepository{
		DeactivateByModalityFunc: func(ctx context.Context, userID, modality string) (int64, error) {
			calls = append(calls, "deactivate")
			assert.Equal(t, "user123", userID)
			assert.Equal(t, models.ModalityFace, modality)
			return 2, nil
		},
		CreateFunc: func(ctx context.Context, template *models.BiometricTemplate) error {
			calls = append(calls, "create")
			template.ID = "tpl_new"
			return nil
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, biometric.FeatureVector{1, 2, 3}, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t), extractor)

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:          "user123",
		Modality:        models.ModalityFace,
		Payload:         b64Payload("face-frame"),
		ReplaceExisting: true,
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"deactivate", "create"}, calls)
}

func TestBiometricService_Enroll_EnrollmentFlagFailure(t *testing.T) {
	templates := &MockTemplateRepository{}
	users := &MockUserRepository{
		SetEnrolledFunc: func(ctx context.Context, id string, enrolled bool) error {
			return errors.New("db down")
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, biometric.FeatureVector{1, 2, 3}, 0.8)
	service := newBiometricService(templates, users, newTestCipher(t), extractor)

	result, err := service.Enroll(context.Background(), EnrollParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("face-frame"),
	})

	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Nil(t, result)
}

// ============================================================================
// Verify Tests
// ============================================================================

func TestBiometricService_Verify_MatchAboveThreshold(t *testing.T) {
	cipher := newTestCipher(t)
	vector := biometric.FeatureVector{0.2, 0.4, 0.6, 0.8}
	stored := encryptedTemplate(t, cipher, "tpl_1", "user123", models.ModalityFace, vector)

	usedID := ""
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{stored}, nil
		},
		RecordUseFunc: func(ctx context.Context, templateID string) error {
			usedID = templateID
			return nil
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, vector, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("probe"),
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Verification successful", result.Message)
	require.NotNil(t, result.SimilarityScore)
	assert.InDelta(t, 1.0, *result.SimilarityScore, 1e-9)
	require.NotNil(t, result.ThresholdUsed)
	assert.InDelta(t, 0.6, *result.ThresholdUsed, 1e-9)
	require.NotNil(t, result.TemplateID)
	assert.Equal(t, "tpl_1", *result.TemplateID)
	assert.Equal(t, "tpl_1", usedID)
}

func TestBiometricService_Verify_BelowThresholdFails(t *testing.T) {
	cipher := newTestCipher(t)
	stored := encryptedTemplate(t, cipher, "tpl_1", "user123", models.ModalityFace, biometric.FeatureVector{1, 0})

	recordUseCalled := false
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{stored}, nil
		},
		RecordUseFunc: func(ctx context.Context, templateID string) error {
			recordUseCalled = true
			return nil
		},
	}
	// Orthogonal probe scores zero against the stored template.
	extractor := singleSampleExtractor(models.ModalityFace, biometric.FeatureVector{0, 1}, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("probe"),
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Verification failed", result.Message)
	require.NotNil(t, result.SimilarityScore)
	assert.InDelta(t, 0.0, *result.SimilarityScore, 1e-9)
	assert.Nil(t, result.TemplateID)
	assert.False(t, recordUseCalled)
}

func TestBiometricService_Verify_NoTemplates(t *testing.T) {
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{}, nil
		},
	}
	extractor := &MockExtractor{ModalityName: models.ModalityFingerprint}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t), extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFingerprint,
		Payload:  b64Payload("probe"),
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No biometric templates found for user", result.Message)
	require.NotNil(t, result.ThresholdUsed)
	assert.InDelta(t, 0.75, *result.ThresholdUsed, 1e-9)
}

func TestBiometricService_Verify_NoTemplatesReportedBeforePayloadDecoding(t *testing.T) {
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{}, nil
		},
	}
	extractor := &MockExtractor{ModalityName: models.ModalityFace}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t), extractor)

	// The payload is garbage, but with nothing enrolled the user gets the
	// no-templates outcome, not a payload error.
	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  "not!!!base64",
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No biometric templates found for user", result.Message)
}

func TestBiometricService_Verify_MalformedPayload(t *testing.T) {
	cipher := newTestCipher(t)
	stored := encryptedTemplate(t, cipher, "tpl_1", "user123", models.ModalityFace, biometric.FeatureVector{1, 0})
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{stored}, nil
		},
	}
	extractor := &MockExtractor{ModalityName: models.ModalityFace}
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  "not!!!base64",
	})

	assert.ErrorIs(t, err, biometric.ErrMalformedPayload)
	assert.Nil(t, result)
}

func TestBiometricService_Verify_ThresholdOverride(t *testing.T) {
	cipher := newTestCipher(t)
	stored := encryptedTemplate(t, cipher, "tpl_1", "user123", models.ModalityFace, biometric.FeatureVector{1, 0})
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{stored}, nil
		},
	}
	// cos([1,0], [1,1]) is about 0.707: above the 0.6 default, below 0.9.
	extractor := singleSampleExtractor(models.ModalityFace, biometric.FeatureVector{1, 1}, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	defaultResult, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("probe"),
	})
	require.NoError(t, err)
	assert.True(t, defaultResult.Success)

	strict := 0.9
	strictResult, err := service.Verify(context.Background(), VerifyParams{
		UserID:    "user123",
		Modality:  models.ModalityFace,
		Payload:   b64Payload("probe"),
		Threshold: &strict,
	})
	require.NoError(t, err)
	assert.False(t, strictResult.Success)
	require.NotNil(t, strictResult.ThresholdUsed)
	assert.InDelta(t, 0.9, *strictResult.ThresholdUsed, 1e-9)
}

func TestBiometricService_Verify_BestOfMultipleTemplates(t *testing.T) {
	cipher := newTestCipher(t)
	probe := biometric.FeatureVector{0, 0, 1}
	far := encryptedTemplate(t, cipher, "tpl_far", "user123", models.ModalityFace, biometric.FeatureVector{1, 0, 0})
	near := encryptedTemplate(t, cipher, "tpl_near", "user123", models.ModalityFace, probe)

	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{far, near}, nil
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, probe, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("probe"),
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.TemplateID)
	assert.Equal(t, "tpl_near", *result.TemplateID)
}

func TestBiometricService_Verify_ScoreTieKeepsEarliestTemplate(t *testing.T) {
	cipher := newTestCipher(t)
	vector := biometric.FeatureVector{0.5, 0.5}
	first := encryptedTemplate(t, cipher, "tpl_first", "user123", models.ModalityFace, vector)
	second := encryptedTemplate(t, cipher, "tpl_second", "user123", models.ModalityFace, vector)

	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{first, second}, nil
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, vector, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("probe"),
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.TemplateID)
	assert.Equal(t, "tpl_first", *result.TemplateID)
}

func TestBiometricService_Verify_UndecryptableTemplateSkipped(t *testing.T) {
	cipher := newTestCipher(t)
	vector := biometric.FeatureVector{0.3, 0.6, 0.9}
	corrupt := *NewTestTemplate("tpl_corrupt", "user123", models.ModalityFace, []byte("garbage"), []byte("bad-nonce"))
	valid := encryptedTemplate(t, cipher, "tpl_valid", "user123", models.ModalityFace, vector)

	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{corrupt, valid}, nil
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, vector, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("probe"),
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.TemplateID)
	assert.Equal(t, "tpl_valid", *result.TemplateID)
}

func TestBiometricService_Verify_NoUsableSignal(t *testing.T) {
	cipher := newTestCipher(t)
	stored := encryptedTemplate(t, cipher, "tpl_1", "user123", models.ModalityFace, biometric.FeatureVector{1, 0})
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{stored}, nil
		},
	}
	extractor := &MockExtractor{
		ModalityName: models.ModalityFace,
		ExtractFunc:  func(raw []byte) []biometric.Sample { return nil },
	}
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("blank"),
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "No valid face encoding could be extracted", result.Message)
	assert.False(t, result.FaceDetected)
}

func TestBiometricService_Verify_RecordUseFailureDoesNotReject(t *testing.T) {
	cipher := newTestCipher(t)
	vector := biometric.FeatureVector{1, 2, 3}
	stored := encryptedTemplate(t, cipher, "tpl_1", "user123", models.ModalityFace, vector)
	templates := &MockTemplateRepository{
		GetActiveByUserAndModalityFunc: func(ctx context.Context, userID, modality string) ([]models.BiometricTemplate, error) {
			return []models.BiometricTemplate{stored}, nil
		},
		RecordUseFunc: func(ctx context.Context, templateID string) error {
			return errors.New("db down")
		},
	}
	extractor := singleSampleExtractor(models.ModalityFace, vector, 0.8)
	service := newBiometricService(templates, &MockUserRepository{}, cipher, extractor)

	result, err := service.Verify(context.Background(), VerifyParams{
		UserID:   "user123",
		Modality: models.ModalityFace,
		Payload:  b64Payload("probe"),
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
}

// ============================================================================
// Status / ListTemplates / DeleteTemplate / SetPrimary Tests
// ============================================================================

func TestBiometricService_Status_PassesThrough(t *testing.T) {
	want := &models.BiometricStatus{IsEnrolled: true, TotalTemplates: 3, ActiveTemplates: 2}
	templates := &MockTemplateRepository{
		GetStatusFunc: func(ctx context.Context, userID string) (*models.BiometricStatus, error) {
			assert.Equal(t, "user123", userID)
			return want, nil
		},
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t))

	status, err := service.Status(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, want, status)
}

func TestBiometricService_ListTemplates_IncludesInactive(t *testing.T) {
	summaries := []models.TemplateSummary{
		{ID: "tpl_2", Modality: models.ModalityFace, IsActive: true},
		{ID: "tpl_1", Modality: models.ModalityFace, IsActive: false},
	}
	templates := &MockTemplateRepository{
		ListSummariesFunc: func(ctx context.Context, userID string) ([]models.TemplateSummary, error) {
			return summaries, nil
		},
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t))

	got, err := service.ListTemplates(context.Background(), "user123")

	require.NoError(t, err)
	assert.Equal(t, summaries, got)
}

func TestBiometricService_DeleteTemplate_ClearsFlagWhenLastRemoved(t *testing.T) {
	templates := &MockTemplateRepository{
		CountActiveFunc: func(ctx context.Context, userID string) (int, error) {
			return 0, nil
		},
	}
	var enrolledFlag *bool
	users := &MockUserRepository{
		SetEnrolledFunc: func(ctx context.Context, id string, enrolled bool) error {
			enrolledFlag = &enrolled
			return nil
		},
	}
	service := newBiometricService(templates, users, newTestCipher(t))

	err := service.DeleteTemplate(context.Background(), "user123", "tpl_1", "192.168.1.1")

	require.NoError(t, err)
	require.NotNil(t, enrolledFlag)
	assert.False(t, *enrolledFlag)
}

func TestBiometricService_DeleteTemplate_KeepsFlagWhenOthersRemain(t *testing.T) {
	templates := &MockTemplateRepository{
		CountActiveFunc: func(ctx context.Context, userID string) (int, error) {
			return 2, nil
		},
	}
	var enrolledFlag *bool
	users := &MockUserRepository{
		SetEnrolledFunc: func(ctx context.Context, id string, enrolled bool) error {
			enrolledFlag = &enrolled
			return nil
		},
	}
	service := newBiometricService(templates, users, newTestCipher(t))

	err := service.DeleteTemplate(context.Background(), "user123", "tpl_1", "192.168.1.1")

	require.NoError(t, err)
	require.NotNil(t, enrolledFlag)
	assert.True(t, *enrolledFlag)
}

func TestBiometricService_DeleteTemplate_NotFound(t *testing.T) {
	templates := &MockTemplateRepository{
		DeleteOwnedFunc: func(ctx context.Context, templateID, userID string) error {
			return models.ErrNotFound
		},
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t))

	err := service.DeleteTemplate(context.Background(), "user123", "tpl_missing", "192.168.1.1")

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBiometricService_SetPrimary_Success(t *testing.T) {
	promoted := ""
	templates := &MockTemplateRepository{
		SetPrimaryFunc: func(ctx context.Context, templateID, userID string) error {
			promoted = templateID
			return nil
		},
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t))

	err := service.SetPrimary(context.Background(), "user123", "tpl_2", "192.168.1.1")

	require.NoError(t, err)
	assert.Equal(t, "tpl_2", promoted)
}

func TestBiometricService_SetPrimary_InactiveTemplateConflict(t *testing.T) {
	templates := &MockTemplateRepository{
		SetPrimaryFunc: func(ctx context.Context, templateID, userID string) error {
			return models.ErrBadRequest
		},
	}
	service := newBiometricService(templates, &MockUserRepository{}, newTestCipher(t))

	err := service.SetPrimary(context.Background(), "user123", "tpl_old", "192.168.1.1")

	assert.ErrorIs(t, err, models.ErrConflict)
}
