package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
	"ledger-service/pkg/common"
)

const referenceAttempts = 5

type HelperService struct {
	DB     *gorm.DB
	Config *config.Config
	Log    *zap.Logger
}

func NewHelperService(db *gorm.DB, cfg *config.Config, log *zap.Logger) *HelperService {
	return &HelperService{DB: db, Config: cfg, Log: log}
}

// GenerateReference returns a transaction reference not yet present in the store.
func (s *HelperService) GenerateReference(tx *gorm.DB) (string, error) {
	for i := 0; i < referenceAttempts; i++ {
		ref := common.GenerateReference(s.Config.Ledger.ReferencePrefix, s.Config.Ledger.ReferenceLength)
		var count int64
		if err := tx.Model(&models.Transaction{}).Where("reference = ?", ref).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return ref, nil
		}
		s.Log.Warn("transaction reference collision", zap.String("reference", ref))
	}
	return "", fmt.Errorf("could not generate a unique reference after %d attempts", referenceAttempts)
}

// MarkApplied records reference against an entity. It returns false when the
// reference was already applied, in which case the caller must not mutate.
func (s *HelperService) MarkApplied(tx *gorm.DB, entityType string, entityID uint, reference string) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.AppliedReference{
		EntityType: entityType,
		EntityID:   entityID,
		Reference:  reference,
	})
	if res.Error != nil {
		return false, fmt.Errorf("mark %s %d applied: %w", entityType, entityID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AppliedReferences lists the references applied to one entity, oldest first.
func (s *HelperService) AppliedReferences(db *gorm.DB, entityType string, entityID uint) ([]string, error) {
	var refs []string
	err := db.Model(&models.AppliedReference{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id").
		Pluck("reference", &refs).Error
	return refs, err
}

// LogCallback persists an inbound callback or verification exchange for audit.
func (s *HelperService) LogCallback(ctx context.Context, provider, requestType, reference string, request, response interface{}, status int) {
	entry := models.CallbackLog{
		Provider:    provider,
		RequestType: requestType,
		Reference:   reference,
		Request:     stringify(request),
		Response:    stringify(response),
		Status:      status,
	}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		s.Log.Warn("callback log write failed", zap.String("reference", reference), zap.Error(err))
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case error:
		return t.Error()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
