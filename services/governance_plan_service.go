package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/metavis/renderengine/models"
	"github.com/metavis/renderengine/pkg/database"
	"github.com/metavis/renderengine/pkg/logger"
)

type GovernancePlanService struct {
	db *gorm.DB
}

func NewGovernancePlanService() *GovernancePlanService {
	return &GovernancePlanService{
		db: database.GetDB(),
	}
}

func (s *GovernancePlanService) CreatePlan(req *models.GovernancePlanCreateRequest) (*models.GovernancePlan, error) {
	plan := &models.GovernancePlan{
		Name:            req.Name,
		MaxResolutionH:  req.MaxResolutionH,
		MaxDurationSecs: req.MaxDurationSecs,
		WatermarkPolicy: req.WatermarkPolicy,
		AllowedCodecs:   models.StringArray(req.AllowedCodecs),
	}
	if plan.WatermarkPolicy == "" {
		plan.WatermarkPolicy = "optional"
	}
	if plan.MaxResolutionH == 0 {
		plan.MaxResolutionH = 2160
	}

	if err := s.db.Create(plan).Error; err != nil {
		logger.Errorf("Failed to create governance plan: %v", err)
		return nil, errors.New("failed to create governance plan")
	}

	return plan, nil
}

func (s *GovernancePlanService) ListPlans() ([]models.GovernancePlan, error) {
	var plans []models.GovernancePlan
	if err := s.db.Find(&plans).Error; err != nil {
		return nil, errors.New("failed to list governance plans")
	}
	return plans, nil
}
