package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"gorm.io/gorm"
)

// FilterService stores opaque per-user event filters.
type FilterService struct {
	db *gorm.DB
}

func NewFilterService(db *gorm.DB) *FilterService {
	return &FilterService{db: db}
}

// Create stores the compacted JSON body and returns its id.
func (s *FilterService) Create(ctx context.Context, userID string, body []byte) (string, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return "", apperr.BadJSON("Filter is not valid JSON.")
	}
	if len(compact.Bytes()) == 0 || compact.Bytes()[0] != '{' {
		return "", apperr.BadJSON("Filter must be a JSON object.")
	}

	filter := models.Filter{UserID: userID, Content: compact.String()}
	if err := s.db.WithContext(ctx).Create(&filter).Error; err != nil {
		return "", apperr.FromStorage(err, "")
	}
	return strconv.FormatUint(uint64(filter.ID), 10), nil
}

// Get returns the stored JSON of a filter owned by userID.
func (s *FilterService) Get(ctx context.Context, userID, filterID string) (json.RawMessage, error) {
	id, err := strconv.ParseUint(filterID, 10, 64)
	if err != nil {
		return nil, apperr.NotFound("No filter found.")
	}

	var filter models.Filter
	err = s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&filter).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "No filter found.")
	}
	return json.RawMessage(filter.Content), nil
}
