package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID          uuid.UUID `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Country     string    `gorm:"size:100" json:"country"`
	Timezone    string    `gorm:"size:50" json:"timezone"`
	// Sessions dated on or before this date can no longer be changed.
	ReconciliationLockDate time.Time `json:"reconciliation_lock_date"`
	IsActive               *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Country     string `json:"country"`
	Timezone    string `json:"timezone"`
}

func (business *Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+fmt.Sprint(business.ID), business, 0)
}

func (business *Business) RemoveRedis() error {
	return config.RemoveRedisKey("Business:" + fmt.Sprint(business.ID))
}

func (input *NewBusiness) validate(ctx context.Context, id string) error {
	// name
	if err := utils.ValidateUnique[Business](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	// email
	if err := utils.ValidateUnique[Business](ctx, "", "email", input.Email, id); err != nil {
		return err
	}
	// phone
	if input.Phone != "" {
		if err := utils.ValidateUnique[Business](ctx, "", "phone", input.Phone, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	// only admin have access
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	db := config.GetDB()

	timezone := input.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	business := Business{
		ID:          uuid.New(),
		Name:        input.Name,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Country:     input.Country,
		Timezone:    timezone,
		IsActive:    utils.NewTrue(),
	}

	if err := db.WithContext(ctx).Create(&business).Error; err != nil {
		return nil, err
	}
	if err := business.StoreRedis(); err != nil {
		return nil, err
	}
	return &business, nil
}

// read business, redis or db, cache result
func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {

	var business Business
	exists, err := config.GetRedisObject("Business:"+businessId, &business)
	if err != nil {
		return nil, err
	}
	if exists {
		return &business, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Business{}).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := business.StoreRedis(); err != nil {
		return nil, err
	}
	return &business, nil
}

// read the requester's own business from context
func GetBusiness(ctx context.Context) (*Business, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business not found")
	}
	return GetBusinessById(ctx, businessId)
}
