package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

type BankAccount struct {
	ID            int       `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"size:64;index;not null" json:"business_id"`
	Name          string    `gorm:"size:100;not null" json:"name" binding:"required"`
	AccountNumber string    `gorm:"size:50" json:"account_number"`
	CurrencyCode  string    `gorm:"size:3;not null;default:'USD'" json:"currency_code"`
	IsActive      *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBankAccount struct {
	Name          string `json:"name" binding:"required"`
	AccountNumber string `json:"account_number"`
	CurrencyCode  string `json:"currency_code"`
}

/*
caches:
	BankAccount:$id
	BankAccountList:$businessId
*/

func (account BankAccount) GetBusinessId() string {
	return account.BusinessId
}

func (account BankAccount) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[BankAccount](account.ID)
}

func (account BankAccount) RemoveAllRedis() error {
	return utils.RemoveRedisList[BankAccount](account.BusinessId)
}

func (input *NewBankAccount) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateUnique[BankAccount](ctx, businessId, "name", input.Name, 0); err != nil {
		return err
	}
	return nil
}

func CreateBankAccount(ctx context.Context, input *NewBankAccount) (*BankAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	currencyCode := input.CurrencyCode
	if currencyCode == "" {
		currencyCode = "USD"
	}

	account := BankAccount{
		BusinessId:    businessId,
		Name:          input.Name,
		AccountNumber: input.AccountNumber,
		CurrencyCode:  currencyCode,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(account); err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateBankAccount(ctx context.Context, id int, input *NewBankAccount) (*BankAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	account, err := utils.FetchModel[BankAccount](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[BankAccount](ctx, businessId, "name", input.Name, id); err != nil {
		return nil, err
	}

	account.Name = input.Name
	account.AccountNumber = input.AccountNumber
	if input.CurrencyCode != "" {
		account.CurrencyCode = input.CurrencyCode
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(account).Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*account); err != nil {
		return nil, err
	}
	return account, nil
}

func DeleteBankAccount(ctx context.Context, id int) (*BankAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	account, err := utils.FetchModel[BankAccount](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// accounts with reconciliation sessions cannot be deleted
	count, err := utils.ResourceCountWhere[ReconciliationSession](ctx, businessId, "account_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("bank account has reconciliation sessions")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(account).Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*account); err != nil {
		return nil, err
	}
	return account, nil
}

func GetBankAccount(ctx context.Context, id int) (*BankAccount, error) {
	return GetResource[BankAccount](ctx, id)
}

// read account list, redis or db, cache result
func ListBankAccounts(ctx context.Context) ([]*BankAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok {
		return nil, errors.New("business not found")
	}

	results, err := utils.RetrieveRedisList[BankAccount](businessId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[BankAccount](ctx, businessId)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[BankAccount](results, businessId); err != nil {
			return nil, err
		}
	}
	return results, nil
}
