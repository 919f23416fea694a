// seed-dev bootstraps a development database: one demo business, an owner
// user (username: demoOwner, password: demo1234) and a checking account.
// Safe to rerun; existing records are left as they are.
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"gorm.io/gorm"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var biz models.Business
	err := db.WithContext(ctx).Model(&models.Business{}).Where("name = ?", "Demo Trading Co").First(&biz).Error
	if err == gorm.ErrRecordNotFound {
		created, createErr := models.CreateBusiness(ctx, &models.NewBusiness{
			Name:        "Demo Trading Co",
			ContactName: "Demo Owner",
			Email:       "owner@demo.example",
			Timezone:    "UTC",
		})
		if createErr != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", createErr)
			os.Exit(1)
		}
		biz = *created
		fmt.Printf("Created business %s\n", biz.ID)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
		os.Exit(1)
	}

	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	var owner models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", "demoOwner").First(&owner).Error
	if err == gorm.ErrRecordNotFound {
		if _, createErr := models.CreateUser(ctx, &models.NewUser{
			BusinessId: businessID,
			Username:   "demoOwner",
			Name:       "Demo Owner",
			Email:      "owner@demo.example",
			Password:   "demo1234",
			IsActive:   utils.NewTrue(),
			Role:       models.UserRoleOwner,
		}); createErr != nil {
			fmt.Fprintf(os.Stderr, "failed to create owner user: %v\n", createErr)
			os.Exit(1)
		}
		fmt.Println("Created user demoOwner")
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}

	var account models.BankAccount
	err = db.WithContext(ctx).Model(&models.BankAccount{}).
		Where("business_id = ? AND name = ?", businessID, "Demo Checking").First(&account).Error
	if err == gorm.ErrRecordNotFound {
		created, createErr := models.CreateBankAccount(ctx, &models.NewBankAccount{
			Name:          "Demo Checking",
			AccountNumber: "000123456789",
			CurrencyCode:  "USD",
		})
		if createErr != nil {
			fmt.Fprintf(os.Stderr, "failed to create bank account: %v\n", createErr)
			os.Exit(1)
		}
		fmt.Printf("Created bank account %d\n", created.ID)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup bank account: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Seed complete")
}
