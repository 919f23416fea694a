package models

import (
	"log"

	"bitbucket.org/mmdatafocus/recon_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&BankAccount{}, &LedgerEntry{}, &StatementLine{},
		&ReconciliationSession{}, &ReconciliationRule{}, &Match{},
		&PubSubMessageRecord{}, &IdempotencyKey{},
		&ReconciliationReport{}, &History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
