package models

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PublishToReconciliation implements the transactional outbox: it writes the
// message record inside the caller's DB transaction but does NOT publish to
// Pub/Sub. Publishing is performed asynchronously by the outbox dispatcher
// after commit.
func PublishToReconciliation(ctx context.Context, db *gorm.DB, businessId string, eventDateTime time.Time, refId int, refType ReconReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if msgAction == PubSubMessageActionCreate || msgAction == PubSubMessageActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if msgAction == PubSubMessageActionUpdate || msgAction == PubSubMessageActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := PubSubMessageRecord{
		BusinessId:    businessId,
		EventDateTime: eventDateTime,
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        msgAction,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		IsProcessed:   false,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	err = db.Create(&record).Error
	if err != nil {
		return err
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ParseDateString parses a local date-time string and converts it to UTC
// using the business timezone.
func ParseDateString(dateString string, timezone string) (time.Time, error) {

	localTime, err := time.Parse("2006-01-02T15:04:05", dateString)
	if err != nil {
		// date-only form is accepted for statement imports
		localTime, err = time.Parse("2006-01-02", dateString)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", dateString, err)
		}
	}

	if timezone == "" {
		timezone = "UTC"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		localTime.Hour(), localTime.Minute(), localTime.Second(), localTime.Nanosecond(),
		location,
	)

	return localTimeInZone.UTC(), nil
}
