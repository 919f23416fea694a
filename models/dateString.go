package models

import (
	"database/sql/driver"
	"errors"
	"strconv"
	"time"
)

// MyDateString is a date carried as "2006-01-02" or "2006-01-02T15:04:05"
// in request parameters, interpreted in the business timezone.
type MyDateString time.Time

func (t MyDateString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).Format("2006-01-02T15:04:05"))), nil
}

func (t *MyDateString) UnmarshalJSON(data []byte) error {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("date must be a string")
	}
	return t.ParseString(str)
}

func (t MyDateString) Value() (driver.Value, error) {
	return time.Time(t), nil
}

func (t *MyDateString) ParseString(str string) error {
	localTime, err := time.Parse("2006-01-02T15:04:05", str)
	if err != nil {
		localTime, err = time.Parse("2006-01-02", str)
	}
	if err != nil {
		return errors.New("error parsing datetime")
	}
	*t = MyDateString(localTime)
	return nil
}

func (t *MyDateString) StartOfDayUTCTime(timezone string) error {
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)
	*t = MyDateString(localTimeInZone.In(time.UTC))

	return nil
}

func (t *MyDateString) EndOfDayUTCTime(timezone string) error {
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}

	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, 999,
		location,
	)
	*t = MyDateString(localTimeInZone.In(time.UTC))

	return nil
}
