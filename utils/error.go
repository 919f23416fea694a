package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorForbidden marks cross-tenant access attempts. Handlers map it to 403.
var ErrorForbidden = errors.New("forbidden")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
