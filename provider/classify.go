package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/vasylivanchyk330/AWS-Automation/model"
)

// throttlingCodes are the provider error codes that mean "slow down and try
// again". SlowDown is what S3 returns under sustained DeleteObjects load.
var throttlingCodes = map[string]struct{}{
	"SlowDown":                               {},
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"RequestThrottled":                       {},
	"RequestThrottledException":              {},
	"RequestLimitExceeded":                   {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
}

// notFoundCodes mark identities that are already gone. Deleting them again
// is success-equivalent.
var notFoundCodes = map[string]struct{}{
	"NoSuchKey":                    {},
	"NoSuchVersion":                {},
	"NoSuchBucket":                 {},
	"NoSuchUpload":                 {},
	"NoSuchLifecycleConfiguration": {},
	"NotFound":                     {},
	"NotFoundException":            {},
	"ResourceNotFoundException":    {},
	"InvalidAMIID.NotFound":        {},
	"InvalidSnapshot.NotFound":     {},
	"StackNotFoundException":       {},
}

// Classify maps a raw AWS error onto the three categories the engine's retry
// policy understands. Anything unrecognized is permanent: malformed requests
// and authorization failures must surface immediately, not spin in a retry
// loop.
func Classify(err error) model.ErrorClass {
	if err == nil {
		return model.ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.ClassPermanent
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := throttlingCodes[code]; ok {
			return model.ClassThrottling
		}
		if _, ok := notFoundCodes[code]; ok {
			return model.ClassNotFound
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return model.ClassThrottling
		case http.StatusNotFound:
			return model.ClassNotFound
		}
	}

	return model.ClassPermanent
}

// errorCode extracts the service error code for per-item reporting.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return "Unknown"
}

// ClassifyItem maps a per-item error from a bulk-delete response onto an
// error class using the same code tables.
func ClassifyItem(ie model.ItemError) model.ErrorClass {
	if _, ok := notFoundCodes[ie.Code]; ok {
		return model.ClassNotFound
	}
	if _, ok := throttlingCodes[ie.Code]; ok {
		return model.ClassThrottling
	}
	return model.ClassPermanent
}
