package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes follow the "<MODULE>_<NNN>" convention.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes used by GetCode.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_017"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_018"
)

// Clustering Module Error Codes
const (
	ErrCodeSchemaViolation      ErrorCode = "CLU_001"
	ErrCodeEmptyGroupTarget     ErrorCode = "CLU_002"
	ErrCodePartitionIncomplete  ErrorCode = "CLU_003"
	ErrCodeModelNotTrained      ErrorCode = "CLU_004"
	ErrCodeEmptyCentroidTable   ErrorCode = "CLU_005"
	ErrCodeInvalidTrainConfig   ErrorCode = "CLU_006"
	ErrCodeNoRecords            ErrorCode = "CLU_007"
	ErrCodeGroupNotFound        ErrorCode = "CLU_008"
	ErrCodeMemberNotFound       ErrorCode = "CLU_009"
	ErrCodeArtifactNotFound     ErrorCode = "CLU_010"
	ErrCodeTrainingInProgress   ErrorCode = "CLU_011"
	ErrCodeIngestFailed         ErrorCode = "CLU_012"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,

	ErrCodeSchemaViolation:     http.StatusBadRequest,
	ErrCodeEmptyGroupTarget:    http.StatusInternalServerError,
	ErrCodePartitionIncomplete: http.StatusInternalServerError,
	ErrCodeModelNotTrained:     http.StatusConflict,
	ErrCodeEmptyCentroidTable:  http.StatusConflict,
	ErrCodeInvalidTrainConfig:  http.StatusBadRequest,
	ErrCodeNoRecords:           http.StatusBadRequest,
	ErrCodeGroupNotFound:       http.StatusNotFound,
	ErrCodeMemberNotFound:      http.StatusNotFound,
	ErrCodeArtifactNotFound:    http.StatusNotFound,
	ErrCodeTrainingInProgress:  http.StatusConflict,
	ErrCodeIngestFailed:        http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessageQueueError:  "message queue error",

	ErrCodeSchemaViolation:     "record is missing a required field",
	ErrCodeEmptyGroupTarget:    "no valid merge or split target",
	ErrCodePartitionIncomplete: "partition has unlabeled records",
	ErrCodeModelNotTrained:     "no trained model is published",
	ErrCodeEmptyCentroidTable:  "centroid table is empty",
	ErrCodeInvalidTrainConfig:  "invalid training configuration",
	ErrCodeNoRecords:           "no records to cluster",
	ErrCodeGroupNotFound:       "group not found",
	ErrCodeMemberNotFound:      "member not found",
	ErrCodeArtifactNotFound:    "model artifact not found",
	ErrCodeTrainingInProgress:  "a training run is already in progress",
	ErrCodeIngestFailed:        "failed to ingest records",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
