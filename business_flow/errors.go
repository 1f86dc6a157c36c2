// Package businessflow contains the core business logic and use cases for campaign dispatch workflows
package businessflow

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Business flow error constants
var (
	// Short link errors
	ErrShortLinkNotFound       = errors.New("short link not found")
	ErrShortLinkExpired        = errors.New("short link expired")
	ErrShortCodeCollision      = errors.New("could not allocate a unique short code")
	ErrTargetURLInvalid        = errors.New("target url is invalid")
	ErrShortLinkExpiryInPast   = errors.New("expiry time must be in the future")
	ErrShortLinkCodeNotAllowed = errors.New("short code contains characters outside the alphabet")

	// Engagement errors
	ErrCampaignIDRequired = errors.New("campaign id is required")

	// Hub content errors
	ErrHubContentNotFound = errors.New("hub content not found")

	// Dispatch errors
	ErrDispatchNotFound          = errors.New("dispatch not found")
	ErrRecipientsRequired        = errors.New("at least one recipient is required")
	ErrChannelInvalid            = errors.New("channel is invalid")
	ErrPayloadInvalid            = errors.New("channel payload is invalid")
	ErrDispatchNotEditable       = errors.New("dispatch can no longer be edited")
	ErrDispatchNotReschedulable  = errors.New("dispatch cannot be rescheduled from its current status")
	ErrDispatchAlreadyDeleted    = errors.New("dispatch already deleted")
	ErrDispatchSending           = errors.New("dispatch is being sent")
	ErrScheduleTimeRequired      = errors.New("schedule time is required")
	ErrClaimConflict             = errors.New("dispatch claimed by another worker")
	ErrGatewaySendFailure        = errors.New("channel gateway send failed")
	ErrPartialDeliveryFailure    = errors.New("some recipients were not delivered")
	ErrMediaResolveFailed        = errors.New("media could not be resolved")
	ErrDispatchUpdateRequired    = errors.New("at least one field must be provided for update")
	ErrInvalidDispatchTransition = errors.New("invalid dispatch status transition")

	// Media asset errors
	ErrMediaAssetNotFound = errors.New("media asset not found")
	ErrMediaFileInvalid   = errors.New("media file is invalid")
	ErrMediaFileTooLarge  = errors.New("media file is too large")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsShortLinkNotFound(err error) bool {
	return errors.Is(err, ErrShortLinkNotFound)
}

func IsShortLinkExpired(err error) bool {
	return errors.Is(err, ErrShortLinkExpired)
}

func IsShortCodeCollision(err error) bool {
	return errors.Is(err, ErrShortCodeCollision)
}

func IsTargetURLInvalid(err error) bool {
	return errors.Is(err, ErrTargetURLInvalid)
}

func IsShortLinkExpiryInPast(err error) bool {
	return errors.Is(err, ErrShortLinkExpiryInPast)
}

func IsCampaignIDRequired(err error) bool {
	return errors.Is(err, ErrCampaignIDRequired)
}


func IsHubContentNotFound(err error) bool {
	return errors.Is(err, ErrHubContentNotFound)
}

func IsDispatchNotFound(err error) bool {
	return errors.Is(err, ErrDispatchNotFound)
}

func IsRecipientsRequired(err error) bool {
	return errors.Is(err, ErrRecipientsRequired)
}

func IsChannelInvalid(err error) bool {
	return errors.Is(err, ErrChannelInvalid)
}

func IsPayloadInvalid(err error) bool {
	return errors.Is(err, ErrPayloadInvalid)
}

func IsDispatchNotEditable(err error) bool {
	return errors.Is(err, ErrDispatchNotEditable)
}

func IsDispatchNotReschedulable(err error) bool {
	return errors.Is(err, ErrDispatchNotReschedulable)
}

func IsDispatchAlreadyDeleted(err error) bool {
	return errors.Is(err, ErrDispatchAlreadyDeleted)
}

func IsDispatchSending(err error) bool {
	return errors.Is(err, ErrDispatchSending)
}

func IsScheduleTimeRequired(err error) bool {
	return errors.Is(err, ErrScheduleTimeRequired)
}

func IsClaimConflict(err error) bool {
	return errors.Is(err, ErrClaimConflict)
}

func IsGatewaySendFailure(err error) bool {
	return errors.Is(err, ErrGatewaySendFailure)
}

func IsPartialDeliveryFailure(err error) bool {
	return errors.Is(err, ErrPartialDeliveryFailure)
}

func IsMediaResolveFailed(err error) bool {
	return errors.Is(err, ErrMediaResolveFailed)
}

func IsDispatchUpdateRequired(err error) bool {
	return errors.Is(err, ErrDispatchUpdateRequired)
}

func IsInvalidDispatchTransition(err error) bool {
	return errors.Is(err, ErrInvalidDispatchTransition)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

// IsRecordNotFound reports a storage-level missing row
func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsShortLinkCodeNotAllowed(err error) bool {
	return errors.Is(err, ErrShortLinkCodeNotAllowed)
}

func IsMediaAssetNotFound(err error) bool {
	return errors.Is(err, ErrMediaAssetNotFound)
}

func IsMediaFileInvalid(err error) bool {
	return errors.Is(err, ErrMediaFileInvalid)
}

func IsMediaFileTooLarge(err error) bool {
	return errors.Is(err, ErrMediaFileTooLarge)
}
