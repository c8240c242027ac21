package entitlement

import "errors"

var (
	ErrPlanNotFound             = errors.New("entitlement: plan not found")
	ErrInvalidPlanConfiguration = errors.New("entitlement: invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("entitlement: failed to load plans")
	ErrFreePlanRequired         = errors.New("entitlement: free plan is required")
)
