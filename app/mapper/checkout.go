package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

func CheckoutToResponse(item *entity.CheckoutAttempt) *types.Checkout {
	if item == nil {
		return nil
	}

	return &types.Checkout{
		TxRef:       item.TxRef,
		StudentId:   item.StudentID,
		Provider:    entity.ProviderName(item.Provider),
		Mode:        entity.IntentName(item.Intent),
		Amount:      item.Amount.StringFixed(2),
		Currency:    item.Currency,
		Status:      entity.CheckoutStatusName(item.Status),
		CheckoutUrl: derefString(item.CheckoutURL),
		Months:      cloneMonths(item.RequestedMonths),
		Metadata:    cloneMetadata(item.Metadata),
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func CheckoutsToResponse(items []*entity.CheckoutAttempt) []*types.Checkout {
	result := make([]*types.Checkout, 0, len(items))
	for _, item := range items {
		result = append(result, CheckoutToResponse(item))
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cloneMonths(src []string) []string {
	if len(src) == 0 {
		return []string{}
	}
	return append([]string(nil), src...)
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
