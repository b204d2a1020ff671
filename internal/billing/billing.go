// internal/billing/billing.go
package billing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jmespath/go-jmespath"
	"go.uber.org/zap"

	"shopgate/internal/shopify"
)

var (
	// ErrBillingNotActive means no usage-priced line item exists yet.
	// Recoverable by completing the subscription flow; handlers map it
	// to 402.
	ErrBillingNotActive = errors.New("no active usage plan")
	// ErrPriceMismatch rejects a client-supplied amount that differs from
	// the fixed per-operation price. Treated as a tampering attempt.
	ErrPriceMismatch = errors.New("invalid price")
)

// priceTolerance absorbs float rounding on the wire, nothing more.
const priceTolerance = 1e-6

const activeSubscriptionsQuery = `
  query ActiveSubscriptions {
    currentAppInstallation {
      activeSubscriptions {
        id
        name
        status
        lineItems {
          id
          plan {
            pricingDetails {
              __typename
              ... on AppUsagePricing {
                terms
              }
            }
          }
        }
      }
    }
  }
`

const createSubscriptionMutation = `
  mutation CreateSubscription($name: String!, $returnUrl: URL!, $terms: String!, $test: Boolean!) {
    appSubscriptionCreate(
      name: $name
      returnUrl: $returnUrl
      lineItems: [
        {
          plan: {
            appUsagePricingDetails: {
              terms: $terms
              cappedAmount: { amount: 100, currencyCode: USD }
            }
          }
        }
      ]
      test: $test
    ) {
      confirmationUrl
      userErrors {
        field
        message
      }
    }
  }
`

const createUsageRecordMutation = `
  mutation CreateUsageRecord($id: ID!, $description: String!, $amount: MoneyInput!) {
    appUsageRecordCreate(description: $description, price: $amount, subscriptionLineItemId: $id) {
      appUsageRecord {
        id
      }
      userErrors {
        field
        message
      }
    }
  }
`

// JSON projections over the platform's GraphQL responses.
var (
	subscriptionsPath = jmespath.MustCompile(`data.currentAppInstallation.activeSubscriptions`)
	usageLineItemPath = jmespath.MustCompile(`lineItems[?plan.pricingDetails.__typename=='AppUsagePricing'].id | [0]`)
	confirmationPath  = jmespath.MustCompile(`data.appSubscriptionCreate.confirmationUrl`)
	subCreateErrsPath = jmespath.MustCompile(`data.appSubscriptionCreate.userErrors`)
	usageRecordIDPath = jmespath.MustCompile(`data.appUsageRecordCreate.appUsageRecord.id`)
	usageCreateErrs   = jmespath.MustCompile(`data.appUsageRecordCreate.userErrors`)
)

// UserErrorsError carries the platform's userErrors payload from a failed
// mutation. Handlers map it to 400.
type UserErrorsError struct {
	Errors []any
}

func (e *UserErrorsError) Error() string {
	return fmt.Sprintf("platform rejected mutation: %v", e.Errors)
}

// EnsureResult reports either the existing active subscription or the
// confirmation URL the merchant must visit to approve a new one.
type EnsureResult struct {
	Active          bool
	Subscription    map[string]any
	ConfirmationURL string
}

// Service orchestrates usage-based billing against the platform.
// SubscriptionLineItem state is fetched fresh on every billing-sensitive
// operation; caching it would allow billing bypass or double charges.
type Service struct {
	client *shopify.Client
	log    *zap.SugaredLogger

	subscriptionName string
	usageDescription string
	priceUSD         float64
	terms            string
	test             bool
}

func NewService(client *shopify.Client, log *zap.SugaredLogger, subscriptionName, usageDescription, terms string, priceUSD float64, test bool) *Service {
	return &Service{
		client:           client,
		log:              log,
		subscriptionName: subscriptionName,
		usageDescription: usageDescription,
		priceUSD:         priceUSD,
		terms:            terms,
		test:             test,
	}
}

// ActiveSubscriptions queries the shop's current app subscriptions.
func (s *Service) ActiveSubscriptions(ctx context.Context, shop, accessToken string) ([]any, error) {
	res, err := s.client.GraphQL(ctx, shop, accessToken, activeSubscriptionsQuery, nil)
	if err != nil {
		return nil, err
	}
	found, err := subscriptionsPath.Search(res)
	if err != nil {
		return nil, err
	}
	subs, _ := found.([]any)
	return subs, nil
}

// UsageLineItem finds the usage-priced line item of the subscription whose
// name matches this app's plan. Empty when absent.
func (s *Service) UsageLineItem(subscriptions []any) string {
	for _, raw := range subscriptions {
		sub, ok := raw.(map[string]any)
		if !ok || sub["name"] != s.subscriptionName {
			continue
		}
		found, err := usageLineItemPath.Search(sub)
		if err != nil {
			continue
		}
		if id, ok := found.(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// EnsureSubscription returns the existing active usage subscription or
// creates a pending one. Creation is not idempotent at the platform level,
// so the existence check must come first or duplicate pending
// subscriptions pile up.
func (s *Service) EnsureSubscription(ctx context.Context, shop, accessToken, returnURL string) (EnsureResult, error) {
	subs, err := s.ActiveSubscriptions(ctx, shop, accessToken)
	if err != nil {
		return EnsureResult{}, err
	}
	for _, raw := range subs {
		sub, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if sub["name"] == s.subscriptionName && s.UsageLineItem([]any{raw}) != "" {
			return EnsureResult{Active: true, Subscription: sub}, nil
		}
	}

	res, err := s.client.GraphQL(ctx, shop, accessToken, createSubscriptionMutation, map[string]any{
		"name":      s.subscriptionName,
		"returnUrl": returnURL,
		"terms":     s.terms,
		"test":      s.test,
	})
	if err != nil {
		return EnsureResult{}, err
	}
	if errs := searchList(subCreateErrsPath, res); len(errs) > 0 {
		return EnsureResult{}, &UserErrorsError{Errors: errs}
	}
	confirm, _ := searchString(confirmationPath, res)
	return EnsureResult{ConfirmationURL: confirm}, nil
}

// CreateUsageRecord posts one metered charge against an existing usage
// line item.
func (s *Service) CreateUsageRecord(ctx context.Context, shop, accessToken, lineItemID string) (string, error) {
	res, err := s.client.GraphQL(ctx, shop, accessToken, createUsageRecordMutation, map[string]any{
		"id":          lineItemID,
		"description": s.usageDescription,
		"amount":      map[string]any{"amount": s.priceUSD, "currencyCode": "USD"},
	})
	if err != nil {
		return "", err
	}
	if errs := searchList(usageCreateErrs, res); len(errs) > 0 {
		return "", &UserErrorsError{Errors: errs}
	}
	id, _ := searchString(usageRecordIDPath, res)
	return id, nil
}

// ChargeUsage validates the client-requested amount against the fixed
// price, locates the usage line item and records the charge. The price
// check happens before any network call.
func (s *Service) ChargeUsage(ctx context.Context, shop, accessToken string, amount float64) (string, error) {
	if math.Abs(amount-s.priceUSD) > priceTolerance {
		s.log.Warnw("usage price mismatch", "shop", shop, "amount", amount, "expected", s.priceUSD)
		return "", ErrPriceMismatch
	}
	subs, err := s.ActiveSubscriptions(ctx, shop, accessToken)
	if err != nil {
		return "", err
	}
	lineItem := s.UsageLineItem(subs)
	if lineItem == "" {
		return "", ErrBillingNotActive
	}
	return s.CreateUsageRecord(ctx, shop, accessToken, lineItem)
}

// PriceUSD exposes the fixed per-operation price for response payloads.
func (s *Service) PriceUSD() float64 { return s.priceUSD }

func searchList(p *jmespath.JMESPath, doc any) []any {
	found, err := p.Search(doc)
	if err != nil {
		return nil
	}
	out, _ := found.([]any)
	return out
}

func searchString(p *jmespath.JMESPath, doc any) (string, bool) {
	found, err := p.Search(doc)
	if err != nil {
		return "", false
	}
	s, ok := found.(string)
	return s, ok
}
