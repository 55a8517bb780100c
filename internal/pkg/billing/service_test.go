package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/billing"
	mock_billing "github.com/JobMwaura/zintra-sub007/internal/pkg/billing/mocks"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/database"
)

type recordingInvalidator struct {
	users []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userID string) error {
	r.users = append(r.users, userID)
	return nil
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, code, tier, mode string, price int64) *models.BillingProduct {
	t.Helper()
	p := &models.BillingProduct{
		ProductCode:  code,
		Name:         "Vendor " + tier,
		Scope:        models.ScopeMarketplaceVendor,
		Tier:         tier,
		PriceKES:     decimal.NewFromInt(price),
		BillingMode:  mode,
		DurationDays: 30,
		Active:       true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedEntitlement(t *testing.T, db *gorm.DB, productID, key, typ string, value any) {
	t.Helper()
	require.NoError(t, db.Create(&models.BillingEntitlement{
		ProductID:       productID,
		CapabilityKey:   key,
		CapabilityValue: datatypes.NewJSONType(models.CapabilityValue{Type: typ, Value: value}),
	}).Error)
}

func accepted(checkoutID string) *billing.STKPushResponse {
	return &billing.STKPushResponse{
		MerchantRequestID:   "29115-34620561-1",
		CheckoutRequestID:   checkoutID,
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
	}
}

func stkCallback(checkoutID string, code int, desc string) []byte {
	cb := map[string]any{
		"MerchantRequestID": "29115-34620561-1",
		"CheckoutRequestID": checkoutID,
		"ResultCode":        code,
		"ResultDesc":        desc,
	}
	if code == 0 {
		cb["CallbackMetadata"] = map[string]any{
			"Item": []map[string]any{
				{"Name": "Amount", "Value": 500},
				{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
				{"Name": "PhoneNumber", "Value": 254712345678},
			},
		}
	}
	raw, _ := json.Marshal(map[string]any{"Body": map[string]any{"stkCallback": cb}})
	return raw
}

// initiate runs a purchase for user-1 that Daraja accepts.
func initiate(t *testing.T, svc *billing.Service, pusher *mock_billing.MockSTKPusher, code, checkoutID string) *billing.InitiatePassResult {
	t.Helper()
	pusher.EXPECT().STKPush(gomock.Any(), gomock.Any()).Return(accepted(checkoutID), nil)
	res, err := svc.InitiatePassPurchase(context.Background(), "user-1", billing.InitiatePassRequest{
		ProductCode: code,
		Phone:       "0712345678",
	})
	require.NoError(t, err)
	return res
}

func TestInitiatePassPurchase_SendsSTKPush(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newDB(t)
	seedProduct(t, db, "vendor_pro_pass", "pro", models.BillingModePass, 500)

	pusher := mock_billing.NewMockSTKPusher(ctrl)
	pusher.EXPECT().STKPush(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req billing.STKPushRequest) (*billing.STKPushResponse, error) {
			assert.Equal(t, "254712345678", req.Phone)
			assert.Equal(t, int64(500), req.Amount)
			assert.Equal(t, "ZINTRA-vendor_pro_pass", req.AccountRef)
			return accepted("ws_CO_1"), nil
		})

	svc := billing.NewService(db, billing.Deps{Mpesa: pusher})
	res, err := svc.InitiatePassPurchase(context.Background(), "user-1", billing.InitiatePassRequest{
		ProductCode: "vendor_pro_pass",
		Phone:       "0712 345 678",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	assert.Equal(t, "pro", res.Product.Tier)
	assert.Equal(t, "Check your phone for the M-Pesa prompt.", res.Message)

	var purchase models.BillingPassPurchase
	require.NoError(t, db.First(&purchase, "id = ?", res.PurchaseID).Error)
	assert.Equal(t, models.PurchaseStatusInitiated, purchase.Status)
	require.NotNil(t, purchase.ProviderCheckoutID)
	assert.Equal(t, "ws_CO_1", *purchase.ProviderCheckoutID)
	assert.True(t, purchase.AmountKES.Equal(decimal.NewFromInt(500)))
}

func TestInitiatePassPurchase_Rejections(t *testing.T) {
	db := newDB(t)
	seedProduct(t, db, "vendor_pro_pass", "pro", models.BillingModePass, 500)
	seedProduct(t, db, "vendor_pro_monthly", "premium", models.BillingModeSubscription, 1500)
	seedProduct(t, db, "vendor_free", "free", models.BillingModePass, 0)
	svc := billing.NewService(db, billing.Deps{})
	ctx := context.Background()

	_, err := svc.InitiatePassPurchase(ctx, "", billing.InitiatePassRequest{ProductCode: "vendor_pro_pass", Phone: "0712345678"})
	assert.ErrorIs(t, err, billing.ErrUnauthorized)

	var verr *billing.ValidationError
	_, err = svc.InitiatePassPurchase(ctx, "user-1", billing.InitiatePassRequest{ProductCode: "vendor_pro_pass"})
	assert.True(t, errors.As(err, &verr))

	_, err = svc.InitiatePassPurchase(ctx, "user-1", billing.InitiatePassRequest{ProductCode: "vendor_pro_pass", Phone: "12345"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "Invalid phone number format")

	_, err = svc.InitiatePassPurchase(ctx, "user-1", billing.InitiatePassRequest{ProductCode: "nope", Phone: "0712345678"})
	assert.ErrorIs(t, err, billing.ErrProductNotFound)
	assert.Contains(t, err.Error(), `"nope"`)

	_, err = svc.InitiatePassPurchase(ctx, "user-1", billing.InitiatePassRequest{ProductCode: "vendor_pro_monthly", Phone: "0712345678"})
	assert.ErrorIs(t, err, billing.ErrPassNotSupported)

	_, err = svc.InitiatePassPurchase(ctx, "user-1", billing.InitiatePassRequest{ProductCode: "vendor_free", Phone: "0712345678"})
	assert.ErrorIs(t, err, billing.ErrFreeProduct)

	var count int64
	require.NoError(t, db.Model(&models.BillingPassPurchase{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInitiatePassPurchase_STKFailureMarksPurchaseFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newDB(t)
	seedProduct(t, db, "vendor_pro_pass", "pro", models.BillingModePass, 500)

	pusher := mock_billing.NewMockSTKPusher(ctrl)
	pusher.EXPECT().STKPush(gomock.Any(), gomock.Any()).Return(&billing.STKPushResponse{
		ResponseCode:        "1",
		ResponseDescription: "Invalid Access Token",
	}, nil)
	svc := billing.NewService(db, billing.Deps{Mpesa: pusher})

	_, err := svc.InitiatePassPurchase(context.Background(), "user-1", billing.InitiatePassRequest{
		ProductCode: "vendor_pro_pass",
		Phone:       "0712345678",
	})
	require.ErrorIs(t, err, billing.ErrPaymentInitiation)
	assert.Equal(t, "Invalid Access Token", err.Error())

	var purchase models.BillingPassPurchase
	require.NoError(t, db.First(&purchase).Error)
	assert.Equal(t, models.PurchaseStatusFailed, purchase.Status)
	assert.Contains(t, purchase.Metadata, "mpesa_error")
}

func TestInitiatePassPurchase_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newDB(t)
	seedProduct(t, db, "vendor_pro_pass", "pro", models.BillingModePass, 500)

	pusher := mock_billing.NewMockSTKPusher(ctrl)
	pusher.EXPECT().STKPush(gomock.Any(), gomock.Any()).Return(nil, errors.New("dial tcp: timeout"))
	svc := billing.NewService(db, billing.Deps{Mpesa: pusher})

	_, err := svc.InitiatePassPurchase(context.Background(), "user-1", billing.InitiatePassRequest{
		ProductCode: "vendor_pro_pass",
		Phone:       "0712345678",
	})
	require.ErrorIs(t, err, billing.ErrPaymentInitiation)
	assert.Equal(t, billing.ErrPaymentInitiation.Error(), err.Error())
}

func TestMpesaCallback_PaidActivatesPass(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newDB(t)
	ctx := context.Background()
	old := seedProduct(t, db, "vendor_basic_pass", "pro", models.BillingModePass, 300)
	p := seedProduct(t, db, "vendor_premium_pass", "premium", models.BillingModePass, 500)
	seedEntitlement(t, db, p.ID, "included_featured_listings", "number", 2)
	seedEntitlement(t, db, p.ID, "max_active_quotes", "number", 50)

	pusher := mock_billing.NewMockSTKPusher(ctrl)
	inv := &recordingInvalidator{}
	svc := billing.NewService(db, billing.Deps{Mpesa: pusher, Capabilities: inv})

	// An older pass in the same scope is replaced.
	initiate(t, svc, pusher, old.ProductCode, "ws_CO_old")
	require.Equal(t, "Accepted", svc.HandleMpesaCallback(ctx, stkCallback("ws_CO_old", 0, "ok")).ResultDesc)

	res := initiate(t, svc, pusher, p.ProductCode, "ws_CO_2")
	ack := svc.HandleMpesaCallback(ctx, stkCallback("ws_CO_2", 0, "The service request is processed successfully."))
	assert.Equal(t, billing.MpesaAck{ResultCode: 0, ResultDesc: "Accepted"}, ack)

	var purchase models.BillingPassPurchase
	require.NoError(t, db.First(&purchase, "id = ?", res.PurchaseID).Error)
	assert.Equal(t, models.PurchaseStatusPaid, purchase.Status)
	require.NotNil(t, purchase.ProviderReceipt)
	assert.Equal(t, "NLJ7RT61SV", *purchase.ProviderReceipt)

	var replaced, pass models.BillingPass
	require.NoError(t, db.First(&replaced, "product_id = ?", old.ID).Error)
	assert.Equal(t, models.PassStatusCancelled, replaced.Status)
	require.NoError(t, db.First(&pass, "product_id = ?", p.ID).Error)
	assert.Equal(t, models.PassStatusActive, pass.Status)
	assert.Equal(t, res.PurchaseID, pass.PurchaseRef)
	assert.WithinDuration(t, pass.StartsAt.AddDate(0, 0, 30), pass.EndsAt, 0)

	var usage []models.BillingIncludedUsage
	require.NoError(t, db.Find(&usage, "product_id = ?", p.ID).Error)
	require.Len(t, usage, 1)
	assert.Equal(t, "included_featured_listings", usage[0].MetricKey)
	assert.Zero(t, usage[0].MetricValue)

	assert.Equal(t, []string{"user-1", "user-1"}, inv.users)

	var events int64
	require.NoError(t, db.Model(&models.BillingWebhookEvent{}).Where("processed_at IS NOT NULL").Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestMpesaCallback_DuplicateIsAlreadyProcessed(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newDB(t)
	ctx := context.Background()
	p := seedProduct(t, db, "vendor_pro_pass", "pro", models.BillingModePass, 500)
	pusher := mock_billing.NewMockSTKPusher(ctrl)
	svc := billing.NewService(db, billing.Deps{Mpesa: pusher})

	initiate(t, svc, pusher, p.ProductCode, "ws_CO_3")
	raw := stkCallback("ws_CO_3", 0, "ok")
	require.Equal(t, "Accepted", svc.HandleMpesaCallback(ctx, raw).ResultDesc)
	assert.Equal(t, "Already processed", svc.HandleMpesaCallback(ctx, raw).ResultDesc)

	var passes int64
	require.NoError(t, db.Model(&models.BillingPass{}).Count(&passes).Error)
	assert.Equal(t, int64(1), passes)
}

func TestMpesaCallback_NonSuccessCodes(t *testing.T) {
	cases := []struct {
		code   int
		status string
	}{
		{1032, models.PurchaseStatusCancelled},
		{1, models.PurchaseStatusFailed},
		{2001, models.PurchaseStatusFailed},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.code), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			db := newDB(t)
			p := seedProduct(t, db, "vendor_pro_pass", "pro", models.BillingModePass, 500)
			pusher := mock_billing.NewMockSTKPusher(ctrl)
			svc := billing.NewService(db, billing.Deps{Mpesa: pusher})

			res := initiate(t, svc, pusher, p.ProductCode, "ws_CO_x")
			ack := svc.HandleMpesaCallback(context.Background(), stkCallback("ws_CO_x", tc.code, "Request cancelled by user"))
			assert.Equal(t, billing.MpesaAck{ResultCode: 0, ResultDesc: "Accepted"}, ack)

			var purchase models.BillingPassPurchase
			require.NoError(t, db.First(&purchase, "id = ?", res.PurchaseID).Error)
			assert.Equal(t, tc.status, purchase.Status)

			var passes int64
			require.NoError(t, db.Model(&models.BillingPass{}).Count(&passes).Error)
			assert.Zero(t, passes)
		})
	}
}

func TestMpesaCallback_UnknownAndInvalid(t *testing.T) {
	db := newDB(t)
	svc := billing.NewService(db, billing.Deps{})
	ctx := context.Background()

	assert.Equal(t, billing.MpesaAck{ResultCode: 0, ResultDesc: "Accepted"},
		svc.HandleMpesaCallback(ctx, stkCallback("ws_CO_missing", 0, "ok")))
	assert.Equal(t, billing.MpesaAck{ResultCode: 1, ResultDesc: "Invalid payload"},
		svc.HandleMpesaCallback(ctx, []byte(`{"Body":{}}`)))
	assert.Equal(t, billing.MpesaAck{ResultCode: 1, ResultDesc: "Invalid payload"},
		svc.HandleMpesaCallback(ctx, []byte(`not json`)))
}

func TestIncludedUsage_ConsumeUntilExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newDB(t)
	ctx := context.Background()
	p := seedProduct(t, db, "vendor_premium_pass", "premium", models.BillingModePass, 500)
	seedEntitlement(t, db, p.ID, "included_featured_listings", "number", 2)
	pusher := mock_billing.NewMockSTKPusher(ctrl)
	svc := billing.NewService(db, billing.Deps{Mpesa: pusher})

	initiate(t, svc, pusher, p.ProductCode, "ws_CO_4")
	svc.HandleMpesaCallback(ctx, stkCallback("ws_CO_4", 0, "ok"))

	usage, err := svc.IncludedRemaining(ctx, "user-1", "included_featured_listings")
	require.NoError(t, err)
	assert.Equal(t, billing.IncludedUsage{MetricKey: "included_featured_listings", Limit: 2, Used: 0, Remaining: 2}, *usage)

	ok, left, err := svc.ConsumeIncluded(ctx, "user-1", "included_featured_listings")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), left)

	ok, left, err = svc.ConsumeIncluded(ctx, "user-1", "included_featured_listings")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, left)

	ok, _, err = svc.ConsumeIncluded(ctx, "user-1", "included_featured_listings")
	require.NoError(t, err)
	assert.False(t, ok)

	usage, err = svc.IncludedRemaining(ctx, "user-1", "included_featured_listings")
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.Used)
	assert.Zero(t, usage.Remaining)

	usage, err = svc.IncludedRemaining(ctx, "user-2", "included_featured_listings")
	require.NoError(t, err)
	assert.Zero(t, usage.Limit)
}

func TestStatus_BestTierPerScope(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := newDB(t)
	ctx := context.Background()
	pro := seedProduct(t, db, "vendor_pro_pass", "pro", models.BillingModePass, 500)
	premium := seedProduct(t, db, "vendor_premium_monthly", "premium", models.BillingModeSubscription, 1500)
	pusher := mock_billing.NewMockSTKPusher(ctrl)
	svc := billing.NewService(db, billing.Deps{Mpesa: pusher})

	initiate(t, svc, pusher, pro.ProductCode, "ws_CO_5")
	svc.HandleMpesaCallback(ctx, stkCallback("ws_CO_5", 0, "ok"))
	require.NoError(t, db.Create(&models.BillingSubscription{
		UserID:                 "user-1",
		ProductID:              premium.ID,
		Provider:               models.BillingProviderPesapal,
		ProviderSubscriptionID: "ORD-9",
		Status:                 models.BillingStatusActive,
	}).Error)

	status, err := svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "premium", status.ActiveTiers[models.ScopeMarketplaceVendor])
	assert.Len(t, status.Passes, 1)
	assert.Len(t, status.Subscriptions, 1)
	assert.Len(t, status.RecentPurchases, 1)
	assert.Len(t, status.Products[models.ScopeMarketplaceVendor], 2)
	assert.Empty(t, status.Products[models.ScopeZCCEmployer])

	_, err = svc.Status(ctx, "")
	assert.ErrorIs(t, err, billing.ErrUnauthorized)
}

func TestResolveMappedProduct(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	p := seedProduct(t, db, "vendor_pro_monthly", "pro", models.BillingModeSubscription, 1500)
	require.NoError(t, db.Create(&models.BillingPlanMapping{
		Provider:        models.BillingProviderPesapal,
		ProviderPlanRef: "plan-pro",
		ProductCode:     p.ProductCode,
		IsActive:        true,
	}).Error)
	svc := billing.NewService(db, billing.Deps{})

	got, err := svc.ResolveMappedProduct(ctx, "PesaPal", "plan-pro")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	got, err = svc.ResolveMappedProduct(ctx, "pesapal", "vendor_pro_monthly")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.ResolveMappedProduct(ctx, "pesapal", "plan-unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = svc.ResolveMappedProduct(ctx, "", "plan-pro")
	assert.Error(t, err)
}

func TestListPurchases_ClampsLimit(t *testing.T) {
	db := newDB(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.BillingPassPurchase{
			UserID:    "user-1",
			ProductID: "p",
			AmountKES: decimal.NewFromInt(500),
			Currency:  "KES",
			Status:    models.PurchaseStatusFailed,
			Provider:  models.BillingProviderMpesa,
		}).Error)
	}
	svc := billing.NewService(db, billing.Deps{})

	got, err := svc.ListPurchases(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = svc.ListPurchases(context.Background(), "user-1", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
