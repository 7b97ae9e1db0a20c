package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/audit"
	"meridian/internal/order/models"
	orderstore "meridian/internal/order/store/order"
	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/middleware/auth"
	"meridian/pkg/platform/tracer"
	"meridian/pkg/requestcontext"
)

var testNow = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *orderstore.InMemory
	events *audit.Capture
}

func newFixture() *fixture {
	f := &fixture{
		store:  orderstore.NewInMemory(),
		events: audit.NewCapture(),
	}
	f.svc = New(f.store, WithAuditPublisher(f.events))
	return f
}

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(), testNow)
}

func customerPrincipal() auth.Principal {
	return auth.Principal{UserID: domain.NewUserID(), Email: "john@example.com", Role: "user"}
}

func adminPrincipal() auth.Principal {
	return auth.Principal{UserID: domain.NewUserID(), Email: "root@example.com", Role: "admin"}
}

func createReq() *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		SubtotalCents:   4500,
		TaxCents:        360,
		ShippingCents:   500,
		ShippingAddress: "1 Main St, Springfield",
		PaymentMethod:   "card",
	}
}

func requireDomainErr(t *testing.T, err error, code dErrors.Code, message string) {
	t.Helper()
	var dErr *dErrors.Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, code, dErr.Code)
	assert.Equal(t, message, dErr.Message)
}

// place creates an order for the given principal and fails the test on
// error.
func place(t *testing.T, f *fixture, actor auth.Principal) *models.Order {
	t.Helper()
	o, err := f.svc.Create(testCtx(), actor, createReq())
	require.NoError(t, err)
	return o
}

func TestCreate_PlacesPendingOrder(t *testing.T) {
	f := newFixture()
	actor := customerPrincipal()

	o, err := f.svc.Create(testCtx(), actor, createReq())
	require.NoError(t, err)

	assert.Equal(t, actor.UserID, o.UserID)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, int64(5360), o.TotalCents)
	assert.Equal(t, "USD", o.Currency)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"))
	assert.Equal(t, testNow, o.CreatedAt)

	events := f.events.ByType(audit.EventOrderCreated)
	require.Len(t, events, 1)
	assert.Equal(t, actor.UserID.String(), events[0].Actor)
	assert.Equal(t, o.OrderNumber, events[0].Data["order_number"])
}

func TestCreate_RejectsInvalidAmounts(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(testCtx(), customerPrincipal(), &models.CreateOrderRequest{
		SubtotalCents: 1000,
		DiscountCents: 5000,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGet_OwnerAndAdminOnly(t *testing.T) {
	f := newFixture()
	owner := customerPrincipal()
	o := place(t, f, owner)

	got, err := f.svc.Get(testCtx(), owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.Get(testCtx(), customerPrincipal(), o.ID)
	requireDomainErr(t, err, dErrors.CodeForbidden, "Not enough permissions")

	_, err = f.svc.Get(testCtx(), adminPrincipal(), o.ID)
	require.NoError(t, err)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Get(testCtx(), adminPrincipal(), domain.NewOrderID())
	requireDomainErr(t, err, dErrors.CodeNotFound, "Order not found")
}

func TestGetByNumber_ResolvesReference(t *testing.T) {
	f := newFixture()
	owner := customerPrincipal()
	o := place(t, f, owner)

	got, err := f.svc.GetByNumber(testCtx(), owner, strings.ToLower(o.OrderNumber))
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.svc.GetByNumber(testCtx(), customerPrincipal(), o.OrderNumber)
	requireDomainErr(t, err, dErrors.CodeForbidden, "Not enough permissions")

	_, err = f.svc.GetByNumber(testCtx(), owner, "ORD-MISSING")
	requireDomainErr(t, err, dErrors.CodeNotFound, "Order not found")
}

func TestList_UsersOnlySeeTheirOwn(t *testing.T) {
	f := newFixture()
	alice := customerPrincipal()
	bob := customerPrincipal()
	place(t, f, alice)
	place(t, f, alice)
	place(t, f, bob)

	filter := models.ListFilter{Page: 1, Size: 20, SortBy: models.DefaultSortBy, SortOrder: models.SortAsc}

	orders, total, err := f.svc.List(testCtx(), alice, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, o := range orders {
		assert.Equal(t, alice.UserID, o.UserID)
	}

	// A user asking for someone else's orders still gets their own.
	filter.UserID = bob.UserID
	_, total, err = f.svc.List(testCtx(), alice, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	filter.UserID = domain.UserID{}
	_, total, err = f.svc.List(testCtx(), adminPrincipal(), filter)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	filter.UserID = bob.UserID
	_, total, err = f.svc.List(testCtx(), adminPrincipal(), filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpdateStatus_WalksTheLifecycle(t *testing.T) {
	f := newFixture()
	admin := adminPrincipal()
	o := place(t, f, customerPrincipal())

	o, err := f.svc.UpdateStatus(testCtx(), admin, o.ID, &models.UpdateStatusRequest{Status: models.StatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, o.Status)

	_, err = f.svc.UpdatePayment(testCtx(), admin, o.ID, &models.UpdatePaymentRequest{PaymentStatus: models.PaymentPaid})
	require.NoError(t, err)

	o, err = f.svc.UpdateStatus(testCtx(), admin, o.ID, &models.UpdateStatusRequest{
		Status:         models.StatusShipped,
		TrackingNumber: "1Z999AA10123456784",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, o.Status)
	assert.Equal(t, "1Z999AA10123456784", o.TrackingNumber)
	require.NotNil(t, o.ShippedAt)
	assert.Equal(t, testNow, *o.ShippedAt)

	o, err = f.svc.UpdateStatus(testCtx(), admin, o.ID, &models.UpdateStatusRequest{Status: models.StatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, o.DeliveredAt)

	changes := f.events.ByType(audit.EventOrderStatusChanged)
	require.Len(t, changes, 3)
	assert.Equal(t, "shipped", changes[1].Data["to"])
}

func TestUpdateStatus_RejectsIllegalTransition(t *testing.T) {
	f := newFixture()
	o := place(t, f, customerPrincipal())

	_, err := f.svc.UpdateStatus(testCtx(), adminPrincipal(), o.ID, &models.UpdateStatusRequest{Status: models.StatusDelivered})
	requireDomainErr(t, err, dErrors.CodeConflict, "Cannot change order status from pending to delivered")
}

func TestUpdateStatus_RejectsShippingUnpaidOrder(t *testing.T) {
	f := newFixture()
	admin := adminPrincipal()
	o := place(t, f, customerPrincipal())

	_, err := f.svc.UpdateStatus(testCtx(), admin, o.ID, &models.UpdateStatusRequest{Status: models.StatusConfirmed})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(testCtx(), admin, o.ID, &models.UpdateStatusRequest{Status: models.StatusShipped})
	requireDomainErr(t, err, dErrors.CodeConflict, "Cannot ship an unpaid order")
}

func TestUpdateStatus_SameStatusIsNoOp(t *testing.T) {
	f := newFixture()
	o := place(t, f, customerPrincipal())

	got, err := f.svc.UpdateStatus(testCtx(), adminPrincipal(), o.ID, &models.UpdateStatusRequest{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Empty(t, f.events.ByType(audit.EventOrderStatusChanged))
}

func TestUpdatePayment_RecordsOutcome(t *testing.T) {
	f := newFixture()
	admin := adminPrincipal()
	o := place(t, f, customerPrincipal())

	got, err := f.svc.UpdatePayment(testCtx(), admin, o.ID, &models.UpdatePaymentRequest{
		PaymentStatus: models.PaymentPaid,
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, "bank_transfer", got.PaymentMethod)

	events := f.events.ByType(audit.EventOrderPaymentUpdated)
	require.Len(t, events, 1)
	assert.Equal(t, "pending", events[0].Data["from"])
	assert.Equal(t, "paid", events[0].Data["to"])
}

func TestCancel_OwnerWhilePendingOrConfirmed(t *testing.T) {
	f := newFixture()
	owner := customerPrincipal()
	o := place(t, f, owner)

	got, err := f.svc.Cancel(testCtx(), owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	require.Len(t, f.events.ByType(audit.EventOrderCancelled), 1)
}

func TestCancel_IsIdempotent(t *testing.T) {
	f := newFixture()
	owner := customerPrincipal()
	o := place(t, f, owner)

	_, err := f.svc.Cancel(testCtx(), owner, o.ID)
	require.NoError(t, err)

	got, err := f.svc.Cancel(testCtx(), owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Len(t, f.events.ByType(audit.EventOrderCancelled), 1)
}

func TestCancel_RejectedOnceFulfilmentStarts(t *testing.T) {
	f := newFixture()
	admin := adminPrincipal()
	owner := customerPrincipal()
	o := place(t, f, owner)

	_, err := f.svc.UpdateStatus(testCtx(), admin, o.ID, &models.UpdateStatusRequest{Status: models.StatusConfirmed})
	require.NoError(t, err)
	_, err = f.svc.UpdatePayment(testCtx(), admin, o.ID, &models.UpdatePaymentRequest{PaymentStatus: models.PaymentPaid})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(testCtx(), admin, o.ID, &models.UpdateStatusRequest{Status: models.StatusShipped})
	require.NoError(t, err)

	_, err = f.svc.Cancel(testCtx(), owner, o.ID)
	requireDomainErr(t, err, dErrors.CodeConflict, "Order can no longer be cancelled")
}

func TestCancel_StrangerForbidden(t *testing.T) {
	f := newFixture()
	o := place(t, f, customerPrincipal())

	_, err := f.svc.Cancel(testCtx(), customerPrincipal(), o.ID)
	requireDomainErr(t, err, dErrors.CodeForbidden, "Not enough permissions")
}

func TestDelete_RemovesOrder(t *testing.T) {
	f := newFixture()
	admin := adminPrincipal()
	o := place(t, f, customerPrincipal())

	require.NoError(t, f.svc.Delete(testCtx(), admin, o.ID))

	_, err := f.svc.Get(testCtx(), admin, o.ID)
	requireDomainErr(t, err, dErrors.CodeNotFound, "Order not found")
	require.Len(t, f.events.ByType(audit.EventOrderDeleted), 1)
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture()

	err := f.svc.Delete(testCtx(), adminPrincipal(), domain.NewOrderID())
	requireDomainErr(t, err, dErrors.CodeNotFound, "Order not found")
}

func TestTracing_SpansAroundStoreIO(t *testing.T) {
	f := newFixture()
	rec := tracer.NewRecorder()
	f.svc = New(f.store, WithTracer(rec))
	actor := customerPrincipal()

	place(t, f, actor)
	_, _, err := f.svc.List(testCtx(), actor, models.ListFilter{Page: 1, Size: 10})
	require.NoError(t, err)

	creates := rec.ByName(tracer.SpanOrderCreate)
	require.Len(t, creates, 1)
	assert.True(t, creates[0].Ended)
	assert.NoError(t, creates[0].Err)

	lists := rec.ByName(tracer.SpanOrderList)
	require.Len(t, lists, 1)
	assert.True(t, lists[0].Ended)
}
