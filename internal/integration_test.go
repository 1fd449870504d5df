package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"device-intake-backend/internal/api"
	"device-intake-backend/internal/auth"
	"device-intake-backend/internal/client"
	"device-intake-backend/internal/imei"
	"device-intake-backend/internal/intake"
	"device-intake-backend/internal/model"
	"device-intake-backend/internal/notification"
	"device-intake-backend/internal/report"
	"device-intake-backend/internal/store"
	"device-intake-backend/internal/workflow"
)

// TestInspectionLifecycle drives a full intake flow over HTTP: login, the
// New Inspection form, Station 1 device intake with an IMEI lookup,
// Station 2 photo capture and finally the report export.
func TestInspectionLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	// 1. In-memory database and backend wiring.
	testDB, err := gorm.Open(sqlite.Open("file:lifecycle?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(&model.Order{}, &model.Device{}, &model.PushSubscription{}))

	gormStore := store.NewGormStore(testDB)
	reportDir := t.TempDir()
	// Left unstarted so queued notifications can be asserted directly.
	pool := notification.NewWorkerPool(4, testDB, nil)
	handler := api.NewHandler(
		gormStore,
		imei.NewService(time.Minute),
		report.NewBuilder(gormStore, reportDir),
		pool,
		auth.NewHolder(auth.NewMemStore()),
		t.TempDir(),
		nil,
	)
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTL:        time.Minute,
		ReportDir:       reportDir,
	})
	server := httptest.NewServer(router)
	defer server.Close()

	// 2. The intake client and flow controller.
	restClient := client.New(server.URL)
	controller := workflow.NewController(restClient)

	// 3. The inspector signs in.
	body, _ := json.Marshal(map[string]string{"username": "inspector", "password": "inspect123"})
	resp, err := http.Post(server.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var orderID string
	t.Run("New Inspection form creates the order", func(t *testing.T) {
		// An empty form does not reach the backend.
		_, err := controller.SubmitContinue(ctx, workflow.CreateOrderRequest{})
		var verr *workflow.ValidationError
		require.ErrorAs(t, err, &verr)

		taken, err := restClient.CheckLabelNumber(ctx, "M-100")
		require.NoError(t, err)
		assert.False(t, taken)

		order, err := controller.SubmitContinue(ctx, workflow.CreateOrderRequest{
			CustomerName:  "Acme Telecom",
			LabelNumber:   "M-100",
			InspectorName: "Inspector One",
		})
		require.NoError(t, err)
		orderID = order.ID
		assert.Equal(t, "ORD-0001", order.OrderNumber)
		assert.Equal(t, model.StatusPending, order.Status)
		assert.Equal(t, workflow.StageDevices, controller.Stage())
	})

	var deviceID string
	t.Run("Station 1 intake with IMEI lookup", func(t *testing.T) {
		form := intake.NewForm(restClient, restClient, orderID, "Inspector One")
		require.NoError(t, form.SelectVariant(intake.VariantDetailsOnly))

		form.SetIMEI("353281101234567")
		identity, err := form.Lookup(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Apple", identity.Brand)
		assert.Equal(t, "iPhone 13", identity.Model)

		require.NoError(t, form.ToggleCondition("front_cracked"))
		require.NoError(t, form.ToggleCondition("no_power"))

		device, err := form.Submit(ctx)
		require.NoError(t, err)
		deviceID = device.ID

		// Registering the device bumps the count but keeps Pending.
		order, err := restClient.GetOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, 1, order.DeviceCount)
		assert.Equal(t, model.StatusPending, order.Status)

		// The export is not available yet.
		stage, err := controller.FinishDevices(ctx)
		require.NoError(t, err)
		assert.Equal(t, workflow.StagePhotos, stage)
		_, err = controller.ExportReport(ctx)
		assert.ErrorIs(t, err, workflow.ErrNotReady)
	})

	t.Run("Station 2 photos complete the order", func(t *testing.T) {
		front := filepath.Join(t.TempDir(), "front.jpg")
		back := filepath.Join(t.TempDir(), "back.jpg")
		require.NoError(t, os.WriteFile(front, []byte("front-jpeg"), 0o644))
		require.NoError(t, os.WriteFile(back, []byte("back-jpeg"), 0o644))

		device, err := controller.UploadPhoto(ctx, deviceID, model.SideFront, front)
		require.NoError(t, err)
		assert.Equal(t, "/media/"+deviceID+"_front.jpg", device.FrontImage)
		assert.Equal(t, workflow.StagePhotos, controller.Stage())

		order, err := restClient.GetOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, order.Status, "one side photographed must not complete the order")

		device, err = controller.UploadPhoto(ctx, deviceID, model.SideBack, back)
		require.NoError(t, err)
		assert.True(t, device.FullyInspected())
		assert.Equal(t, workflow.StageComplete, controller.Stage())

		order, err = restClient.GetOrder(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, order.Status)

		// The completion queued a push notification job.
		select {
		case queued := <-pool.Jobs():
			assert.Equal(t, orderID, queued)
		case <-time.After(time.Second):
			t.Fatal("expected a completion notification to be queued")
		}
	})

	t.Run("report export and search", func(t *testing.T) {
		url, err := controller.ExportReport(ctx)
		require.NoError(t, err)
		assert.Equal(t, "/reports/order-ORD-0001.json", url)

		// The report document is written and served.
		resp, err := http.Get(server.URL + url)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var doc report.Document
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
		assert.Equal(t, "ORD-0001", doc.Order.OrderNumber)
		assert.Equal(t, 1, doc.TotalDevices)
		assert.Equal(t, 1, doc.Inspected)
		require.Len(t, doc.Devices, 1)
		assert.Equal(t, []string{"Front Cracked Screen", "No Power"}, doc.Devices[0].ConditionLabels)

		// The device is findable by partial IMEI and by label number.
		found, err := restClient.SearchDevices(ctx, "3532811")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, deviceID, found[0].ID)

		found, err = restClient.SearchDevices(ctx, "m-100")
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("resume places a new controller correctly", func(t *testing.T) {
		resumed := workflow.NewController(restClient)
		require.NoError(t, resumed.Resume(ctx, orderID))
		assert.Equal(t, workflow.StageComplete, resumed.Stage())
		assert.Len(t, resumed.Devices(), 1)
	})
}

// TestOfflineFallback exercises the client's in-memory mock store when the
// backend is unreachable.
func TestOfflineFallback(t *testing.T) {
	ctx := context.Background()

	// A server that is immediately gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	restClient := client.New(baseURL)
	controller := workflow.NewController(restClient)

	order, err := controller.SubmitContinue(ctx, workflow.CreateOrderRequest{
		CustomerName: "Acme Telecom",
		LabelNumber:  "M-100",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-0001", order.OrderNumber)

	device, err := controller.AddDevice(ctx, workflow.CreateDeviceRequest{
		IMEI:         "353281101234567",
		SerialNumber: "SN1234567001",
	})
	require.NoError(t, err)

	stage, err := controller.FinishDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, workflow.StagePhotos, stage)

	front := filepath.Join(t.TempDir(), "front.jpg")
	back := filepath.Join(t.TempDir(), "back.jpg")
	require.NoError(t, os.WriteFile(front, []byte("jpeg"), 0o644))
	require.NoError(t, os.WriteFile(back, []byte("jpeg"), 0o644))

	_, err = controller.UploadPhoto(ctx, device.ID, model.SideFront, front)
	require.NoError(t, err)
	_, err = controller.UploadPhoto(ctx, device.ID, model.SideBack, back)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageComplete, controller.Stage())

	url, err := controller.ExportReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/reports/order-ORD-0001.json", url)

	// IMEI lookups stay backend-bound even offline.
	form := intake.NewForm(restClient, restClient, order.ID, "Inspector One")
	require.NoError(t, form.SelectVariant(intake.VariantDetailsOnly))
	form.SetIMEI("353281101234567")
	_, err = form.Lookup(ctx)
	assert.ErrorIs(t, err, client.ErrRemoteUnavailable)

	// Manual identification still works.
	form.SetManualEntry(true)
	require.NoError(t, form.SetManualDetails("Apple", "iPhone 13"))
	second, err := form.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.ID, second.OrderID)
}
